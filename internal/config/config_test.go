package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, root, content string) {
	t.Helper()
	dir := filepath.Join(root, Dir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, File), []byte(content), 0o644))
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, "warning", cfg.Untagged)
	assert.Equal(t, 3, cfg.Overrides.MaxPerFile)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, filepath.Join(cfg.Root, ".arch", "registry"), cfg.Abs(cfg.Registry))
}

func TestLoadMergesOverDefaults(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
untagged: error
workers: 4
overrides:
  max_per_file: 1
  require_expiry: true
cache:
  enabled: false
layers:
  - name: api
    architectures: ["api.*"]
    can_import: [domain]
  - name: domain
    architectures: ["domain.**"]
go_module: example.com/proj
watcher:
  debounce: 1s
log:
  level: debug
  format: json
`)
	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Untagged)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 1, cfg.Overrides.MaxPerFile)
	assert.True(t, cfg.Overrides.RequireExpiry)
	assert.Equal(t, 180, cfg.Overrides.MaxExpiryDays)
	assert.False(t, cfg.Cache.Enabled)
	require.Len(t, cfg.Layers, 2)
	assert.Equal(t, []string{"domain"}, cfg.Layers[0].CanImport)
	assert.Equal(t, "example.com/proj", cfg.GoModule)
	assert.Equal(t, time.Second, cfg.Watcher.DebounceWindow)
	assert.Equal(t, 100, cfg.Watcher.MaxBatchSize)
	assert.Equal(t, "json", cfg.LoggerConfig().Format)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"untagged", "untagged: ignore\n"},
		{"negative workers", "workers: -1\n"},
		{"log level", "log:\n  level: loud\n"},
		{"unknown layer", "layers:\n  - name: api\n    can_import: [nowhere]\n"},
		{"duplicate package", "packages:\n  - name: a\n    path: src\n  - name: a\n    path: lib\n"},
		{"bad yaml", "workers: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeConfig(t, root, tt.yaml)
			_, err := Load(root)
			assert.Error(t, err)
		})
	}
}

func TestChecksum(t *testing.T) {
	a := Default()
	b := Default()
	assert.Equal(t, a.Checksum(), b.Checksum())

	b.Workers = 16
	b.Log.Level = "debug"
	assert.Equal(t, a.Checksum(), b.Checksum())

	b.Untagged = "error"
	assert.NotEqual(t, a.Checksum(), b.Checksum())
}
