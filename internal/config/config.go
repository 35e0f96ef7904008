// Package config loads the project configuration from .arch/config.yaml.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/boundary"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/logger"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/watcher"
)

const (
	Dir  = ".arch"
	File = "config.yaml"
)

type OverrideConfig struct {
	MaxPerFile     int  `yaml:"max_per_file"`
	RequireExpiry  bool `yaml:"require_expiry"`
	MaxExpiryDays  int  `yaml:"max_expiry_days"`
	ExpiringWithin int  `yaml:"expiring_within_days"`
}

type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	// Root is the project directory. Relative paths below resolve against it.
	Root        string             `yaml:"-"`
	Registry    string             `yaml:"registry"`
	Include     []string           `yaml:"include"`
	Exclude     []string           `yaml:"exclude"`
	Workers     int                `yaml:"workers"`
	MaxFileSize int64              `yaml:"max_file_size"`
	Untagged    string             `yaml:"untagged"`
	Overrides   OverrideConfig     `yaml:"overrides"`
	Cache       CacheConfig        `yaml:"cache"`
	Layers      []boundary.Layer   `yaml:"layers"`
	Packages    []boundary.Package `yaml:"packages"`
	GoModule    string             `yaml:"go_module"`
	Watcher     watcher.Config     `yaml:"watcher"`
	Log         LogConfig          `yaml:"log"`
	MetricsAddr string             `yaml:"metrics_addr"`
}

func Default() *Config {
	return &Config{
		Registry: filepath.Join(Dir, "registry"),
		Include:  []string{"**/*"},
		Exclude: []string{
			"**/node_modules/**",
			"**/.git/**",
			"**/vendor/**",
			"**/__pycache__/**",
			"**/dist/**",
			"**/build/**",
			".arch/**",
		},
		MaxFileSize: 2 * 1024 * 1024,
		Untagged:    "warning",
		Overrides: OverrideConfig{
			MaxPerFile:     3,
			MaxExpiryDays:  180,
			ExpiringWithin: 14,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Path:       filepath.Join(Dir, "cache", "cache.db"),
			MaxEntries: 10000,
		},
		Watcher: watcher.DefaultConfig(),
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads <root>/.arch/config.yaml over the defaults. A missing file is
// not an error.
func Load(root string) (*Config, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	cfg := Default()
	path := filepath.Join(abs, Dir, File)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.Root = abs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Untagged {
	case "warning", "error":
	default:
		return fmt.Errorf("config: untagged must be warning or error, got %q", c.Untagged)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative")
	}
	if c.Overrides.MaxPerFile < 0 || c.Overrides.MaxExpiryDays < 0 || c.Overrides.ExpiringWithin < 0 {
		return fmt.Errorf("config: override limits must not be negative")
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("config: cache.max_entries must not be negative")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}

	layers := make([]string, 0, len(c.Layers))
	for _, l := range c.Layers {
		layers = append(layers, l.Name)
	}
	if err := checkGroups("layer", layers, func(i int) []string { return c.Layers[i].CanImport }); err != nil {
		return err
	}
	pkgs := make([]string, 0, len(c.Packages))
	for _, p := range c.Packages {
		pkgs = append(pkgs, p.Name)
	}
	return checkGroups("package", pkgs, func(i int) []string { return c.Packages[i].CanImport })
}

func checkGroups(kind string, names []string, canImport func(int) []string) error {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" {
			return fmt.Errorf("config: %s without a name", kind)
		}
		if known[n] {
			return fmt.Errorf("config: duplicate %s %q", kind, n)
		}
		known[n] = true
	}
	for i, n := range names {
		for _, target := range canImport(i) {
			if target != "*" && !known[target] {
				return fmt.Errorf("config: %s %q can_import unknown %s %q", kind, n, kind, target)
			}
		}
	}
	return nil
}

// Abs resolves a configured path against Root.
func (c *Config) Abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Checksum covers the settings that change validation results. Logging,
// worker count, watcher and cache settings are left out.
func (c *Config) Checksum() string {
	relevant := struct {
		Include   []string           `yaml:"include"`
		Exclude   []string           `yaml:"exclude"`
		Untagged  string             `yaml:"untagged"`
		Overrides OverrideConfig     `yaml:"overrides"`
		Layers    []boundary.Layer   `yaml:"layers"`
		Packages  []boundary.Package `yaml:"packages"`
		GoModule  string             `yaml:"go_module"`
	}{c.Include, c.Exclude, c.Untagged, c.Overrides, c.Layers, c.Packages, c.GoModule}

	data, err := yaml.Marshal(relevant)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// LoggerConfig converts the log section for logger.Init.
func (c *Config) LoggerConfig() logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level, _ = logger.ParseLevel(c.Log.Level)
	if c.Log.Format != "" {
		cfg.Format = c.Log.Format
	}
	return cfg
}
