package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/engine"
)

func result(path string, status engine.Status) *engine.Result {
	return &engine.Result{Path: path, ArchID: "svc", Status: status, Violations: []engine.Violation{}, Warnings: []engine.Violation{}}
}

func TestIsValidRoundTrip(t *testing.T) {
	m, err := NewManager(Options{MaxEntries: 10})
	require.NoError(t, err)

	assert.False(t, m.IsValid("a.ts", "c1"))

	m.Set(Entry{Path: "a.ts", Checksum: "c1", ArchID: "svc", Result: result("a.ts", engine.StatusPass)})
	assert.True(t, m.IsValid("a.ts", "c1"))
	assert.False(t, m.IsValid("a.ts", "c2"))

	m.Set(Entry{Path: "a.ts", Checksum: "c2", Result: result("a.ts", engine.StatusFail)})
	assert.True(t, m.IsValid("a.ts", "c2"))
	assert.False(t, m.IsValid("a.ts", "c1"))

	stats := m.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(3), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestGetReturnsCopy(t *testing.T) {
	m, err := NewManager(Options{})
	require.NoError(t, err)
	m.Set(Entry{Path: "a.ts", Checksum: "c", Result: result("a.ts", engine.StatusPass)})

	e, ok := m.Get("a.ts")
	require.True(t, ok)
	e.Result.Status = engine.StatusFail
	e.Result.Violations = append(e.Result.Violations, engine.Violation{Rule: "x"})

	again, ok := m.Get("a.ts")
	require.True(t, ok)
	assert.Equal(t, engine.StatusPass, again.Result.Status)
	assert.Empty(t, again.Result.Violations)

	_, ok = m.Get("missing.ts")
	assert.False(t, ok)
}

func TestPrune(t *testing.T) {
	m, err := NewManager(Options{})
	require.NoError(t, err)
	for _, p := range []string{"a.ts", "b.ts", "c.ts", "d.ts"} {
		m.Set(Entry{Path: p, Checksum: "x", Result: result(p, engine.StatusPass)})
	}

	removed := m.Prune(map[string]bool{"a.ts": true, "c.ts": true})
	assert.Equal(t, 2, removed)
	_, ok := m.Get("b.ts")
	assert.False(t, ok)
	_, ok = m.Get("a.ts")
	assert.True(t, ok)

	assert.Equal(t, 0, m.Prune(map[string]bool{"a.ts": true, "c.ts": true}))
}

func TestEvictionBound(t *testing.T) {
	m, err := NewManager(Options{MaxEntries: 2})
	require.NoError(t, err)
	m.Set(Entry{Path: "a", Checksum: "1", Result: result("a", engine.StatusPass)})
	m.Set(Entry{Path: "b", Checksum: "1", Result: result("b", engine.StatusPass)})
	m.Set(Entry{Path: "c", Checksum: "1", Result: result("c", engine.StatusPass)})

	assert.Equal(t, 2, m.Stats().Entries)
	assert.False(t, m.IsValid("a", "1"))
	assert.True(t, m.IsValid("c", "1"))
}

func TestConcurrentSet(t *testing.T) {
	m, err := NewManager(Options{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := filepath.ToSlash(filepath.Join("src", string(rune('a'+i%26)), "f.ts"))
			m.Set(Entry{Path: p, Checksum: "x", Result: result(p, engine.StatusPass)})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 26, m.Stats().Entries)
}

func TestPersistenceAcrossManagers(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache", "cache.db")

	store, err := OpenStore(dbPath)
	require.NoError(t, err)
	m, err := NewManager(Options{RegistryChecksum: "r1", ConfigChecksum: "c1", Store: store})
	require.NoError(t, err)
	res := result("a.ts", engine.StatusFail)
	res.Violations = []engine.Violation{{Rule: "forbid_import", Value: "axios", Severity: "error", Message: "no"}}
	m.Set(Entry{Path: "a.ts", Checksum: "sum", ArchID: "svc", Result: res})
	m.Set(Entry{Path: "b.ts", Checksum: "sum", Result: result("b.ts", engine.StatusPass)})
	require.NoError(t, m.Close())

	store, err = OpenStore(dbPath)
	require.NoError(t, err)
	m, err = NewManager(Options{RegistryChecksum: "r1", ConfigChecksum: "c1", Store: store})
	require.NoError(t, err)
	assert.True(t, m.IsValid("a.ts", "sum"))
	e, ok := m.Get("a.ts")
	require.True(t, ok)
	assert.Equal(t, "svc", e.ArchID)
	require.Len(t, e.Result.Violations, 1)
	assert.Equal(t, "axios", e.Result.Violations[0].Value)

	assert.Equal(t, 1, m.Prune(map[string]bool{"a.ts": true}))
	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, m.Close())

	store, err = OpenStore(dbPath)
	require.NoError(t, err)
	m, err = NewManager(Options{RegistryChecksum: "r2", ConfigChecksum: "c1", Store: store})
	require.NoError(t, err)
	defer m.Close()
	assert.False(t, m.IsValid("a.ts", "sum"))
	n, err = store.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCorruptStoreFailsToOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("definitely not sqlite, just some bytes that are long enough to have a header"), 0o644))

	_, err := OpenStore(dbPath)
	assert.Error(t, err)
}

func TestStampDependsOnBothChecksums(t *testing.T) {
	assert.NotEqual(t, Stamp("a", "b"), Stamp("a", "c"))
	assert.NotEqual(t, Stamp("a", "b"), Stamp("ab", ""))
	assert.Equal(t, Stamp("a", "b"), Stamp("a", "b"))
}
