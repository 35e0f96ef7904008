// Package cache keeps per-file validation results keyed by content checksum
// so unchanged files are not re-evaluated.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/engine"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/logger"
)

var log = logger.ForComponent("cache")

const DefaultMaxEntries = 10000

type Entry struct {
	Path     string         `json:"path"`
	Checksum string         `json:"checksum"`
	ArchID   string         `json:"arch_id,omitempty"`
	Result   *engine.Result `json:"result"`
	CachedAt time.Time      `json:"cached_at"`
}

type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

type Options struct {
	RegistryChecksum string
	ConfigChecksum   string
	// MaxEntries bounds the in-memory set; least recently used entries are
	// evicted first.
	MaxEntries int
	// Store is optional. Without it the cache lives for one process.
	Store *Store
}

// Manager is safe for concurrent use. Writes are serialized so a store write
// and the in-memory update happen together.
type Manager struct {
	entries *lru.Cache[string, Entry]
	store   *Store
	stamp   string
	mu      sync.Mutex
	hits    atomic.Int64
	misses  atomic.Int64
}

func Stamp(registryChecksum, configChecksum string) string {
	sum := sha256.Sum256([]byte(registryChecksum + "\x00" + configChecksum))
	return hex.EncodeToString(sum[:])
}

// NewManager builds a manager and, with a store, loads entries written under
// the same registry and config checksums. A mismatched or unreadable store is
// reset rather than failing.
func NewManager(opts Options) (*Manager, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	entries, err := lru.New[string, Entry](opts.MaxEntries)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		entries: entries,
		store:   opts.Store,
		stamp:   Stamp(opts.RegistryChecksum, opts.ConfigChecksum),
	}
	if m.store != nil {
		m.load()
	}
	return m, nil
}

func (m *Manager) load() {
	stored, err := m.store.Stamp()
	if err != nil {
		log.Warn("cache store unreadable, starting empty", "error", err)
		m.reset()
		return
	}
	if stored != m.stamp {
		if stored != "" {
			log.Info("registry or config changed, invalidating cache")
		}
		m.reset()
		return
	}

	loaded, err := m.store.Load()
	if err != nil {
		log.Warn("cache store unreadable, starting empty", "error", err)
		m.reset()
		return
	}
	for _, e := range loaded {
		m.entries.Add(e.Path, e)
	}
	log.Debug("cache loaded", "entries", m.entries.Len())
}

func (m *Manager) reset() {
	if err := m.store.Reset(m.stamp); err != nil {
		log.Warn("cache store reset failed, continuing without persistence", "error", err)
		m.store = nil
	}
}

// IsValid reports whether path has an entry computed from checksum and
// counts a hit or a miss.
func (m *Manager) IsValid(path, checksum string) bool {
	e, ok := m.entries.Peek(path)
	if ok && e.Checksum == checksum && e.Result != nil {
		m.hits.Add(1)
		return true
	}
	m.misses.Add(1)
	return false
}

// Get returns a copy of the entry so callers never share a result.
func (m *Manager) Get(path string) (Entry, bool) {
	e, ok := m.entries.Get(path)
	if !ok {
		return Entry{}, false
	}
	if e.Result != nil {
		e.Result = e.Result.Clone()
	}
	return e, true
}

func (m *Manager) Set(e Entry) {
	if e.CachedAt.IsZero() {
		e.CachedAt = time.Now()
	}
	if e.Result != nil {
		e.Result = e.Result.Clone()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries.Add(e.Path, e)
	if m.store != nil {
		if err := m.store.Put(e); err != nil {
			log.Warn("cache write failed", "path", e.Path, "error", err)
		}
	}
}

// Prune removes entries whose path is not in live and returns how many were
// removed.
func (m *Manager) Prune(live map[string]bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	var removed []string
	for _, path := range m.entries.Keys() {
		if !live[path] {
			m.entries.Remove(path)
			seen[path] = true
			removed = append(removed, path)
		}
	}
	if m.store == nil {
		return len(removed)
	}

	// Evicted entries only live in the store.
	stored, err := m.store.Paths()
	if err != nil {
		log.Warn("cache prune failed", "error", err)
	}
	for _, path := range stored {
		if !live[path] && !seen[path] {
			removed = append(removed, path)
		}
	}
	if err := m.store.Delete(removed); err != nil {
		log.Warn("cache prune failed", "error", err)
	}
	return len(removed)
}

func (m *Manager) Stats() Stats {
	return Stats{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Entries: m.entries.Len(),
	}
}

func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}
