package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/engine"
)

const stampKey = "stamp"

// Store persists cache entries in a single SQLite file keyed by path.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

func OpenStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("open cache %s: %w", dbPath, err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	var clean []string
	for _, line := range strings.Split(schemaSQL, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
			clean = append(clean, line)
		}
	}
	if _, err := s.db.Exec(strings.Join(clean, "\n")); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != SchemaVersion {
		if _, err := s.db.Exec(`DELETE FROM cache_entries; DELETE FROM cache_meta; DELETE FROM schema_version`); err != nil {
			return fmt.Errorf("reset cache schema: %w", err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Stamp returns the registry/config stamp the stored entries belong to.
func (s *Store) Stamp() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stamp string
	err := s.db.QueryRow(`SELECT value FROM cache_meta WHERE key = ?`, stampKey).Scan(&stamp)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cache stamp: %w", err)
	}
	return stamp, nil
}

// Reset drops every entry and records a new stamp.
func (s *Store) Reset(stamp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("clear cache entries: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO cache_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, stampKey, stamp); err != nil {
		return fmt.Errorf("write cache stamp: %w", err)
	}
	return tx.Commit()
}

// Load returns all stored entries. Rows whose result does not decode are
// skipped.
func (s *Store) Load() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT path, checksum, arch_id, result, cached_at
		FROM cache_entries ORDER BY cached_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load cache entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e      Entry
			archID sql.NullString
			raw    string
			cached int64
		)
		if err := rows.Scan(&e.Path, &e.Checksum, &archID, &raw, &cached); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		e.ArchID = archID.String
		e.CachedAt = time.UnixMilli(cached)

		var result engine.Result
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			log.Warn("dropping undecodable cache entry", "path", e.Path, "error", err)
			continue
		}
		e.Result = &result
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Put(e Entry) error {
	raw, err := json.Marshal(e.Result)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", e.Path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO cache_entries (path, checksum, arch_id, result, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum = excluded.checksum,
			arch_id = excluded.arch_id,
			result = excluded.result,
			cached_at = excluded.cached_at
	`, e.Path, e.Checksum, e.ArchID, string(raw), e.CachedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (s *Store) Delete(paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`DELETE FROM cache_entries WHERE path = ?`)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for _, p := range paths {
		if _, err := stmt.Exec(p); err != nil {
			return fmt.Errorf("delete cache entry: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}

func (s *Store) Paths() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT path FROM cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan cache path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
