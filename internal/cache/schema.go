package cache

const SchemaVersion = 1

const schemaSQL = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

-- Registry/config stamp the entries were produced under
CREATE TABLE IF NOT EXISTS cache_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Per-file validation results
CREATE TABLE IF NOT EXISTS cache_entries (
    path TEXT PRIMARY KEY,
    checksum TEXT NOT NULL,
    arch_id TEXT,
    result TEXT NOT NULL,
    cached_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_arch ON cache_entries(arch_id);
`
