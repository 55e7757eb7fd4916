package store

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS kv (
    namespace TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (namespace, key)
);

CREATE TABLE IF NOT EXISTS hashes (
    namespace TEXT NOT NULL,
    map_key TEXT NOT NULL,
    field TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (namespace, map_key, field)
);

CREATE TABLE IF NOT EXISTS sets (
    namespace TEXT NOT NULL,
    set_key TEXT NOT NULL,
    member TEXT NOT NULL,
    PRIMARY KEY (namespace, set_key, member)
);

CREATE TABLE IF NOT EXISTS seqs (
    namespace TEXT NOT NULL,
    seq_key TEXT NOT NULL,
    position INTEGER NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (namespace, seq_key, position)
);

CREATE INDEX IF NOT EXISTS idx_hashes_lookup ON hashes(namespace, map_key);
CREATE INDEX IF NOT EXISTS idx_sets_lookup ON sets(namespace, set_key);
CREATE INDEX IF NOT EXISTS idx_seqs_lookup ON seqs(namespace, seq_key);
`

// initializeSchema creates the schema if absent and records its version.
func initializeSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var current string
	err := db.QueryRow(`SELECT value FROM schema_metadata WHERE key = 'version'`).Scan(&current)
	if err == sql.ErrNoRows {
		_, err = db.Exec(`INSERT INTO schema_metadata (key, value) VALUES ('version', ?)`, fmt.Sprintf("%d", schemaVersion))
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	return nil
}

// configureSQLite applies WAL mode and related pragmas for a single-writer,
// many-reader server process.
func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}
