// Package store: SQLite-backed persistent Store implementation.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store over a SQLite file, with a write-through
// in-memory cache for fast reads (the same pattern the rest of this
// codebase uses for its SQLite-backed persistence).
type SQLiteStore struct {
	db    *sql.DB
	cache *MemoryStore

	stmtKVUpsert   *sql.Stmt
	stmtHashUpsert *sql.Stmt
	stmtSetInsert  *sql.Stmt
	stmtSeqInsert  *sql.Stmt
	stmtSeqCount   *sql.Stmt
}

// NewSQLiteStore opens (creating if absent) a SQLite-backed store at
// dbPath, applying a busy timeout of timeoutMs milliseconds.
func NewSQLiteStore(dbPath string, timeoutMs int) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	dsn := dbPath + fmt.Sprintf("?_busy_timeout=%d", timeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := configureSQLite(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}
	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db, cache: NewMemoryStore()}
	if err := s.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	if err := s.warmCache(); err != nil {
		log.Printf("warning: failed to warm predicate store cache: %v", err)
	}

	log.Printf("sqlite predicate store initialized at %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error
	if s.stmtKVUpsert, err = s.db.Prepare(`INSERT INTO kv (namespace, key, value) VALUES (?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value`); err != nil {
		return err
	}
	if s.stmtHashUpsert, err = s.db.Prepare(`INSERT INTO hashes (namespace, map_key, field, value) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, map_key, field) DO UPDATE SET value = excluded.value`); err != nil {
		return err
	}
	if s.stmtSetInsert, err = s.db.Prepare(`INSERT OR IGNORE INTO sets (namespace, set_key, member) VALUES (?, ?, ?)`); err != nil {
		return err
	}
	if s.stmtSeqInsert, err = s.db.Prepare(`INSERT INTO seqs (namespace, seq_key, position, value) VALUES (?, ?, ?, ?)`); err != nil {
		return err
	}
	if s.stmtSeqCount, err = s.db.Prepare(`SELECT COUNT(*) FROM seqs WHERE namespace = ? AND seq_key = ?`); err != nil {
		return err
	}
	return nil
}

// warmCache loads every row into the in-memory cache so reads never touch
// disk on the common path.
func (s *SQLiteStore) warmCache() error {
	rows, err := s.db.Query(`SELECT namespace, key, value FROM kv`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ns, k, v string
		if err := rows.Scan(&ns, &k, &v); err != nil {
			return err
		}
		_ = s.cache.KVPut(ns, k, v)
	}

	hashRows, err := s.db.Query(`SELECT namespace, map_key, field, value FROM hashes`)
	if err != nil {
		return err
	}
	defer hashRows.Close()
	for hashRows.Next() {
		var ns, mk, field, v string
		if err := hashRows.Scan(&ns, &mk, &field, &v); err != nil {
			return err
		}
		_ = s.cache.MapPut(ns, mk, field, v)
	}

	setRows, err := s.db.Query(`SELECT namespace, set_key, member FROM sets`)
	if err != nil {
		return err
	}
	defer setRows.Close()
	for setRows.Next() {
		var ns, sk, member string
		if err := setRows.Scan(&ns, &sk, &member); err != nil {
			return err
		}
		_ = s.cache.SetAdd(ns, sk, member)
	}

	seqRows, err := s.db.Query(`SELECT namespace, seq_key, value FROM seqs ORDER BY namespace, seq_key, position`)
	if err != nil {
		return err
	}
	defer seqRows.Close()
	for seqRows.Next() {
		var ns, sk, v string
		if err := seqRows.Scan(&ns, &sk, &v); err != nil {
			return err
		}
		_ = s.cache.SeqPush(ns, sk, v)
	}
	return nil
}

// KVPut writes through to both SQLite and the in-memory cache.
func (s *SQLiteStore) KVPut(namespace, key, value string) error {
	if _, err := s.stmtKVUpsert.Exec(namespace, key, value); err != nil {
		return fmt.Errorf("kv put: %w", err)
	}
	return s.cache.KVPut(namespace, key, value)
}

// KVGet reads from the in-memory cache.
func (s *SQLiteStore) KVGet(namespace, key string) (string, bool, error) {
	return s.cache.KVGet(namespace, key)
}

// MapPut writes through to both SQLite and the in-memory cache.
func (s *SQLiteStore) MapPut(namespace, mapKey, field, value string) error {
	if _, err := s.stmtHashUpsert.Exec(namespace, mapKey, field, value); err != nil {
		return fmt.Errorf("map put: %w", err)
	}
	return s.cache.MapPut(namespace, mapKey, field, value)
}

// MapGet reads from the in-memory cache.
func (s *SQLiteStore) MapGet(namespace, mapKey, field string) (string, bool, error) {
	return s.cache.MapGet(namespace, mapKey, field)
}

// MapGetAll reads from the in-memory cache.
func (s *SQLiteStore) MapGetAll(namespace, mapKey string) (map[string]string, error) {
	return s.cache.MapGetAll(namespace, mapKey)
}

// SetAdd writes through to both SQLite and the in-memory cache.
func (s *SQLiteStore) SetAdd(namespace, setKey, member string) error {
	if _, err := s.stmtSetInsert.Exec(namespace, setKey, member); err != nil {
		return fmt.Errorf("set add: %w", err)
	}
	return s.cache.SetAdd(namespace, setKey, member)
}

// SetMembers reads from the in-memory cache.
func (s *SQLiteStore) SetMembers(namespace, setKey string) ([]string, error) {
	return s.cache.SetMembers(namespace, setKey)
}

// SeqPush writes through to both SQLite and the in-memory cache. Position
// is derived from the current persisted row count, so concurrent pushes
// from a single process (serialized by the caller) stay append-only.
func (s *SQLiteStore) SeqPush(namespace, seqKey, value string) error {
	var count int
	if err := s.stmtSeqCount.QueryRow(namespace, seqKey).Scan(&count); err != nil {
		return fmt.Errorf("seq count: %w", err)
	}
	if _, err := s.stmtSeqInsert.Exec(namespace, seqKey, count, value); err != nil {
		return fmt.Errorf("seq push: %w", err)
	}
	return s.cache.SeqPush(namespace, seqKey, value)
}

// SeqGetAll reads from the in-memory cache.
func (s *SQLiteStore) SeqGetAll(namespace, seqKey string) ([]string, error) {
	return s.cache.SeqGetAll(namespace, seqKey)
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
