// Package store: configuration for selecting and constructing a backend.
package store

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Type names a Store backend.
type Type string

const (
	// TypeMemory uses a process-local in-memory store (default).
	TypeMemory Type = "memory"
	// TypeSQLite uses a persistent SQLite-backed store.
	TypeSQLite Type = "sqlite"
	// TypeNeo4j uses a Neo4j-backed store.
	TypeNeo4j Type = "neo4j"
)

// Config selects and parameterizes a Store backend.
type Config struct {
	Type          Type
	SQLitePath    string
	SQLiteTimeout int
	Neo4j         Neo4jConfig
	FallbackType  Type
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() Config {
	return Config{
		Type:          TypeMemory,
		SQLitePath:    "./data/predicates.db",
		SQLiteTimeout: 5000,
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Password: "password",
			Database: "neo4j",
			Timeout:  5 * time.Second,
		},
	}
}

// ConfigFromEnv reads store configuration from environment variables:
//   - STORE_TYPE: "memory" (default), "sqlite", or "neo4j"
//   - SQLITE_PATH / SQLITE_TIMEOUT
//   - NEO4J_URI / NEO4J_USERNAME / NEO4J_PASSWORD / NEO4J_DATABASE / NEO4J_TIMEOUT_MS
//   - STORE_FALLBACK: type to fall back to if the primary backend fails to initialize
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if t := os.Getenv("STORE_TYPE"); t != "" {
		cfg.Type = Type(t)
	}
	if f := os.Getenv("STORE_FALLBACK"); f != "" {
		cfg.FallbackType = Type(f)
	}

	if p := os.Getenv("SQLITE_PATH"); p != "" {
		cfg.SQLitePath = p
	}
	if cfg.Type == TypeSQLite {
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				log.Printf("warning: failed to create sqlite directory %s: %v (factory will handle this)", dir, err)
			}
		}
	}
	if t := os.Getenv("SQLITE_TIMEOUT"); t != "" {
		if v, err := strconv.Atoi(t); err == nil && v > 0 {
			cfg.SQLiteTimeout = v
		}
	}

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USERNAME"); user != "" {
		cfg.Neo4j.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		cfg.Neo4j.Password = pass
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.Neo4j.Database = db
	}
	if t := os.Getenv("NEO4J_TIMEOUT_MS"); t != "" {
		if ms, err := strconv.Atoi(t); err == nil && ms > 0 {
			cfg.Neo4j.Timeout = time.Duration(ms) * time.Millisecond
		}
	}

	return cfg
}
