// Package store: factory for constructing a configured Store backend.
package store

import (
	"context"
	"fmt"
	"io"
	"log"
)

// New constructs a Store per cfg, falling back to cfg.FallbackType if the
// primary backend fails to initialize and a fallback was configured.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeMemory:
		log.Println("initializing in-memory predicate store")
		return NewMemoryStore(), nil

	case TypeSQLite:
		log.Printf("initializing sqlite predicate store at %s", cfg.SQLitePath)
		s, err := NewSQLiteStore(cfg.SQLitePath, cfg.SQLiteTimeout)
		if err != nil {
			if cfg.FallbackType != "" && cfg.FallbackType != cfg.Type {
				log.Printf("sqlite initialization failed: %v, falling back to %s", err, cfg.FallbackType)
				return New(Config{Type: cfg.FallbackType})
			}
			return nil, fmt.Errorf("sqlite initialization failed: %w", err)
		}
		return s, nil

	case TypeNeo4j:
		log.Printf("initializing neo4j predicate store at %s", cfg.Neo4j.URI)
		s, err := NewNeo4jStore(cfg.Neo4j)
		if err != nil {
			if cfg.FallbackType != "" && cfg.FallbackType != cfg.Type {
				log.Printf("neo4j initialization failed: %v, falling back to %s", err, cfg.FallbackType)
				return New(Config{Type: cfg.FallbackType})
			}
			return nil, fmt.Errorf("neo4j initialization failed: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

// NewFromEnv constructs a Store from environment variables (see ConfigFromEnv).
func NewFromEnv() (Store, error) {
	return New(ConfigFromEnv())
}

// Close closes s if it exposes a Close method, trying both the io.Closer
// shape (SQLiteStore) and the context-taking shape (Neo4jStore).
func Close(s Store) error {
	switch closer := s.(type) {
	case io.Closer:
		return closer.Close()
	case interface{ Close(context.Context) error }:
		return closer.Close(context.Background())
	default:
		return nil
	}
}
