// Package store: optional Neo4j-backed Store implementation, for
// deployments that want the predicate graph browsable and queryable as an
// actual graph database rather than an opaque KV blob.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
)

// Neo4jConfig holds connection settings for a Neo4j-backed Store.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
	Timeout  time.Duration
}

// Neo4jStore implements Store by encoding every collection primitive as a
// labeled node/relationship shape over a single Neo4j database:
//
//	(:KV {namespace,key,value})
//	(:Hash {namespace,mapKey,field,value})
//	(:Member {namespace,setKey,member})
//	(:Seq {namespace,seqKey,position,value})
//
// Every write except SeqPush is a MERGE, so repeated puts of the same key are
// idempotent; SeqPush CREATEs a new :Seq node on every call.
type Neo4jStore struct {
	driver  neo4j.DriverWithContext
	cfg     Neo4jConfig
	ctxTime time.Duration
}

// NewNeo4jStore connects to Neo4j and verifies connectivity before
// returning, matching the fail-fast behavior of the other Store backends.
func NewNeo4jStore(cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *config.Config) {
			c.MaxConnectionPoolSize = 50
			c.ConnectionAcquisitionTimeout = cfg.Timeout
			c.SocketConnectTimeout = cfg.Timeout
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	return &Neo4jStore{driver: driver, cfg: cfg, ctxTime: cfg.Timeout}, nil
}

// Close closes the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) write(work neo4j.ManagedTransactionWork) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.ctxTime)
	defer cancel()
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.cfg.Database, AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	return session.ExecuteWrite(ctx, work)
}

func (s *Neo4jStore) read(work neo4j.ManagedTransactionWork) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.ctxTime)
	defer cancel()
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.cfg.Database, AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)
	return session.ExecuteRead(ctx, work)
}

// KVPut merges a :KV node keyed by (namespace,key).
func (s *Neo4jStore) KVPut(namespace, key, value string) error {
	_, err := s.write(func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(context.Background(),
			`MERGE (n:KV {namespace: $ns, key: $key}) SET n.value = $value`,
			map[string]any{"ns": namespace, "key": key, "value": value})
		return nil, err
	})
	return err
}

// KVGet looks up the :KV node keyed by (namespace,key).
func (s *Neo4jStore) KVGet(namespace, key string) (string, bool, error) {
	res, err := s.read(func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(context.Background(),
			`MATCH (n:KV {namespace: $ns, key: $key}) RETURN n.value AS value`,
			map[string]any{"ns": namespace, "key": key})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(context.Background())
		if err != nil {
			return nil, nil // no match
		}
		value, _ := record.Get("value")
		return value, nil
	})
	if err != nil {
		return "", false, err
	}
	if res == nil {
		return "", false, nil
	}
	return res.(string), true, nil
}

// MapPut merges a :Hash node keyed by (namespace,mapKey,field).
func (s *Neo4jStore) MapPut(namespace, mapKey, field, value string) error {
	_, err := s.write(func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(context.Background(),
			`MERGE (n:Hash {namespace: $ns, mapKey: $mapKey, field: $field}) SET n.value = $value`,
			map[string]any{"ns": namespace, "mapKey": mapKey, "field": field, "value": value})
		return nil, err
	})
	return err
}

// MapGet looks up a single :Hash node.
func (s *Neo4jStore) MapGet(namespace, mapKey, field string) (string, bool, error) {
	res, err := s.read(func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(context.Background(),
			`MATCH (n:Hash {namespace: $ns, mapKey: $mapKey, field: $field}) RETURN n.value AS value`,
			map[string]any{"ns": namespace, "mapKey": mapKey, "field": field})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(context.Background())
		if err != nil {
			return nil, nil
		}
		value, _ := record.Get("value")
		return value, nil
	})
	if err != nil {
		return "", false, err
	}
	if res == nil {
		return "", false, nil
	}
	return res.(string), true, nil
}

// MapGetAll returns every field/value pair stored under mapKey.
func (s *Neo4jStore) MapGetAll(namespace, mapKey string) (map[string]string, error) {
	res, err := s.read(func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(context.Background(),
			`MATCH (n:Hash {namespace: $ns, mapKey: $mapKey}) RETURN n.field AS field, n.value AS value`,
			map[string]any{"ns": namespace, "mapKey": mapKey})
		if err != nil {
			return nil, err
		}
		out := make(map[string]string)
		for result.Next(context.Background()) {
			record := result.Record()
			field, _ := record.Get("field")
			value, _ := record.Get("value")
			out[field.(string)] = value.(string)
		}
		return out, result.Err()
	})
	if err != nil {
		return nil, err
	}
	return res.(map[string]string), nil
}

// SetAdd merges a :Member node keyed by (namespace,setKey,member).
func (s *Neo4jStore) SetAdd(namespace, setKey, member string) error {
	_, err := s.write(func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(context.Background(),
			`MERGE (n:Member {namespace: $ns, setKey: $setKey, member: $member})`,
			map[string]any{"ns": namespace, "setKey": setKey, "member": member})
		return nil, err
	})
	return err
}

// SetMembers returns every member stored under setKey.
func (s *Neo4jStore) SetMembers(namespace, setKey string) ([]string, error) {
	res, err := s.read(func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(context.Background(),
			`MATCH (n:Member {namespace: $ns, setKey: $setKey}) RETURN n.member AS member`,
			map[string]any{"ns": namespace, "setKey": setKey})
		if err != nil {
			return nil, err
		}
		var out []string
		for result.Next(context.Background()) {
			member, _ := result.Record().Get("member")
			out = append(out, member.(string))
		}
		return out, result.Err()
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.([]string), nil
}

// SeqPush appends a :Seq node at the next position under seqKey.
func (s *Neo4jStore) SeqPush(namespace, seqKey, value string) error {
	_, err := s.write(func(tx neo4j.ManagedTransaction) (any, error) {
		countResult, err := tx.Run(context.Background(),
			`MATCH (n:Seq {namespace: $ns, seqKey: $seqKey}) RETURN count(n) AS c`,
			map[string]any{"ns": namespace, "seqKey": seqKey})
		if err != nil {
			return nil, err
		}
		record, err := countResult.Single(context.Background())
		if err != nil {
			return nil, err
		}
		count, _ := record.Get("c")
		_, err = tx.Run(context.Background(),
			`CREATE (n:Seq {namespace: $ns, seqKey: $seqKey, position: $position, value: $value})`,
			map[string]any{"ns": namespace, "seqKey": seqKey, "position": count, "value": value})
		return nil, err
	})
	return err
}

// SeqGetAll returns every value stored under seqKey, ordered by position.
func (s *Neo4jStore) SeqGetAll(namespace, seqKey string) ([]string, error) {
	res, err := s.read(func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(context.Background(),
			`MATCH (n:Seq {namespace: $ns, seqKey: $seqKey}) RETURN n.value AS value ORDER BY n.position`,
			map[string]any{"ns": namespace, "seqKey": seqKey})
		if err != nil {
			return nil, err
		}
		var out []string
		for result.Next(context.Background()) {
			value, _ := result.Record().Get("value")
			out = append(out, value.(string))
		}
		return out, result.Err()
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.([]string), nil
}
