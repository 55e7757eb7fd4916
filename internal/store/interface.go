// Package store provides the persistence substrate for the predicate
// graph: domains, entities, relations, rule implications and their
// backward-link index, and named inference targets.
//
// Every backend (in-memory, SQLite, Neo4j) implements the same small set
// of namespaced collection primitives; the domain-specific operations in
// graphstore.go are built once, on top of this interface, so adding a new
// backend never requires re-deriving the predicate-store logic.
package store

// Store is the generic KV/collection substrate a predicate-graph backend
// must provide. All keys are scoped by namespace so a single physical store
// (one SQLite file, one Neo4j database) can hold multiple logical stores
// without collision.
type Store interface {
	// KVPut/KVGet implement a flat string->string key-value table.
	KVPut(namespace, key, value string) error
	KVGet(namespace, key string) (string, bool, error)

	// MapPut/MapGet implement a hash-of-hashes: namespace -> mapKey -> field -> value.
	MapPut(namespace, mapKey, field, value string) error
	MapGet(namespace, mapKey, field string) (string, bool, error)
	MapGetAll(namespace, mapKey string) (map[string]string, error)

	// SetAdd/SetMembers implement a namespace -> setKey -> {member} set.
	SetAdd(namespace, setKey, member string) error
	SetMembers(namespace, setKey string) ([]string, error)

	// SeqPush/SeqGetAll implement a namespace -> seqKey -> [value] append-only list.
	SeqPush(namespace, seqKey, value string) error
	SeqGetAll(namespace, seqKey string) ([]string, error)
}
