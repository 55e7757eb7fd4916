package evidence

import (
	"strconv"

	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/store"
)

// probsNamespace is the conventional key namespace persisted
// observations live under: one KV slot per node hash inside it.
const probsNamespace = "probs"

// PersistentTable reads and writes observed probabilities through a
// store.Store's KV primitives, so training labels and evidence outlive a
// single process.
type PersistentTable struct {
	backend store.Store
}

// NewPersistentTable wraps backend as a belief table.
func NewPersistentTable(backend store.Store) *PersistentTable {
	return &PersistentTable{backend: backend}
}

// Get looks up node's stored probability under the probs namespace.
func (t *PersistentTable) Get(node logic.Node) (float64, bool, error) {
	if isExistenceNode(node) {
		return 1, true, nil
	}
	raw, ok, err := t.backend.KVGet(probsNamespace, node.Hash())
	if err != nil || !ok {
		return 0, false, err
	}
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, err
	}
	return p, true, nil
}

// Put persists probability under node's hash.
func (t *PersistentTable) Put(node logic.Node, probability float64) error {
	return t.backend.KVPut(probsNamespace, node.Hash(), strconv.FormatFloat(probability, 'g', -1, 64))
}
