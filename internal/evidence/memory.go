package evidence

import (
	"sync"

	"firstorder-bp/internal/logic"
)

// MemoryTable is a process-local Table backed by a plain map, keyed by
// node hash. It supports Clear for interactive or test use where the same
// process re-runs inference with a fresh set of observations.
type MemoryTable struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewMemoryTable creates an empty in-memory belief table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{values: make(map[string]float64)}
}

// Get returns the stored probability for node's hash, or (1, true) for the
// existence predicate regardless of what is stored.
func (t *MemoryTable) Get(node logic.Node) (float64, bool, error) {
	if isExistenceNode(node) {
		return 1, true, nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.values[node.Hash()]
	return p, ok, nil
}

// Put records probability for node's hash.
func (t *MemoryTable) Put(node logic.Node, probability float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values[node.Hash()] = probability
	return nil
}

// Clear removes every stored observation, leaving the existence shortcut
// (which is not materialized in the map) unaffected.
func (t *MemoryTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values = make(map[string]float64)
}

// Len returns the number of explicitly-stored observations.
func (t *MemoryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.values)
}
