package evidence

import (
	"fmt"

	"firstorder-bp/internal/logic"
)

// EmptyTable answers every non-existence lookup with "no observation" and
// refuses writes. It models a scenario that declares rules and a target but
// supplies no training labels, for callers that ask for inference with no
// supporting evidence at all.
type EmptyTable struct{}

// NewEmptyTable returns the stateless EmptyTable singleton value.
func NewEmptyTable() EmptyTable { return EmptyTable{} }

// Get returns (1, true) for the existence predicate and (0, false, nil)
// for everything else.
func (EmptyTable) Get(node logic.Node) (float64, bool, error) {
	if isExistenceNode(node) {
		return 1, true, nil
	}
	return 0, false, nil
}

// Put always fails: writing to an EmptyTable is a scenario-design bug,
// not a recoverable condition.
func (EmptyTable) Put(node logic.Node, probability float64) error {
	return fmt.Errorf("evidence: cannot Put %s into an EmptyTable", node.Hash())
}
