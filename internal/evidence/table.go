// Package evidence implements the belief table: a lookup from a node's
// canonical hash to an observed probability, queried by the
// belief-propagation engine whenever it needs to know whether a node is
// evidence rather than computed.
//
// Three implementations share the Table contract: a store-backed
// persistent table, an always-empty table for cold runs with no training
// data, and an in-memory table for interactive or test use.
package evidence

import (
	"errors"

	"firstorder-bp/internal/logic"
)

// ErrMissingEvidence is returned where a concrete probability is required
// but no observation exists: a scenario-design bug, not a recoverable
// condition.
var ErrMissingEvidence = errors.New("missing evidence")

// Table is the belief-table contract BP consumes. Get returns
// (probability, true) when a value is known, or (0, false) when not.
// Existence propositions always return (1, true) regardless of backend.
type Table interface {
	Get(node logic.Node) (float64, bool, error)
	Put(node logic.Node, probability float64) error
}

// isExistenceNode reports whether n is the distinguished exists(x) single,
// which every Table implementation short-circuits to probability 1.
func isExistenceNode(n logic.Node) bool {
	return n.IsSingle() && n.Single().IsExistence()
}
