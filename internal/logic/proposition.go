package logic

import (
	"sort"
	"strings"
)

// Proposition is a fully-ground Predicate: every role argument is a
// constant. Propositions are the atomic facts the rest of the engine
// reasons about.
type Proposition struct {
	Predicate Predicate
}

// NewProposition wraps a predicate as a Proposition. Callers that need the
// ground invariant enforced should call Validate.
func NewProposition(p Predicate) Proposition {
	return Proposition{Predicate: p}
}

// Validate reports an error if the underlying predicate is not ground.
func (p Proposition) Validate() error {
	if !p.Predicate.IsGround() {
		return newStructuralErrorf("proposition %s has unbound role", p.Predicate.HashString())
	}
	return nil
}

// Hash returns the canonical identity string used as a storage key
// everywhere: relation[role1=arg1,role2=arg2,...] sorted by role name.
func (p Proposition) Hash() string {
	return p.Predicate.HashString()
}

// SearchKeys enumerates the keys a rule store should be probed with to find
// every ImplicationFactor whose conclusion could have produced p.
func (p Proposition) SearchKeys() []string {
	return p.Predicate.SearchKeys()
}

// IsExistence reports whether this is the distinguished exists(x) atom,
// which has probability 1 by construction and no further expansion.
func (p Proposition) IsExistence() bool {
	return p.Predicate.IsExistence()
}

// PropositionGroup is an ordered conjunction of propositions, e.g. the
// premise of a grounded rule instance. Membership order is preserved for
// display but identity is order-insensitive: hashing sorts member hashes.
type PropositionGroup struct {
	Members []Proposition
}

// NewPropositionGroup builds a group from the given members in the order
// given.
func NewPropositionGroup(members ...Proposition) PropositionGroup {
	return PropositionGroup{Members: members}
}

// Hash is the concatenation of member hashes, sorted, so that groups with
// the same members in any order collide.
func (g PropositionGroup) Hash() string {
	hashes := make([]string, len(g.Members))
	for i, m := range g.Members {
		hashes[i] = m.Hash()
	}
	sort.Strings(hashes)
	return strings.Join(hashes, "&")
}

// Len returns the number of conjuncts.
func (g PropositionGroup) Len() int {
	return len(g.Members)
}
