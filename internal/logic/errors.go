package logic

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per category from the error taxonomy. Callers use
// errors.Is to classify a failure without string matching.
var (
	// ErrStructural covers undeclared domains, unknown roles in a role-map,
	// and rule conclusions that reference unbound variables.
	ErrStructural = errors.New("structural error")

	// ErrUnification is raised by Substitute when a premise role cannot be
	// bound from the conclusion. Inside factor extraction this is caught and
	// treated as "rule does not apply", never surfaced to the caller.
	ErrUnification = errors.New("unification failed")

	// ErrDomainMismatch is a specific structural/unification error: a
	// constant's domain does not match the domain the role-map target
	// expects.
	ErrDomainMismatch = errors.New("domain mismatch")

	// ErrUnknownRole indicates a role-map is missing an entry for a role
	// that must be bound.
	ErrUnknownRole = errors.New("unknown role in role-map")
)

func newStructuralErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrStructural}, args...)...)
}
