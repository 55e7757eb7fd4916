package main

import (
	"errors"

	"firstorder-bp/internal/config"
	"firstorder-bp/internal/evidence"
	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/scenario"
)

// Exit codes map the error taxonomy onto process exit status, so
// scripted callers can distinguish a configuration mistake from a
// structural rule-set bug from an unexpected unification failure without
// parsing stderr text.
const (
	exitOK                 = 0
	exitConfigurationError = 1
	exitStructuralError    = 2
	exitUnificationFailure = 3
	exitMissingEvidence    = 4
	exitPersistenceIOError = 5
	exitUnexpectedError    = 70
)

// exitCodeFor classifies err against the sentinel errors each owning
// package defines, falling back to exitUnexpectedError for anything
// unrecognized rather than guessing.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrConfiguration), errors.Is(err, scenario.ErrUnknownScenario):
		return exitConfigurationError
	// Checked before the structural case: Substitute's errors wrap
	// ErrUnification together with ErrUnknownRole or ErrDomainMismatch.
	case errors.Is(err, logic.ErrUnification):
		return exitUnificationFailure
	case errors.Is(err, logic.ErrStructural), errors.Is(err, logic.ErrDomainMismatch), errors.Is(err, logic.ErrUnknownRole):
		return exitStructuralError
	case errors.Is(err, evidence.ErrMissingEvidence):
		return exitMissingEvidence
	default:
		return exitUnexpectedError
	}
}
