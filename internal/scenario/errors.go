package scenario

import "errors"

// ErrUnknownScenario is the sentinel Lookup wraps when --scenario_name or
// --test_scenario names a scenario this binary never registered.
var ErrUnknownScenario = errors.New("unknown scenario")
