package scenario

import (
	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/store"
)

// existencePriorScenario is the "one-variable existence prior" end-to-end
// case: a single entity, no declared rules (only the auto-generated
// existence backlink anchoring the target), one soft evidence value. The marginal must come back out exactly what was put
// in, not some pi*lambda recombination of it.
func existencePriorScenario() Scenario {
	return Scenario{
		Name: "existence_prior",
		Setup: func(gs *store.GraphStore, entitiesPerDomain int) (logic.Proposition, map[string]float64, []TrainingExample, error) {
			if err := seedManDomain(gs, entitiesPerDomain); err != nil {
				return logic.Proposition{}, nil, nil, err
			}

			if err := gs.RegisterRelation(logic.NewPredicateBuilder("exciting").Var("subject", domainMan).Build()); err != nil {
				return logic.Proposition{}, nil, nil, err
			}

			target := groundUnary("exciting", manAt(0))
			if err := gs.EnsureExistenceBacklinks(target); err != nil {
				return logic.Proposition{}, nil, nil, err
			}
			evidence := map[string]float64{target.Hash(): 0.3}
			return target, evidence, nil, nil
		},
	}
}
