package scenario

import (
	"fmt"

	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/store"
)

// chainLength is the number of alpha predicates in the chain scenario:
// alpha0..alpha4, five predicates, four rules.
const chainLength = 5

// chainScenario builds the "chain of length 5" end-to-end case: rules
// alpha_i(x) => alpha_{i+1}(x) for i=0..3, hard evidence alpha0(m0)=1,
// target alpha4(m0). Training examples push each rule toward
// P(alpha_{i+1}=1|alpha_i=1) >= 0.9 so the evidence propagates to a high
// marginal at the end of the chain after 50 rounds.
func chainScenario() Scenario {
	return Scenario{
		Name: "chain",
		Setup: func(gs *store.GraphStore, entitiesPerDomain int) (logic.Proposition, map[string]float64, []TrainingExample, error) {
			if err := seedManDomain(gs, entitiesPerDomain); err != nil {
				return logic.Proposition{}, nil, nil, err
			}

			var rules []logic.ImplicationFactor
			for i := 0; i < chainLength-1; i++ {
				rule, err := unaryRule(alphaRelation(i), alphaRelation(i+1))
				if err != nil {
					return logic.Proposition{}, nil, nil, fmt.Errorf("chain scenario: rule %d: %w", i, err)
				}
				if err := gs.RegisterRelation(rule.Conclusion); err != nil {
					return logic.Proposition{}, nil, nil, err
				}
				if i == 0 {
					if err := gs.RegisterRelation(rule.Premises[0]); err != nil {
						return logic.Proposition{}, nil, nil, err
					}
				}
				if err := gs.StorePredicateImplication(rule); err != nil {
					return logic.Proposition{}, nil, nil, err
				}
				rules = append(rules, rule)
			}

			entity := manAt(0)
			target := groundUnary(alphaRelation(chainLength-1), entity)
			alpha0 := groundUnary(alphaRelation(0), entity)
			if err := gs.EnsureExistenceBacklinks(alpha0); err != nil {
				return logic.Proposition{}, nil, nil, err
			}
			evidence := map[string]float64{alpha0.Hash(): 1}

			// Each rule is trained toward P(conclusion=1|premise=1) >= 0.9:
			// one training example with the premise held true (gold-high)
			// and one with the premise held false (gold-low), so the
			// factor model learns the conditional rather than a constant
			// bias.
			var examples []TrainingExample
			for _, rule := range rules {
				examples = append(examples,
					TrainingExample{Rule: rule, Conclusion: groundConclusionAt(rule, entity), Gold: 0.97, Premises: []float64{1}},
					TrainingExample{Rule: rule, Conclusion: groundConclusionAt(rule, entity), Gold: 0.05, Premises: []float64{0}},
				)
			}

			return target, evidence, examples, nil
		},
	}
}

// alphaRelation names the i-th predicate in the chain, e.g. alphaRelation(0) == "alpha0".
func alphaRelation(i int) string {
	return fmt.Sprintf("alpha%d", i)
}
