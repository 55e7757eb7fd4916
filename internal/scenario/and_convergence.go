package scenario

import (
	"fmt"

	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/store"
)

// andConvergenceScenario builds the "AND convergence" end-to-end case:
// alpha(x) & beta(x) => gamma(x), trained so
// P(gamma=1|1,1) ~= 0.95. When bothTrue is true the evidence sets both
// alpha(m0) and beta(m0) to 1, so gamma(m0)'s marginal should land >= 0.9;
// when false, beta(m0) is set to 0, so the conjunction should drive
// gamma(m0) down to <= 0.2 even though alpha(m0) alone is true. Registered
// as two scenarios ("and_convergence_true"/"and_convergence_false") since a
// Scenario fixes one evidence set per run.
func andConvergenceScenario(bothTrue bool) Scenario {
	name := "and_convergence_true"
	if !bothTrue {
		name = "and_convergence_false"
	}

	return Scenario{
		Name: name,
		Setup: func(gs *store.GraphStore, entitiesPerDomain int) (logic.Proposition, map[string]float64, []TrainingExample, error) {
			if err := seedManDomain(gs, entitiesPerDomain); err != nil {
				return logic.Proposition{}, nil, nil, err
			}

			rule, err := logic.NewRuleBuilder().
				Premise(logic.NewPredicateBuilder("alpha").Var("subject", domainMan).Build(), logic.RoleMap{"subject": "subject"}).
				Premise(logic.NewPredicateBuilder("beta").Var("subject", domainMan).Build(), logic.RoleMap{"subject": "subject"}).
				Concludes(logic.NewPredicateBuilder("gamma").Var("subject", domainMan).Build())
			if err != nil {
				return logic.Proposition{}, nil, nil, fmt.Errorf("and convergence scenario: %w", err)
			}
			if err := gs.RegisterRelation(rule.Conclusion); err != nil {
				return logic.Proposition{}, nil, nil, err
			}
			if err := gs.StorePredicateImplication(rule); err != nil {
				return logic.Proposition{}, nil, nil, err
			}

			entity := manAt(0)
			target := groundUnary("gamma", entity)
			alpha := groundUnary("alpha", entity)
			beta := groundUnary("beta", entity)

			betaValue := 1.0
			if !bothTrue {
				betaValue = 0
			}
			evidence := map[string]float64{
				alpha.Hash(): 1,
				beta.Hash():  betaValue,
			}

			examples := []TrainingExample{
				{Rule: rule, Conclusion: groundConclusionAt(rule, entity), Gold: 0.95, Premises: []float64{1}},
				{Rule: rule, Conclusion: groundConclusionAt(rule, entity), Gold: 0.02, Premises: []float64{0}},
			}

			return target, evidence, examples, nil
		},
	}
}
