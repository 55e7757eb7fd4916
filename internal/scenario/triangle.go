package scenario

import (
	"fmt"

	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/store"
)

// triangleScenario builds the "two-hop triangle" end-to-end case:
// charming(x) => rich(x); charming(x) & rich(x) =>
// baller(x). Trained so P(rich=1|charming=1)=0.7, P(rich=1|charming=0)=0.2,
// P(baller=1|charming=1,rich=1)=1, then charming(m0)=1 evidence should
// push baller(m0)'s marginal to >= 0.7.
func triangleScenario() Scenario {
	return Scenario{
		Name: "triangle",
		Setup: func(gs *store.GraphStore, entitiesPerDomain int) (logic.Proposition, map[string]float64, []TrainingExample, error) {
			if err := seedManDomain(gs, entitiesPerDomain); err != nil {
				return logic.Proposition{}, nil, nil, err
			}

			charmingToRich, err := unaryRule("charming", "rich")
			if err != nil {
				return logic.Proposition{}, nil, nil, fmt.Errorf("triangle scenario: charming=>rich: %w", err)
			}

			charmingAndRichToBaller, err := logic.NewRuleBuilder().
				Premise(logic.NewPredicateBuilder("charming").Var("subject", domainMan).Build(), logic.RoleMap{"subject": "subject"}).
				Premise(logic.NewPredicateBuilder("rich").Var("subject", domainMan).Build(), logic.RoleMap{"subject": "subject"}).
				Concludes(logic.NewPredicateBuilder("baller").Var("subject", domainMan).Build())
			if err != nil {
				return logic.Proposition{}, nil, nil, fmt.Errorf("triangle scenario: charming&rich=>baller: %w", err)
			}

			for _, rule := range []logic.ImplicationFactor{charmingToRich, charmingAndRichToBaller} {
				if err := gs.RegisterRelation(rule.Conclusion); err != nil {
					return logic.Proposition{}, nil, nil, err
				}
				if err := gs.StorePredicateImplication(rule); err != nil {
					return logic.Proposition{}, nil, nil, err
				}
			}
			if err := gs.RegisterRelation(charmingToRich.Premises[0]); err != nil {
				return logic.Proposition{}, nil, nil, err
			}

			entity := manAt(0)
			target := groundUnary("baller", entity)
			charming := groundUnary("charming", entity)
			evidence := map[string]float64{charming.Hash(): 1}

			examples := []TrainingExample{
				{Rule: charmingToRich, Conclusion: groundConclusionAt(charmingToRich, entity), Gold: 0.7, Premises: []float64{1}},
				{Rule: charmingToRich, Conclusion: groundConclusionAt(charmingToRich, entity), Gold: 0.2, Premises: []float64{0}},
				{Rule: charmingAndRichToBaller, Conclusion: groundConclusionAt(charmingAndRichToBaller, entity), Gold: 1, Premises: []float64{1}},
				{Rule: charmingAndRichToBaller, Conclusion: groundConclusionAt(charmingAndRichToBaller, entity), Gold: 0, Premises: []float64{0}},
			}

			return target, evidence, examples, nil
		},
	}
}
