package scenario

import (
	"fmt"

	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/store"
)

// roleMapScenario builds the "role-map substitution" end-to-end case:
// predicates like(sub,obj) and date(sub,obj); rule
// like(sub=A,obj=B) & like(sub=B,obj=A) => date(sub=A,obj=B). Grounding
// date(sub=m0,obj=w0) must produce the single group
// {like(sub=m0,obj=w0), like(sub=w0,obj=m0)} and no others from this rule,
// exercising a role-map that swaps roles between the two premise
// occurrences of the same relation.
func roleMapScenario() Scenario {
	return Scenario{
		Name: "role_map",
		Setup: func(gs *store.GraphStore, entitiesPerDomain int) (logic.Proposition, map[string]float64, []TrainingExample, error) {
			if err := seedManDomain(gs, entitiesPerDomain); err != nil {
				return logic.Proposition{}, nil, nil, err
			}
			if err := seedWomanDomain(gs, entitiesPerDomain); err != nil {
				return logic.Proposition{}, nil, nil, err
			}

			likeForward := logic.NewPredicateBuilder("like").Var("sub", domainMan).Var("obj", domainWoman).Build()
			likeReverse := logic.NewPredicateBuilder("like").Var("sub", domainWoman).Var("obj", domainMan).Build()
			date := logic.NewPredicateBuilder("date").Var("sub", domainMan).Var("obj", domainWoman).Build()

			rule, err := logic.NewRuleBuilder().
				Premise(likeForward, logic.RoleMap{"sub": "sub", "obj": "obj"}).
				Premise(likeReverse, logic.RoleMap{"sub": "obj", "obj": "sub"}).
				Concludes(date)
			if err != nil {
				return logic.Proposition{}, nil, nil, fmt.Errorf("role map scenario: %w", err)
			}
			if err := gs.RegisterRelation(likeForward); err != nil {
				return logic.Proposition{}, nil, nil, err
			}
			if err := gs.RegisterRelation(date); err != nil {
				return logic.Proposition{}, nil, nil, err
			}
			if err := gs.StorePredicateImplication(rule); err != nil {
				return logic.Proposition{}, nil, nil, err
			}

			man, woman := manAt(0), womanAt(0)
			target := logic.NewProposition(logic.NewPredicateBuilder("date").
				Const("sub", domainMan, man).Const("obj", domainWoman, woman).Build())
			likeMW := logic.NewProposition(logic.NewPredicateBuilder("like").
				Const("sub", domainMan, man).Const("obj", domainWoman, woman).Build())
			likeWM := logic.NewProposition(logic.NewPredicateBuilder("like").
				Const("sub", domainWoman, woman).Const("obj", domainMan, man).Build())

			evidence := map[string]float64{
				likeMW.Hash(): 1,
				likeWM.Hash(): 1,
			}
			examples := []TrainingExample{
				{Rule: rule, Conclusion: target, Gold: 0.95, Premises: []float64{1}},
				{Rule: rule, Conclusion: target, Gold: 0.05, Premises: []float64{0}},
			}

			return target, evidence, examples, nil
		},
	}
}
