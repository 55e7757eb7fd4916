// Package scenario declares the small set of built-in, self-contained
// training-and-inference setups cmd/inferctl can run end to end, in lieu
// of external scenario-generation scripts. Each Scenario
// populates a predicate graph store with domains, entities, rules, and
// evidence, and names the proposition to run inference against.
package scenario

import (
	"fmt"

	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/store"
)

// TrainingExample pairs a grounded rule instance with the gold probability
// its conclusion should have, used to drive Model.Train before inference.
// Conclusion is the ground proposition Rule is unified against to build the
// FactorContext (via logic.ExtractFactor); Premises holds one probability
// per incoming rule in that context, aligned by index (here always one,
// since each TrainingExample trains a single rule's premise-group cell).
// An example may leave Premises empty, in which case the trainer derives
// the premise-group probability from the scenario's evidence; every
// non-existence premise member must then carry an observation.
type TrainingExample struct {
	Rule       logic.ImplicationFactor
	Conclusion logic.Proposition
	Gold       float64
	Premises   []float64
}

// Scenario bundles a setup routine and the target proposition it grounds
// toward (--scenario_name: "unknown scenario" is a configuration error
// if the name isn't registered here).
type Scenario struct {
	Name string

	// Setup registers every domain/entity/rule this scenario needs with gs,
	// seeding entitiesPerDomain entities per domain where the scenario's
	// entity count scales with that flag, and returns the proposition to
	// run belief propagation against, the hard/soft evidence to load, and
	// the training examples to run through the factor model first.
	Setup func(gs *store.GraphStore, entitiesPerDomain int) (target logic.Proposition, evidence map[string]float64, examples []TrainingExample, err error)
}

var registry = map[string]Scenario{}

func register(s Scenario) {
	registry[s.Name] = s
}

// Lookup returns the named scenario, or an error wrapping
// ErrUnknownScenario if name was never registered.
func Lookup(name string) (Scenario, error) {
	s, ok := registry[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return s, nil
}

// Names returns every registered scenario name, for CLI help text.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

func init() {
	register(existencePriorScenario())
	register(chainScenario())
	register(triangleScenario())
	register(andConvergenceScenario(true))
	register(andConvergenceScenario(false))
	register(roleMapScenario())
}

// manAt returns the nth man entity name in a fixed, deterministic
// enumeration, e.g. manAt(0) == "m0".
func manAt(i int) string {
	return fmt.Sprintf("m%d", i)
}

// womanAt returns the nth woman entity name, e.g. womanAt(0) == "w0".
func womanAt(i int) string {
	return fmt.Sprintf("w%d", i)
}

var domainMan = logic.Domain("Man")
var domainWoman = logic.Domain("Woman")

func seedManDomain(gs *store.GraphStore, count int) error {
	if err := gs.RegisterDomain(domainMan); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := gs.StoreEntity(logic.Entity{Domain: domainMan, Name: manAt(i)}); err != nil {
			return err
		}
	}
	return nil
}

func seedWomanDomain(gs *store.GraphStore, count int) error {
	if err := gs.RegisterDomain(domainWoman); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := gs.StoreEntity(logic.Entity{Domain: domainWoman, Name: womanAt(i)}); err != nil {
			return err
		}
	}
	return nil
}

func unaryRule(premiseRelation, conclusionRelation string) (logic.ImplicationFactor, error) {
	return logic.NewRuleBuilder().
		Premise(
			logic.NewPredicateBuilder(premiseRelation).Var("subject", domainMan).Build(),
			logic.RoleMap{"subject": "subject"},
		).
		Concludes(logic.NewPredicateBuilder(conclusionRelation).Var("subject", domainMan).Build())
}

func groundUnary(relation, entity string) logic.Proposition {
	return logic.NewProposition(logic.NewPredicateBuilder(relation).Const("subject", domainMan, entity).Build())
}

// groundConclusionAt instantiates rule's conclusion predicate by binding
// every role to entity, regardless of that role's declared domain. Valid
// for the single-domain unary/binary-same-entity rules used by the chain,
// triangle, and AND-convergence training examples, where every premise and
// the conclusion range over the same entity.
func groundConclusionAt(rule logic.ImplicationFactor, entity string) logic.Proposition {
	roles := make([]logic.Role, len(rule.Conclusion.Roles))
	for i, r := range rule.Conclusion.Roles {
		roles[i] = logic.Role{Name: r.Name, Argument: logic.NewConstant(r.Argument.Domain(), entity)}
	}
	return logic.NewProposition(logic.NewPredicate(rule.Conclusion.Relation, roles...))
}

// FactorModelSeed is the one deterministic weight-table seed shared by every
// scenario, so repeated runs of the same scenario train identically.
const FactorModelSeed int64 = 11
