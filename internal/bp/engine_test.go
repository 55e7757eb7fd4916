package bp

import (
	"math"
	"testing"

	"firstorder-bp/internal/evidence"
	"firstorder-bp/internal/factormodel"
	"firstorder-bp/internal/ground"
	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/metrics"
	"firstorder-bp/internal/store"
)

const manDomain = logic.Domain("Man")

func excitingOf(entity string) logic.Proposition {
	return logic.NewProposition(logic.NewPredicate("exciting",
		logic.Role{Name: "subject", Argument: logic.NewConstant(manDomain, entity)}))
}

// TestOneVariableExistencePrior grounds a target with no rules behind it
// and checks that a round of BP reproduces the supplied evidence exactly,
// not some pi*lambda recombination of it.
func TestOneVariableExistencePrior(t *testing.T) {
	backend := store.NewMemoryStore()
	gs := store.NewGraphStore(backend)
	builder := ground.NewBuilder(gs)

	target := excitingOf("m0")
	model, err := builder.Build(target)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	table := evidence.NewMemoryTable()
	if err := table.Put(logic.SingleNode(target), 0.3); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	factors := factormodel.NewModel(1)
	engine := NewEngine(model, factors, table)
	engine.Init()
	if err := engine.RunRounds(1); err != nil {
		t.Fatalf("RunRounds() error = %v", err)
	}

	got, err := engine.MarginalProposition(target)
	if err != nil {
		t.Fatalf("MarginalProposition() error = %v", err)
	}
	if got != 0.3 {
		t.Errorf("Marginal() = %f, want exactly 0.3", got)
	}
}

// TestExistenceIdentity checks that the marginal of an existence predicate
// is exactly 1 regardless of how many rounds run, since every evidence
// table treats it as observed at probability 1.
func TestExistenceIdentity(t *testing.T) {
	backend := store.NewMemoryStore()
	gs := store.NewGraphStore(backend)
	builder := ground.NewBuilder(gs)

	existsTarget := logic.NewProposition(logic.NewExistence(manDomain, logic.NewConstant(manDomain, "m0")))
	model, err := builder.Build(existsTarget)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	table := evidence.NewMemoryTable()
	factors := factormodel.NewModel(1)
	engine := NewEngine(model, factors, table)
	engine.Init()
	if err := engine.RunRounds(5); err != nil {
		t.Fatalf("RunRounds() error = %v", err)
	}

	got, err := engine.MarginalProposition(existsTarget)
	if err != nil {
		t.Fatalf("MarginalProposition() error = %v", err)
	}
	if got != 1 {
		t.Errorf("Marginal(exists) = %f, want exactly 1", got)
	}
}

// buildChain grounds a chain of n unary predicates over a single entity,
// alpha0 -> alpha1 -> ... -> alpha(n-1), each rule being alpha(i) => alpha(i+1)
// for the same subject. It returns the grounded model, the n-1 rules it
// stored (no factor model is built here), and the final proposition in the
// chain.
func buildChain(t *testing.T, n int) (*ground.Model, []logic.ImplicationFactor, logic.Proposition) {
	t.Helper()
	backend := store.NewMemoryStore()
	gs := store.NewGraphStore(backend)

	predicateOf := func(i int) logic.Predicate {
		return logic.NewPredicate(predicateName(i),
			logic.Role{Name: "subject", Argument: logic.NewVariable(manDomain)})
	}
	groundOf := func(i int, entity string) logic.Proposition {
		return logic.NewProposition(logic.NewPredicate(predicateName(i),
			logic.Role{Name: "subject", Argument: logic.NewConstant(manDomain, entity)}))
	}

	var rules []logic.ImplicationFactor
	for i := 0; i < n-1; i++ {
		rule, err := logic.NewImplicationFactor(
			[]logic.Predicate{predicateOf(i)},
			logic.NewGroupRoleMap(logic.RoleMap{"subject": "subject"}),
			predicateOf(i+1),
		)
		if err != nil {
			t.Fatalf("NewImplicationFactor() error = %v", err)
		}
		if err := gs.StorePredicateImplication(rule); err != nil {
			t.Fatalf("StorePredicateImplication() error = %v", err)
		}
		rules = append(rules, rule)
	}

	target := groundOf(n-1, "m0")
	builder := ground.NewBuilder(gs)
	model, err := builder.Build(target)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return model, rules, target
}

func predicateName(i int) string {
	return "alpha" + string(rune('0'+i))
}

// TestChainPropagatesHighEvidence builds a chain of 5 predicates, trains
// every link toward an almost-certain implication, fixes alpha0 = 1, and
// checks the marginal at the end of the chain comes out high after enough
// rounds.
func TestChainPropagatesHighEvidence(t *testing.T) {
	model, rules, target := buildChain(t, 5)

	factors := factormodel.NewModel(7)
	for _, rule := range rules {
		factors.InitializeRule(rule)
		factor, ok, err := logic.ExtractFactor(rule, logic.NewProposition(groundConclusion(rule, "m0")))
		if err != nil || !ok {
			t.Fatalf("ExtractFactor() ok=%v err=%v", ok, err)
		}
		ctx := factormodel.FactorContext{Factors: []logic.PropositionFactor{factor}, GroupProbabilities: []float64{1}}
		for i := 0; i < 500; i++ {
			factors.Train(ctx, 0.97)
		}
	}

	table := evidence.NewMemoryTable()
	alpha0 := logic.NewProposition(logic.NewPredicate("alpha0",
		logic.Role{Name: "subject", Argument: logic.NewConstant(manDomain, "m0")}))
	if err := table.Put(logic.SingleNode(alpha0), 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	engine := NewEngine(model, factors, table)
	engine.Init()
	if err := engine.RunRounds(50); err != nil {
		t.Fatalf("RunRounds() error = %v", err)
	}

	got, err := engine.MarginalProposition(target)
	if err != nil {
		t.Fatalf("MarginalProposition() error = %v", err)
	}
	if got < 0.7 {
		t.Errorf("Marginal(chain end) = %f, want >= 0.7 after strong evidence propagates", got)
	}
}

func groundConclusion(rule logic.ImplicationFactor, entity string) logic.Predicate {
	roles := make([]logic.Role, len(rule.Conclusion.Roles))
	for i, r := range rule.Conclusion.Roles {
		roles[i] = logic.Role{Name: r.Name, Argument: logic.NewConstant(r.Argument.Domain(), entity)}
	}
	return logic.NewPredicate(rule.Conclusion.Relation, roles...)
}

// TestNormalizationInvariant checks belief(N,0)+belief(N,1) == 1 for a
// non-observed derived node after a round, using the un-normalized pi*lambda
// product directly (the invariant the marginal readout relies on).
func TestNormalizationInvariant(t *testing.T) {
	model, rules, target := buildChain(t, 2)
	factors := factormodel.NewModel(3)
	factors.InitializeRule(rules[0])

	table := evidence.NewMemoryTable()
	alpha0 := logic.NewProposition(logic.NewPredicate("alpha0",
		logic.Role{Name: "subject", Argument: logic.NewConstant(manDomain, "m0")}))
	if err := table.Put(logic.SingleNode(alpha0), 0.8); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	engine := NewEngine(model, factors, table)
	engine.Init()
	if err := engine.RunRounds(1); err != nil {
		t.Fatalf("RunRounds() error = %v", err)
	}

	hash := logic.SingleNode(target).Hash()
	belief0 := engine.piVal[valueKey{hash, 0}] * engine.lambdaVal[valueKey{hash, 0}]
	belief1 := engine.piVal[valueKey{hash, 1}] * engine.lambdaVal[valueKey{hash, 1}]
	total := belief0 + belief1
	if math.Abs(total-1) > 1e-9 {
		t.Errorf("belief0+belief1 = %f, want 1 (before normalization, pi values are already probabilities)", total)
	}
}

// TestTreeExactnessAgainstEnumeration checks that one full round over a
// two-node chain reproduces the brute-force marginal: with soft evidence
// p0 on alpha0, P(alpha1=1) = p0*P(1|premise=1) + (1-p0)*P(1|premise=0),
// where the conditionals come straight from the factor model.
func TestTreeExactnessAgainstEnumeration(t *testing.T) {
	model, rules, target := buildChain(t, 2)
	factors := factormodel.NewModel(13)
	factors.InitializeRule(rules[0])

	factor, ok, err := logic.ExtractFactor(rules[0], logic.NewProposition(groundConclusion(rules[0], "m0")))
	if err != nil || !ok {
		t.Fatalf("ExtractFactor() ok=%v err=%v", ok, err)
	}
	ctxTrue := factormodel.FactorContext{Factors: []logic.PropositionFactor{factor}, GroupProbabilities: []float64{1}}
	ctxFalse := factormodel.FactorContext{Factors: []logic.PropositionFactor{factor}, GroupProbabilities: []float64{0}}
	for i := 0; i < 300; i++ {
		factors.Train(ctxTrue, 0.9)
		factors.Train(ctxFalse, 0.1)
	}

	const p0 = 0.8
	table := evidence.NewMemoryTable()
	alpha0 := logic.NewProposition(logic.NewPredicate("alpha0",
		logic.Role{Name: "subject", Argument: logic.NewConstant(manDomain, "m0")}))
	if err := table.Put(logic.SingleNode(alpha0), p0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	engine := NewEngine(model, factors, table)
	engine.Init()
	if err := engine.RunRounds(1); err != nil {
		t.Fatalf("RunRounds() error = %v", err)
	}
	got, err := engine.MarginalProposition(target)
	if err != nil {
		t.Fatalf("MarginalProposition() error = %v", err)
	}

	want := p0*factors.Predict(ctxTrue) + (1-p0)*factors.Predict(ctxFalse)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("marginal = %.12f, enumeration gives %.12f, want agreement within 1e-9", got, want)
	}
}

// TestIdempotentRoundsOnTree checks that running a second full round over a
// tree-shaped grounding leaves every marginal unchanged: a single
// pi-sweep/lambda-sweep pair already reaches the fixed point on a tree.
func TestIdempotentRoundsOnTree(t *testing.T) {
	model, rules, target := buildChain(t, 4)
	factors := factormodel.NewModel(9)
	for _, rule := range rules {
		factors.InitializeRule(rule)
	}

	table := evidence.NewMemoryTable()
	alpha0 := logic.NewProposition(logic.NewPredicate("alpha0",
		logic.Role{Name: "subject", Argument: logic.NewConstant(manDomain, "m0")}))
	if err := table.Put(logic.SingleNode(alpha0), 0.6); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	engine := NewEngine(model, factors, table)
	engine.Init()
	if err := engine.RunRounds(1); err != nil {
		t.Fatalf("RunRounds() error = %v", err)
	}
	firstRound, err := engine.MarginalProposition(target)
	if err != nil {
		t.Fatalf("MarginalProposition() error = %v", err)
	}

	if err := engine.RunRounds(49); err != nil {
		t.Fatalf("RunRounds() error = %v", err)
	}
	laterRound, err := engine.MarginalProposition(target)
	if err != nil {
		t.Fatalf("MarginalProposition() error = %v", err)
	}

	if firstRound != laterRound {
		t.Errorf("marginal drifted across rounds on a tree: round1=%f round50=%f", firstRound, laterRound)
	}
}

// TestRunRoundsRecordsOnCollector checks that an Engine with a Collector
// attached records both a round_marginal and a round_duration measurement
// per round, independently of whether a Logger is also attached.
func TestRunRoundsRecordsOnCollector(t *testing.T) {
	model, rules, target := buildChain(t, 2)
	factors := factormodel.NewModel(5)
	for _, rule := range rules {
		factors.InitializeRule(rule)
	}

	table := evidence.NewMemoryTable()
	alpha0 := logic.NewProposition(logic.NewPredicate("alpha0",
		logic.Role{Name: "subject", Argument: logic.NewConstant(manDomain, "m0")}))
	if err := table.Put(logic.SingleNode(alpha0), 0.6); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	engine := NewEngine(model, factors, table)
	collector := metrics.NewCollector()
	engine.Collector = collector
	engine.Init()
	if err := engine.RunRounds(3); err != nil {
		t.Fatalf("RunRounds() error = %v", err)
	}

	var marginals, durations int
	for _, v := range collector.Snapshot() {
		switch v.Type {
		case metrics.MetricRoundMarginal:
			if v.Label == logic.SingleNode(target).Hash() {
				marginals++
			}
		case metrics.MetricRoundDuration:
			durations++
		}
	}
	if marginals != 3 {
		t.Errorf("got %d round_marginal records for target, want 3 (one per round)", marginals)
	}
	if durations != 3 {
		t.Errorf("got %d round_duration records, want 3 (one per round)", durations)
	}
}

// TestFanOutMatchesFullRoundOnChain checks that driving inference by
// repeatedly fanning out from the one observed node reaches the same
// marginal a full-round schedule does, on a polytree where both schedules
// visit every node each round.
func TestFanOutMatchesFullRoundOnChain(t *testing.T) {
	model, rules, target := buildChain(t, 3)
	factors := factormodel.NewModel(11)
	for _, rule := range rules {
		factors.InitializeRule(rule)
	}

	alpha0 := logic.NewProposition(logic.NewPredicate("alpha0",
		logic.Role{Name: "subject", Argument: logic.NewConstant(manDomain, "m0")}))

	fullTable := evidence.NewMemoryTable()
	if err := fullTable.Put(logic.SingleNode(alpha0), 0.8); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	fullEngine := NewEngine(model, factors, fullTable)
	fullEngine.Init()
	if err := fullEngine.RunRounds(10); err != nil {
		t.Fatalf("RunRounds() error = %v", err)
	}
	wantMarginal, err := fullEngine.MarginalProposition(target)
	if err != nil {
		t.Fatalf("MarginalProposition() error = %v", err)
	}

	fanOutTable := evidence.NewMemoryTable()
	if err := fanOutTable.Put(logic.SingleNode(alpha0), 0.8); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	fanOutEngine := NewEngine(model, factors, fanOutTable)
	fanOutEngine.Init()
	alpha0Hash := logic.SingleNode(alpha0).Hash()
	for i := 0; i < 10; i++ {
		if err := fanOutEngine.DoFanOutFrom(alpha0Hash); err != nil {
			t.Fatalf("DoFanOutFrom() error = %v", err)
		}
	}
	gotMarginal, err := fanOutEngine.MarginalProposition(target)
	if err != nil {
		t.Fatalf("MarginalProposition() error = %v", err)
	}

	if math.Abs(gotMarginal-wantMarginal) > 1e-9 {
		t.Errorf("fan-out marginal = %f, want %f (full round) within 1e-9", gotMarginal, wantMarginal)
	}
}
