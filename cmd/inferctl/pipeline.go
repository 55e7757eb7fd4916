package main

import (
	"fmt"
	"io"

	"firstorder-bp/internal/bp"
	"firstorder-bp/internal/config"
	"firstorder-bp/internal/evidence"
	"firstorder-bp/internal/factormodel"
	"firstorder-bp/internal/ground"
	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/metrics"
	"firstorder-bp/internal/scenario"
	"firstorder-bp/internal/store"
)

// trainingIterations is the number of SGD passes run over each training
// example, matching the iteration count this repo's own scenario tests use
// to reach the scenarios' stated convergence thresholds.
const trainingIterations = 500

// runResult bundles everything one invocation reports back to root.go, so
// RunE can format output and pick an exit code without re-deriving any of
// it.
type runResult struct {
	TargetHash          string
	Marginal            float64
	FactorStats         map[string]int64
	AverageTrainingLoss float64
	LossAlerting        bool
	TestScenario        *testScenarioResult
	TestExample         *testExampleResult
}

// testScenarioResult is the secondary run --test_scenario triggers:
// ground, train, and run a second registered scenario independently of the
// primary one, for comparing two setups in one invocation.
type testScenarioResult struct {
	Name       string
	TargetHash string
	Marginal   float64
}

// testExampleResult reports what the factor model would have predicted for
// one of the primary scenario's training examples before any SGD update
// ran against it, alongside the gold label it was trained toward
// (--test_example: a diagnostic, not a held-out generalization check, since
// this engine's scenarios have no separate test set).
type testExampleResult struct {
	Index           int
	Rule            string
	GoldProbability float64
	PredictedBefore float64
}

// options bundles the CLI-level overrides root.go collects from flags on
// top of the loaded config.Config.
type options struct {
	TestScenario string
	TestExample  int // -1 means "not requested"
	LogWriter    io.Writer
}

// run executes the full declare -> ground -> train -> infer -> report
// pipeline for cfg.Engine.ScenarioName, plus whatever opts.TestScenario
// / opts.TestExample request.
func run(cfg *config.Config, opts options) (*runResult, error) {
	backend, err := store.New(storeConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("constructing store backend: %w", err)
	}
	defer func() { _ = store.Close(backend) }()

	sharedMetrics := metrics.NewFactorMetrics()
	sharedCollector := metrics.NewCollector()
	gs := store.NewGraphStoreSized(backend, cfg.Store.RuleCacheSize)
	factors := factormodel.NewModel(cfg.Training.Seed)
	factors.SetMetrics(sharedMetrics)
	factors.SetCollector(sharedCollector)
	factors.SetPrintTrainingLoss(cfg.Features.PrintTrainingLoss)

	if cfg.Features.PersistWeights {
		persisted, err := gs.LoadWeights()
		if err != nil {
			return nil, fmt.Errorf("loading persisted weights: %w", err)
		}
		factors.LoadWeights(persisted)
	}

	s, err := scenario.Lookup(cfg.Engine.ScenarioName)
	if err != nil {
		return nil, err
	}
	target, evidenceValues, examples, err := s.Setup(gs, cfg.Engine.EntitiesPerDomain)
	if err != nil {
		return nil, fmt.Errorf("scenario %q setup: %w", cfg.Engine.ScenarioName, err)
	}

	result := &runResult{}
	if opts.TestExample >= 0 {
		ter, err := evaluateTestExample(factors, examples, evidenceValues, opts.TestExample)
		if err != nil {
			return nil, err
		}
		result.TestExample = ter
	}

	if err := trainExamples(factors, examples, evidenceValues); err != nil {
		return nil, fmt.Errorf("scenario %q training: %w", cfg.Engine.ScenarioName, err)
	}

	if cfg.Features.PersistWeights {
		if err := gs.SaveWeights(factors.SnapshotWeights()); err != nil {
			return nil, fmt.Errorf("persisting weights: %w", err)
		}
	}

	marginal, err := groundAndInfer(gs, factors, sharedMetrics, sharedCollector, target, evidenceValues, cfg.Engine.MaxRounds, cfg.Features.FanOutUpdates, opts.LogWriter)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", cfg.Engine.ScenarioName, err)
	}
	result.TargetHash = target.Hash()
	result.Marginal = marginal
	result.FactorStats = sharedMetrics.GetStats()
	result.AverageTrainingLoss = sharedCollector.AverageLoss()
	result.LossAlerting = sharedCollector.IsAlerting()

	if opts.TestScenario != "" {
		tsr, err := runTestScenario(opts.TestScenario, cfg.Engine.EntitiesPerDomain, cfg.Engine.MaxRounds, cfg.Training.Seed, cfg.Features.FanOutUpdates)
		if err != nil {
			return nil, err
		}
		result.TestScenario = tsr
	}

	return result, nil
}

// runTestScenario grounds, trains, and infers a second named scenario in
// total isolation (its own store, its own factor model), so --test_scenario
// never shares weights or a predicate graph with the primary run.
func runTestScenario(name string, entitiesPerDomain, rounds int, seed int64, fanOut bool) (*testScenarioResult, error) {
	gs := store.NewGraphStore(store.NewMemoryStore())
	factors := factormodel.NewModel(seed)

	s, err := scenario.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("test scenario: %w", err)
	}
	target, evidenceValues, examples, err := s.Setup(gs, entitiesPerDomain)
	if err != nil {
		return nil, fmt.Errorf("test scenario %q setup: %w", name, err)
	}
	if err := trainExamples(factors, examples, evidenceValues); err != nil {
		return nil, fmt.Errorf("test scenario %q training: %w", name, err)
	}
	marginal, err := groundAndInfer(gs, factors, metrics.NewFactorMetrics(), metrics.NewCollector(), target, evidenceValues, rounds, fanOut, nil)
	if err != nil {
		return nil, fmt.Errorf("test scenario %q: %w", name, err)
	}
	return &testScenarioResult{Name: name, TargetHash: target.Hash(), Marginal: marginal}, nil
}

// groundAndInfer builds the grounded DAG for target, loads evidenceValues,
// runs rounds of belief propagation, and returns target's marginal.
// When fanOut is set (config.FeatureFlags.FanOutUpdates), each round
// recomputes only the neighborhood reachable from the observed nodes via
// bp.Engine.DoFanOutFrom instead of a full forward+backward sweep over
// every node: the incremental scheduler for re-running inference after
// evidence changes, applied once per observed node per round.
func groundAndInfer(gs *store.GraphStore, factors *factormodel.Model, factorMetrics *metrics.FactorMetrics, collector *metrics.Collector, target logic.Proposition, evidenceValues map[string]float64, rounds int, fanOut bool, logWriter io.Writer) (float64, error) {
	builder := ground.NewBuilder(gs)
	builder.SetMetrics(factorMetrics)
	model, err := builder.Build(target)
	if err != nil {
		return 0, fmt.Errorf("grounding: %w", err)
	}

	table := evidence.NewMemoryTable()
	observed := loadEvidence(model, table, evidenceValues)

	engine := bp.NewEngine(model, factors, table)
	if logWriter != nil {
		engine.Logger = bp.NewNDJSONLogger(logWriter)
	}
	engine.Collector = collector
	engine.Init()

	if fanOut && len(observed) > 0 {
		if err := runFanOutRounds(engine, observed, rounds); err != nil {
			return 0, fmt.Errorf("inference: %w", err)
		}
	} else if err := engine.RunRounds(rounds); err != nil {
		return 0, fmt.Errorf("inference: %w", err)
	}

	marginal, err := engine.MarginalProposition(target)
	if err != nil {
		return 0, fmt.Errorf("marginal readout: %w", err)
	}
	return marginal, nil
}

// runFanOutRounds re-runs DoFanOutFrom for every observed node, rounds
// times, instead of engine.RunRounds's full sweep.
func runFanOutRounds(engine *bp.Engine, observed []string, rounds int) error {
	for i := 0; i < rounds; i++ {
		for _, hash := range observed {
			if err := engine.DoFanOutFrom(hash); err != nil {
				return err
			}
		}
	}
	return nil
}

// evaluateTestExample scores examples[index] with the factor model's
// current (pre-training) weights, so the caller can see what the model
// would have predicted before the update that trains it toward its gold
// label.
func evaluateTestExample(factors *factormodel.Model, examples []scenario.TrainingExample, evidenceValues map[string]float64, index int) (*testExampleResult, error) {
	if index < 0 || index >= len(examples) {
		return nil, fmt.Errorf("--test_example %d out of range: scenario has %d training examples", index, len(examples))
	}
	ex := examples[index]
	factors.InitializeRule(ex.Rule)
	factor, ok, err := logic.ExtractFactor(ex.Rule, ex.Conclusion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("--test_example %d: rule does not unify against its own conclusion %s", index, ex.Conclusion.Hash())
	}
	premises := ex.Premises
	if len(premises) == 0 {
		p, err := premiseGroupProbability(factor, evidenceValues)
		if err != nil {
			return nil, err
		}
		premises = []float64{p}
	}
	ctx := factormodel.FactorContext{
		Factors:            []logic.PropositionFactor{factor},
		GroupProbabilities: premises,
	}
	predicted := factors.Predict(ctx)
	return &testExampleResult{
		Index:           index,
		Rule:            ex.Rule.UniqueKey(),
		GoldProbability: ex.Gold,
		PredictedBefore: predicted,
	}, nil
}

// trainExamples runs trainingIterations SGD passes over each example,
// extracting that example's FactorContext fresh against its rule and
// ground conclusion. An example that carries no explicit premise
// probability has one derived from the scenario's evidence instead.
func trainExamples(factors *factormodel.Model, examples []scenario.TrainingExample, evidenceValues map[string]float64) error {
	for _, ex := range examples {
		factors.InitializeRule(ex.Rule)
		factor, ok, err := logic.ExtractFactor(ex.Rule, ex.Conclusion)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("training example's rule does not unify against its own conclusion %s", ex.Conclusion.Hash())
		}
		premises := ex.Premises
		if len(premises) == 0 {
			p, err := premiseGroupProbability(factor, evidenceValues)
			if err != nil {
				return err
			}
			premises = []float64{p}
		}
		ctx := factormodel.FactorContext{
			Factors:            []logic.PropositionFactor{factor},
			GroupProbabilities: premises,
		}
		for i := 0; i < trainingIterations; i++ {
			factors.Train(ctx, ex.Gold)
		}
	}
	return nil
}

// premiseGroupProbability derives a training example's premise-group
// probability from the scenario's evidence: the product of each member's
// observed probability, with existence members contributing 1. Every
// non-existence member must be observed; training cannot proceed on a
// premise with no probability at all.
func premiseGroupProbability(factor logic.PropositionFactor, evidenceValues map[string]float64) (float64, error) {
	p := 1.0
	for _, member := range factor.Premise.Members {
		if member.IsExistence() {
			continue
		}
		v, ok := evidenceValues[member.Hash()]
		if !ok {
			return 0, fmt.Errorf("%w: no probability stored for premise %s", evidence.ErrMissingEvidence, member.Hash())
		}
		p *= v
	}
	return p, nil
}

// loadEvidence writes evidenceValues (keyed by bare proposition hash, as
// scenario.Scenario.Setup returns them) into table, keyed by the grounded
// model's single nodes, and returns the node hashes that received an
// observation (the fan-out scheduler's starting points).
func loadEvidence(model *ground.Model, table *evidence.MemoryTable, evidenceValues map[string]float64) []string {
	var observed []string
	for _, hash := range model.NodeHashes() {
		n, ok := model.Node(hash)
		if !ok || !n.IsSingle() {
			continue
		}
		if p, ok := evidenceValues[n.Single().Hash()]; ok {
			_ = table.Put(n, p)
			observed = append(observed, hash)
		}
	}
	return observed
}

// storeConfigFrom translates the engine-level config.StoreConfig into the
// store package's own Config shape.
func storeConfigFrom(cfg *config.Config) store.Config {
	sc := store.DefaultConfig()
	sc.Type = store.Type(cfg.Store.Backend)
	sc.SQLitePath = cfg.Store.SQLitePath
	if cfg.Store.Neo4jURI != "" {
		sc.Neo4j.URI = cfg.Store.Neo4jURI
	}
	if cfg.Store.Neo4jUser != "" {
		sc.Neo4j.Username = cfg.Store.Neo4jUser
	}
	return sc
}
