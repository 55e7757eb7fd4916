package scenario

import (
	"testing"

	"firstorder-bp/internal/bp"
	"firstorder-bp/internal/evidence"
	"firstorder-bp/internal/factormodel"
	"firstorder-bp/internal/ground"
	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/store"

	"github.com/stretchr/testify/require"
)

// runScenario grounds, trains, and runs inference for a named scenario,
// returning the target's marginal after the given number of rounds. This
// mirrors the pipeline cmd/inferctl runs end to end.
func runScenario(t *testing.T, name string, entitiesPerDomain, rounds int) float64 {
	t.Helper()

	s, err := Lookup(name)
	require.NoError(t, err)

	gs := store.NewGraphStore(store.NewMemoryStore())
	target, evidenceValues, examples, err := s.Setup(gs, entitiesPerDomain)
	require.NoError(t, err)

	factors := factormodel.NewModel(FactorModelSeed)
	for _, ex := range examples {
		factors.InitializeRule(ex.Rule)
		factor, ok, err := logic.ExtractFactor(ex.Rule, ex.Conclusion)
		require.NoError(t, err)
		require.True(t, ok, "training example's rule must unify against its own conclusion")
		ctx := factormodel.FactorContext{
			Factors:            []logic.PropositionFactor{factor},
			GroupProbabilities: ex.Premises,
		}
		for i := 0; i < 500; i++ {
			factors.Train(ctx, ex.Gold)
		}
	}

	builder := ground.NewBuilder(gs)
	model, err := builder.Build(target)
	require.NoError(t, err)

	return runWithEvidence(t, model, factors, evidenceValues, target, rounds)
}

// runWithEvidence loads evidenceValues, keyed by bare proposition hash, into
// a MemoryTable (which keys by node hash) by matching each model node with
// its prefix stripped, then runs rounds and returns the target's marginal.
func runWithEvidence(t *testing.T, model *ground.Model, factors *factormodel.Model, evidenceValues map[string]float64, target logic.Proposition, rounds int) float64 {
	t.Helper()

	table := evidence.NewMemoryTable()
	for _, hash := range model.NodeHashes() {
		if p, ok := evidenceValues[stripNodePrefix(hash)]; ok {
			n, _ := model.Node(hash)
			require.NoError(t, table.Put(n, p))
		}
	}

	engine := bp.NewEngine(model, factors, table)
	engine.Init()
	require.NoError(t, engine.RunRounds(rounds))

	marginal, err := engine.MarginalProposition(target)
	require.NoError(t, err)
	return marginal
}

// stripNodePrefix strips the "P:" single-node prefix ground.Model's vertex
// hashes carry, since scenario evidence maps are keyed by bare proposition
// hash (logic.Proposition.Hash()).
func stripNodePrefix(nodeHash string) string {
	if len(nodeHash) > 2 && nodeHash[:2] == "P:" {
		return nodeHash[2:]
	}
	return nodeHash
}

func TestExistencePriorScenario(t *testing.T) {
	marginal := runScenario(t, "existence_prior", 2, 1)
	require.Equal(t, 0.3, marginal)
}

func TestChainScenario(t *testing.T) {
	marginal := runScenario(t, "chain", 2, 50)
	require.GreaterOrEqual(t, marginal, 0.65)
}

func TestTriangleScenario(t *testing.T) {
	marginal := runScenario(t, "triangle", 2, 50)
	require.GreaterOrEqual(t, marginal, 0.7)
}

func TestAndConvergenceScenario(t *testing.T) {
	trueCase := runScenario(t, "and_convergence_true", 2, 50)
	require.GreaterOrEqual(t, trueCase, 0.9)

	falseCase := runScenario(t, "and_convergence_false", 2, 50)
	require.LessOrEqual(t, falseCase, 0.2)
}

func TestRoleMapScenarioGroundsExactGroup(t *testing.T) {
	gs := store.NewGraphStore(store.NewMemoryStore())
	s, err := Lookup("role_map")
	require.NoError(t, err)

	target, _, _, err := s.Setup(gs, 2)
	require.NoError(t, err)

	builder := ground.NewBuilder(gs)
	model, err := builder.Build(target)
	require.NoError(t, err)

	targetNode := logic.SingleNode(target)
	parents := model.BackwardAdj[targetNode.Hash()]
	require.Len(t, parents, 1, "exactly one group should produce date(m0,w0)")

	groupNode, ok := model.Node(parents[0])
	require.True(t, ok)
	require.False(t, groupNode.IsSingle())
	require.Len(t, groupNode.Group().Members, 2)

	members := map[string]bool{}
	for _, m := range groupNode.Group().Members {
		members[m.Hash()] = true
	}
	man, woman := manAt(0), womanAt(0)
	likeMW := logic.NewProposition(logic.NewPredicateBuilder("like").
		Const("sub", domainMan, man).Const("obj", domainWoman, woman).Build())
	likeWM := logic.NewProposition(logic.NewPredicateBuilder("like").
		Const("sub", domainWoman, woman).Const("obj", domainMan, man).Build())
	require.True(t, members[likeMW.Hash()])
	require.True(t, members[likeWM.Hash()])
}

func TestLookupUnknownScenario(t *testing.T) {
	_, err := Lookup("does_not_exist")
	require.ErrorIs(t, err, ErrUnknownScenario)
}

func TestNamesIncludesRegisteredScenarios(t *testing.T) {
	names := Names()
	require.Contains(t, names, "chain")
	require.Contains(t, names, "triangle")
	require.Contains(t, names, "role_map")
}
