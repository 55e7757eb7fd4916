package factormodel

import (
	"log"
	"math"
	"time"

	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/metrics"
)

// FactorContext bundles every incoming grounded rule instance for one
// conclusion proposition together with each rule's current premise-group
// probability. Factors and GroupProbabilities are aligned by
// index: GroupProbabilities[i] is P(Factors[i].Premise = true), a single
// scalar per incoming rule, not one value per premise member.
type FactorContext struct {
	Factors            []logic.PropositionFactor
	GroupProbabilities []float64
}

// featuresForClass builds one feature vector per class label: for every
// incoming rule, a positive-feature entry valued at that rule's
// premise-group probability and a negative-feature entry valued at its
// complement, keyed by the rule's unique key.
func featuresForClass(ctx FactorContext) [2]map[string]float64 {
	var out [2]map[string]float64
	for _, classLabel := range ClassLabels {
		features := make(map[string]float64, 2*len(ctx.Factors))
		for i, factor := range ctx.Factors {
			ruleKey := factor.Rule.UniqueKey()
			probability := ctx.GroupProbabilities[i]
			features[positiveFeature(ruleKey, classLabel)] = probability
			features[negativeFeature(ruleKey, classLabel)] = 1 - probability
		}
		out[classLabel] = features
	}
	return out
}

func dotProduct(weights, features map[string]float64) float64 {
	var result float64
	for key, v1 := range weights {
		if v2, ok := features[key]; ok {
			result += v1 * v2
		}
	}
	return result
}

func computePotential(weights, features map[string]float64) float64 {
	return math.Exp(dotProduct(weights, features))
}

func expectedFeatures(probability float64, features map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(features))
	for key, value := range features {
		out[key] = value * probability
	}
	return out
}

// Model scores grounded factors and trains their weights.
type Model struct {
	weights           *Weights
	printTrainingLoss bool
	metrics           *metrics.FactorMetrics
	collector         *metrics.Collector
}

// NewModel creates a Model over a fresh weight table seeded from seed.
func NewModel(seed int64) *Model {
	return &Model{
		weights:   NewWeights(seed),
		metrics:   metrics.NewFactorMetrics(),
		collector: metrics.NewCollector(),
	}
}

// SetMetrics replaces the model's metrics sink, letting a caller share one
// FactorMetrics across every Model and Engine in a run.
func (m *Model) SetMetrics(fm *metrics.FactorMetrics) {
	m.metrics = fm
}

// Metrics returns the model's current metrics sink.
func (m *Model) Metrics() *metrics.FactorMetrics {
	return m.metrics
}

// SetCollector replaces the model's training-loss timeline sink, letting a
// caller share one Collector across a Model and the bp.Engine that reads
// its predictions during a run.
func (m *Model) SetCollector(c *metrics.Collector) {
	m.collector = c
}

// Collector returns the model's current training-loss timeline sink.
func (m *Model) Collector() *metrics.Collector {
	return m.collector
}

// SnapshotWeights returns a copy of every weight currently held, keyed by
// the positive/negative feature strings Train and Predict use internally,
// for persistence through store.Store (the "weights" key, gated by
// config.FeatureFlags.PersistWeights).
func (m *Model) SnapshotWeights() map[string]float64 {
	return m.weights.Snapshot()
}

// LoadWeights merges previously-persisted weights into the model's table.
// InitializeRule only seeds a feature that is still absent, so calling
// LoadWeights before grounding a scenario lets training resume from these
// values instead of drawing fresh random weights.
func (m *Model) LoadWeights(values map[string]float64) {
	m.weights.Save(values)
}

// SetPrintTrainingLoss toggles per-feature loss logging during Train
// (the --print_training_loss CLI flag).
func (m *Model) SetPrintTrainingLoss(enabled bool) {
	m.printTrainingLoss = enabled
}

// InitializeRule seeds rule's weights if this is the first time the model
// has seen it.
func (m *Model) InitializeRule(rule logic.ImplicationFactor) {
	m.weights.InitializeRule(rule.UniqueKey())
}

// InitializeContext seeds weights for every rule incoming to ctx.
func (m *Model) InitializeContext(ctx FactorContext) {
	for _, factor := range ctx.Factors {
		m.InitializeRule(factor.Rule)
	}
}

// Predict computes P(conclusion=1 | premises) for ctx via the log-linear
// potential ratio phi1/(phi0+phi1).
func (m *Model) Predict(ctx FactorContext) float64 {
	m.metrics.RecordPrediction()
	features := featuresForClass(ctx)
	var potentials [2]float64
	for _, classLabel := range ClassLabels {
		weightVector := m.weights.ReadVector(keysOf(features[classLabel]))
		potentials[classLabel] = computePotential(weightVector, features[classLabel])
	}
	normalization := potentials[0] + potentials[1]
	if normalization == 0 {
		log.Printf("factormodel: both potentials underflowed to 0, falling back to 0.5 marginal")
		m.metrics.RecordZeroDenominator()
		return 0.5
	}
	return potentials[1] / normalization
}

// Train performs one SGD update of ctx's rule's weights toward
// goldProbability, the observed/expected probability of the conclusion.
func (m *Model) Train(ctx FactorContext, goldProbability float64) {
	m.metrics.RecordTrainStep()
	features := featuresForClass(ctx)

	var weightVectors [2]map[string]float64
	var potentials [2]float64
	for _, classLabel := range ClassLabels {
		weightVectors[classLabel] = m.weights.ReadVector(keysOf(features[classLabel]))
		potentials[classLabel] = computePotential(weightVectors[classLabel], features[classLabel])
	}

	normalization := potentials[0] + potentials[1]
	if normalization == 0 {
		m.metrics.RecordZeroDenominator()
		normalization = 1
	}

	lossByFeature := make(map[string]float64, 4*len(ctx.Factors))
	for _, classLabel := range ClassLabels {
		probability := potentials[classLabel] / normalization
		goldForClass := goldProbability
		if classLabel == 0 {
			goldForClass = 1 - goldProbability
		}
		gold := expectedFeatures(goldForClass, features[classLabel])
		expected := expectedFeatures(probability, features[classLabel])

		updated := make(map[string]float64, len(weightVectors[classLabel]))
		for feature, wv := range weightVectors[classLabel] {
			gv := gold[feature]
			ev := expected[feature]
			loss := math.Abs(gv - ev)
			newWeight := wv + learningRate*(gv-ev)
			if m.printTrainingLoss {
				log.Printf("feature=%s gold=%f expected=%f loss=%f weight=%f->%f",
					feature, gv, ev, loss, wv, newWeight)
			}
			lossByFeature[feature] = loss
			updated[feature] = newWeight
		}
		m.weights.Save(updated)
	}
	m.recordTrainingLoss(ctx, lossByFeature)
}

// recordTrainingLoss averages the per-feature losses Train just computed
// down to one value per incoming rule and appends it to the model's
// Collector timeline, so the loss is a recorded metric rather than only a
// log line.
func (m *Model) recordTrainingLoss(ctx FactorContext, lossByFeature map[string]float64) {
	if m.collector == nil {
		return
	}
	now := time.Now()
	for _, factor := range ctx.Factors {
		ruleKey := factor.Rule.UniqueKey()
		var sum float64
		var n int
		for _, classLabel := range ClassLabels {
			if v, ok := lossByFeature[positiveFeature(ruleKey, classLabel)]; ok {
				sum += v
				n++
			}
			if v, ok := lossByFeature[negativeFeature(ruleKey, classLabel)]; ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			continue
		}
		m.collector.RecordTrainingLoss(ruleKey, sum/float64(n), now)
	}
}

func keysOf(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
