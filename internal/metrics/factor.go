// Package metrics provides metrics collection for grounding, training, and
// belief-propagation operations.
package metrics

import "sync/atomic"

// FactorMetrics tracks counters for the log-linear factor model and the
// belief-propagation engine that consumes it: plain atomic counters, no
// locking needed.
type FactorMetrics struct {
	predictionsTotal  atomic.Int64 // Model.Predict calls
	trainStepsTotal   atomic.Int64 // Model.Train calls
	zeroDenominator   atomic.Int64 // Predict/Train hit a zero-potential normalization
	uninformativeRoot atomic.Int64 // computeSinglePi fell back to a 0.5 prior
	droppedRules      atomic.Int64 // ExtractFactor unification failures during grounding
}

// NewFactorMetrics creates an empty metrics tracker.
func NewFactorMetrics() *FactorMetrics {
	return &FactorMetrics{}
}

// RecordPrediction records one Model.Predict call.
func (m *FactorMetrics) RecordPrediction() {
	m.predictionsTotal.Add(1)
}

// RecordTrainStep records one Model.Train call.
func (m *FactorMetrics) RecordTrainStep() {
	m.trainStepsTotal.Add(1)
}

// RecordZeroDenominator records a normalization fallback to 0.5 (numeric
// errors).
func (m *FactorMetrics) RecordZeroDenominator() {
	m.zeroDenominator.Add(1)
}

// RecordUninformativeRoot records a pi-compute fallback for an unobserved
// root with no producing rule.
func (m *FactorMetrics) RecordUninformativeRoot() {
	m.uninformativeRoot.Add(1)
}

// RecordDroppedRule records a candidate rule whose unification against a
// target failed during grounding (dropped, not fatal).
func (m *FactorMetrics) RecordDroppedRule() {
	m.droppedRules.Add(1)
}

// GetStats returns a snapshot of every counter.
func (m *FactorMetrics) GetStats() map[string]int64 {
	return map[string]int64{
		"predictions_total":  m.predictionsTotal.Load(),
		"train_steps_total":  m.trainStepsTotal.Load(),
		"zero_denominator":   m.zeroDenominator.Load(),
		"uninformative_root": m.uninformativeRoot.Load(),
		"dropped_rules":      m.droppedRules.Load(),
	}
}
