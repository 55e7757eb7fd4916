// Package factormodel implements the log-linear scoring and training model
// that turns a grounded rule instance (a PropositionFactor) plus its
// premises' current probabilities into a potential for each class label,
// and updates weights by stochastic gradient descent against observed
// outcomes.
package factormodel

import (
	"fmt"
	"math/rand"
	"sync"
)

// ClassLabels are the two outcome classes every rule's weight vector
// scores: 0 (conclusion false) and 1 (conclusion true).
var ClassLabels = [2]int{0, 1}

// learningRate is the fixed SGD step size used by every weight update.
const learningRate = 0.05

func positiveFeature(feature string, classLabel int) string {
	return fmt.Sprintf("+>%d %s", classLabel, feature)
}

func negativeFeature(feature string, classLabel int) string {
	return fmt.Sprintf("->%d %s", classLabel, feature)
}

// randomWeight draws a small symmetric initial weight: the difference of
// two independent uniform draws on [0,1), scaled down, lands in roughly
// [-0.2, 0.2].
func randomWeight(rng *rand.Rand) float64 {
	return (rng.Float64() - rng.Float64()) / 5.0
}

// Weights holds every feature's learned weight, keyed by the positive/
// negative-feature strings derived from a rule's unique key and class
// label. One Weights instance is shared by every rule registered with a
// Model; feature names keep rules from colliding.
type Weights struct {
	mu      sync.RWMutex
	rng     *rand.Rand
	weights map[string]float64
}

// NewWeights creates an empty weight table seeded deterministically so
// training runs are reproducible given the same rule registration order.
func NewWeights(seed int64) *Weights {
	return &Weights{
		rng:     rand.New(rand.NewSource(seed)),
		weights: make(map[string]float64),
	}
}

// InitializeRule seeds both class labels' positive/negative feature
// weights for ruleKey, if not already present. Safe to call repeatedly;
// existing weights are left untouched.
func (w *Weights) InitializeRule(ruleKey string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, classLabel := range ClassLabels {
		posf := positiveFeature(ruleKey, classLabel)
		negf := negativeFeature(ruleKey, classLabel)
		if _, ok := w.weights[posf]; !ok {
			w.weights[posf] = randomWeight(w.rng)
		}
		if _, ok := w.weights[negf]; !ok {
			w.weights[negf] = randomWeight(w.rng)
		}
	}
}

// ReadVector returns the current weight for every named feature, defaulting
// unseen features to 0 rather than erroring, so an unregistered rule
// scores a flat 0.5.
func (w *Weights) ReadVector(features []string) map[string]float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]float64, len(features))
	for _, f := range features {
		out[f] = w.weights[f]
	}
	return out
}

// Save writes updated weights back, merging into the existing table.
func (w *Weights) Save(updated map[string]float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for feature, value := range updated {
		w.weights[feature] = value
	}
}

// Snapshot returns a copy of every weight currently held, keyed by feature
// name, for persistence through store.Store.
func (w *Weights) Snapshot() map[string]float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]float64, len(w.weights))
	for k, v := range w.weights {
		out[k] = v
	}
	return out
}
