// Package bp implements Pearl-style loopy belief propagation over the
// grounded proposition/group DAG built by internal/ground. It owns
// the four flat message tables the design notes call for (pi_val,
// lambda_val, pi_msg, lambda_msg), keyed by node hash and, for messages, by
// the edge endpoints — never nested maps, so lookups and fan-out updates
// stay O(1) regardless of graph size.
package bp

import (
	"fmt"
	"log"
	"time"

	"firstorder-bp/internal/evidence"
	"firstorder-bp/internal/factormodel"
	"firstorder-bp/internal/ground"
	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/metrics"
)

// valueKey identifies one (node, label) cell of pi_val or lambda_val.
type valueKey struct {
	node  string
	label int
}

// msgKey identifies one (from, to, label) cell of pi_msg or lambda_msg.
type msgKey struct {
	from, to string
	label    int
}

// Engine runs belief propagation over one grounded Model. It borrows the
// model and factor model read-only
// and owns its own message tables, which are created fresh per inference
// run and discarded with the Engine.
type Engine struct {
	graph    *ground.Model
	factors  *factormodel.Model
	evidence evidence.Table

	piVal     map[valueKey]float64
	lambdaVal map[valueKey]float64
	piMsg     map[msgKey]float64
	lambdaMsg map[msgKey]float64

	// Logger, if set, receives one record per (round, node, marginal) after
	// every full round. Nil disables logging.
	Logger MarginalLogger

	// Collector, if set, also records every round's per-node marginals and
	// each round's wall-clock duration onto a metrics.Collector timeline,
	// independently of whether Logger is set.
	Collector *metrics.Collector
}

// NewEngine constructs an Engine over g, scoring factors with factors and
// resolving evidence through table. Callers must call Init before the
// first sweep.
func NewEngine(g *ground.Model, factors *factormodel.Model, table evidence.Table) *Engine {
	return &Engine{
		graph:     g,
		factors:   factors,
		evidence:  table,
		piVal:     make(map[valueKey]float64),
		lambdaVal: make(map[valueKey]float64),
		piMsg:     make(map[msgKey]float64),
		lambdaMsg: make(map[msgKey]float64),
	}
}

// Init resets every message table to the prior-free starting state:
// lambda values at 1, every message at 1, independent of
// which node is which (existence/observed nodes get their real values on
// the first sweep through the normal compute path).
func (e *Engine) Init() {
	for _, hash := range e.graph.NodeHashes() {
		for _, label := range labels {
			e.lambdaVal[valueKey{hash, label}] = 1
		}
	}
	for hash, parents := range e.graph.BackwardAdj {
		for _, parent := range parents {
			for _, label := range labels {
				e.piMsg[msgKey{parent, hash, label}] = 1
				e.lambdaMsg[msgKey{hash, parent, label}] = 1
			}
		}
	}
}

// DoFullRound runs one complete pi-sweep followed by one complete
// lambda-sweep. The grounded model's BFSOrder visits
// the target first and the roots last; pi values depend on a node's
// parents (which sit later in BFSOrder, closer to the roots) so the
// pi-sweep walks BFSOrder in reverse, while lambda values depend on a
// node's children (which sit earlier, closer to the target) so the
// lambda-sweep walks BFSOrder forward.
func (e *Engine) DoFullRound() error {
	order := e.graph.BFSOrder
	for i := len(order) - 1; i >= 0; i-- {
		if err := e.visitForward(order[i]); err != nil {
			return err
		}
	}
	for _, hash := range order {
		if err := e.visitBackward(hash); err != nil {
			return err
		}
	}
	return nil
}

// RunRounds runs n full rounds. The engine does not detect convergence
// itself; callers pick a fixed budget, conventionally 50.
// After each round, if e.Logger and/or e.Collector are set, every single
// node's current marginal is appended as a log record and/or a Collector
// measurement, and the round's wall-clock duration is recorded on
// e.Collector.
func (e *Engine) RunRounds(n int) error {
	for round := 0; round < n; round++ {
		start := time.Now()
		if err := e.DoFullRound(); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		if e.Collector != nil {
			e.Collector.RecordRoundDuration(round, time.Since(start).Seconds(), time.Now())
		}
		if e.Logger != nil || e.Collector != nil {
			if err := e.recordRound(round); err != nil {
				return fmt.Errorf("round %d: recording marginals: %w", round, err)
			}
		}
	}
	return nil
}

func (e *Engine) recordRound(round int) error {
	for _, hash := range e.graph.NodeHashes() {
		n, ok := e.graph.Node(hash)
		if !ok || !n.IsSingle() {
			continue
		}
		m, err := e.marginalOf(hash)
		if err != nil {
			return err
		}
		if e.Logger != nil {
			if err := e.Logger.LogMarginal(round, hash, m); err != nil {
				return err
			}
		}
		if e.Collector != nil {
			e.Collector.RecordRoundMarginal(round, hash, m, time.Now())
		}
	}
	return nil
}

// DoFanOutFrom recomputes nodeHash from evidence (a caller has just
// written a new observation for it) and propagates the change outward in
// both directions without a full round: pi recomputation flows forward to
// nodeHash's children (and their children, ...), lambda recomputation
// flows backward to its parents (and their parents, ...), each visited
// exactly once.
func (e *Engine) DoFanOutFrom(nodeHash string) error {
	if _, ok := e.graph.Node(nodeHash); !ok {
		return fmt.Errorf("bp: unknown node %q", nodeHash)
	}
	if err := e.visitForward(nodeHash); err != nil {
		return err
	}
	if err := e.visitBackward(nodeHash); err != nil {
		return err
	}
	if err := e.bfsVisit(nodeHash, e.graph.ForwardAdj, e.visitForward); err != nil {
		return err
	}
	return e.bfsVisit(nodeHash, e.graph.BackwardAdj, e.visitBackward)
}

func (e *Engine) bfsVisit(start string, adj map[string][]string, visit func(string) error) error {
	visited := map[string]bool{start: true}
	queue := append([]string(nil), adj[start]...)
	for _, h := range queue {
		visited[h] = true
	}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if err := visit(h); err != nil {
			return err
		}
		for _, next := range adj[h] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return nil
}

// visitForward recomputes pi for hash (from evidence if observed, else
// from its parents and the factor model) and sends outgoing pi-messages
// to its children.
func (e *Engine) visitForward(hash string) error {
	n, ok := e.graph.Node(hash)
	if !ok {
		return fmt.Errorf("bp: unknown node %q", hash)
	}
	if err := e.computePi(n); err != nil {
		return err
	}
	e.sendPiMessages(n)
	return nil
}

// visitBackward recomputes lambda for hash (from evidence if observed,
// else from its children's lambda-messages) and sends outgoing
// lambda-messages to its parents.
func (e *Engine) visitBackward(hash string) error {
	n, ok := e.graph.Node(hash)
	if !ok {
		return fmt.Errorf("bp: unknown node %q", hash)
	}
	e.computeLambda(n)
	return e.sendLambdaMessages(n)
}

// Marginal returns the normalized belief that the Single node at hash is
// true. It is only meaningful for Single nodes;
// calling it on a Group hash returns an error.
func (e *Engine) Marginal(hash string) (float64, error) {
	n, ok := e.graph.Node(hash)
	if !ok {
		return 0, fmt.Errorf("bp: unknown node %q", hash)
	}
	if !n.IsSingle() {
		return 0, fmt.Errorf("bp: %q is a group node, marginals are only defined for singles", hash)
	}
	return e.marginalOf(hash)
}

// marginalOf reads the normalized belief for hash. Observed singles return
// their evidence probability directly rather than the pi*lambda product:
// pi and lambda are both set to the same evidence value for message-passing
// purposes, and combining them as a product would square the
// evidence instead of reproducing it, so the readout short-circuits for
// any node the evidence table already answers.
func (e *Engine) marginalOf(hash string) (float64, error) {
	if n, ok := e.graph.Node(hash); ok {
		if p, observed, err := e.isObserved(n); err != nil {
			return 0, err
		} else if observed {
			return p, nil
		}
	}

	belief0 := e.piVal[valueKey{hash, 0}] * e.lambdaVal[valueKey{hash, 0}]
	belief1 := e.piVal[valueKey{hash, 1}] * e.lambdaVal[valueKey{hash, 1}]
	total := belief0 + belief1
	if total == 0 {
		log.Printf("bp: node %s normalization denominator is 0, falling back to 0.5 marginal", hash)
		e.factors.Metrics().RecordZeroDenominator()
		return 0.5, nil
	}
	return belief1 / total, nil
}

// MarginalProposition is a convenience wrapper over Marginal for callers
// that have a logic.Proposition rather than its raw hash.
func (e *Engine) MarginalProposition(p logic.Proposition) (float64, error) {
	return e.Marginal(logic.SingleNode(p).Hash())
}

var labels = [2]int{0, 1}
