// Package ground builds the grounded proposition/group graph a target
// proposition depends on: a bipartite directed graph where single
// nodes (ground propositions) and group nodes (conjoined rule premises)
// alternate, built by backward chaining from the target through the
// predicate store's rule index.
package ground

import (
	"fmt"

	"github.com/dominikbraun/graph"

	"firstorder-bp/internal/logic"
	"firstorder-bp/internal/metrics"
	"firstorder-bp/internal/store"
)

// nodeHash is the graph vertex-hash function: a node's canonical string.
func nodeHash(n logic.Node) string {
	return n.Hash()
}

// Model is the grounded inference graph for one target. Edges point from a
// node to the nodes it depends on (its parents, in belief-propagation
// terms): a Single conclusion node's parents are the Group nodes of the
// factors that can produce it; a Group node's parents are its member Single
// propositions.
type Model struct {
	Graph graph.Graph[string, logic.Node]

	// BackwardAdj[h] lists the hashes of h's parents (what h depends on).
	BackwardAdj map[string][]string
	// ForwardAdj[h] lists the hashes of h's children (what depends on h).
	ForwardAdj map[string][]string
	// BFSOrder is a breadth-first traversal starting at the target,
	// following BackwardAdj; the scheduler in internal/bp walks it in
	// reverse for the forward (pi) sweep and in order for the backward
	// (lambda) sweep.
	BFSOrder []string
	// Roots are leaves with no parents: existence predicates or ground
	// propositions for which no rule's conclusion matched (bare evidence).
	Roots []string
	// Factors records, for every Group node, the PropositionFactor that
	// connects it to its Single conclusion child.
	Factors map[string]logic.PropositionFactor

	nodes map[string]logic.Node
}

// Node returns the node stored under hash h.
func (m *Model) Node(h string) (logic.Node, bool) {
	n, ok := m.nodes[h]
	return n, ok
}

// NodeHashes returns every reachable node's hash, in no particular order.
func (m *Model) NodeHashes() []string {
	hashes := make([]string, 0, len(m.nodes))
	for h := range m.nodes {
		hashes = append(hashes, h)
	}
	return hashes
}

// Builder grounds target propositions against a predicate store.
type Builder struct {
	store *store.GraphStore
	// MaxDepth bounds backward-chaining recursion to guard against
	// pathological or cyclic rule sets: the grounded graph must stay a
	// DAG, and a depth cap is the simplest guarantee against rule sets
	// that would otherwise recurse forever.
	MaxDepth int
	metrics  *metrics.FactorMetrics
}

// NewBuilder constructs a Builder over s with a default recursion depth
// limit of 64, generous enough for any rule chain this engine's scenarios
// exercise while still bounding pathological rule sets.
func NewBuilder(s *store.GraphStore) *Builder {
	return &Builder{store: s, MaxDepth: 64, metrics: metrics.NewFactorMetrics()}
}

// SetMetrics replaces the builder's metrics sink, letting a caller share
// one FactorMetrics across the builder, the factor model, and the engine
// for a single run.
func (b *Builder) SetMetrics(fm *metrics.FactorMetrics) {
	b.metrics = fm
}

// Build grounds target into a Model via backward chaining: repeatedly
// finding candidate rules whose conclusion matches an open Single node,
// extracting the grounded factor, and adding its premise Group node and
// premise members as new open Single nodes.
func (b *Builder) Build(target logic.Proposition) (*Model, error) {
	g := graph.New(nodeHash, graph.Directed(), graph.PreventCycles())

	m := &Model{
		Graph:       g,
		BackwardAdj: make(map[string][]string),
		ForwardAdj:  make(map[string][]string),
		Factors:     make(map[string]logic.PropositionFactor),
		nodes:       make(map[string]logic.Node),
	}

	targetNode := logic.SingleNode(target)
	if err := b.addVertex(m, targetNode); err != nil {
		return nil, err
	}

	type queued struct {
		node  logic.Node
		depth int
	}
	queue := []queued{{node: targetNode, depth: 0}}
	visited := map[string]bool{targetNode.Hash(): true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.node.IsSingle() {
			children, err := b.expandSingle(m, cur.node.Single())
			if err != nil {
				return nil, err
			}
			if len(children) == 0 {
				m.Roots = append(m.Roots, cur.node.Hash())
				continue
			}
			if cur.depth >= b.MaxDepth {
				return nil, fmt.Errorf("grounding exceeded max depth %d at %s", b.MaxDepth, cur.node.Hash())
			}
			for _, child := range children {
				if err := b.link(m, cur.node, child); err != nil {
					return nil, err
				}
				if !visited[child.Hash()] {
					visited[child.Hash()] = true
					queue = append(queue, queued{node: child, depth: cur.depth + 1})
				}
			}
		} else {
			for _, member := range cur.node.Group().Members {
				memberNode := logic.SingleNode(member)
				if err := b.link(m, cur.node, memberNode); err != nil {
					return nil, err
				}
				if !visited[memberNode.Hash()] {
					visited[memberNode.Hash()] = true
					queue = append(queue, queued{node: memberNode, depth: cur.depth + 1})
				}
			}
		}
	}

	if err := graph.BFS(g, targetNode.Hash(), func(h string) bool {
		m.BFSOrder = append(m.BFSOrder, h)
		return false
	}); err != nil {
		return nil, fmt.Errorf("bfs traversal: %w", err)
	}

	return m, nil
}

// expandSingle finds every rule that could have produced single and
// returns the Group node for each successfully-grounded factor.
func (b *Builder) expandSingle(m *Model, single logic.Proposition) ([]logic.Node, error) {
	if single.IsExistence() {
		return nil, nil
	}

	seenRule := make(map[string]bool)
	var candidates []logic.ImplicationFactor
	for _, key := range single.SearchKeys() {
		rules, err := b.store.PredicateBackwardLinks(key)
		if err != nil {
			return nil, err
		}
		for _, rule := range rules {
			k := rule.UniqueKey()
			if seenRule[k] {
				continue
			}
			seenRule[k] = true
			candidates = append(candidates, rule)
		}
	}

	var children []logic.Node
	for _, rule := range candidates {
		factor, ok, err := logic.ExtractFactor(rule, single)
		if err != nil {
			return nil, err
		}
		if !ok {
			b.metrics.RecordDroppedRule()
			continue
		}
		groupNode := logic.GroupNode(factor.Premise)
		m.Factors[groupNode.Hash()] = factor
		children = append(children, groupNode)
	}
	return children, nil
}

func (b *Builder) addVertex(m *Model, n logic.Node) error {
	if _, ok := m.nodes[n.Hash()]; ok {
		return nil
	}
	if err := m.Graph.AddVertex(n); err != nil && err != graph.ErrVertexAlreadyExists {
		return fmt.Errorf("add vertex %s: %w", n.Hash(), err)
	}
	m.nodes[n.Hash()] = n
	return nil
}

// link records that parent depends on child. The underlying graph edge
// runs parent->child (source->target) so that a library BFS/traversal
// starting at the target node walks outward toward its dependencies,
// matching backward chaining.
func (b *Builder) link(m *Model, parent, child logic.Node) error {
	if err := b.addVertex(m, child); err != nil {
		return err
	}
	if err := m.Graph.AddEdge(parent.Hash(), child.Hash()); err != nil && err != graph.ErrEdgeAlreadyExists {
		return fmt.Errorf("add edge %s->%s: %w", parent.Hash(), child.Hash(), err)
	}
	m.BackwardAdj[parent.Hash()] = appendUnique(m.BackwardAdj[parent.Hash()], child.Hash())
	m.ForwardAdj[child.Hash()] = appendUnique(m.ForwardAdj[child.Hash()], parent.Hash())
	return nil
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
