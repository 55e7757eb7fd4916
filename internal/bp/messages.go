package bp

import (
	"log"

	"firstorder-bp/internal/factormodel"
	"firstorder-bp/internal/logic"
)

// isObserved reports whether n is a Single proposition with a known
// probability in the evidence table. Existence propositions are always
// observed (every Table implementation returns probability 1 for them).
func (e *Engine) isObserved(n logic.Node) (float64, bool, error) {
	if !n.IsSingle() {
		return 0, false, nil
	}
	return e.evidence.Get(n)
}

// computePi dispatches pi computation by node kind.
func (e *Engine) computePi(n logic.Node) error {
	if n.IsSingle() {
		return e.computeSinglePi(n)
	}
	e.computeGroupPi(n)
	return nil
}

// computeSinglePi computes a single node's pi. Observed singles (including
// the existence predicate, which every Table treats as observed at
// probability 1) take
// their pi directly from evidence; everything else is summed over the
// 2^k assignments of its k incoming Group factors, scored by the factor
// model.
func (e *Engine) computeSinglePi(n logic.Node) error {
	hash := n.Hash()
	if p, ok, err := e.isObserved(n); err != nil {
		return err
	} else if ok {
		e.piVal[valueKey{hash, 1}] = p
		e.piVal[valueKey{hash, 0}] = 1 - p
		return nil
	}

	parents := e.graph.BackwardAdj[hash]
	if len(parents) == 0 {
		// A non-existence root with no observation: no rule concludes it and
		// no evidence was supplied. Fall back to an uninformative prior
		// rather than fail the whole run.
		log.Printf("bp: node %s has no producing rule and no evidence, using uninformative 0.5 prior", hash)
		e.factors.Metrics().RecordUninformativeRoot()
		e.piVal[valueKey{hash, 1}] = 0.5
		e.piVal[valueKey{hash, 0}] = 0.5
		return nil
	}

	factors := make([]logic.PropositionFactor, len(parents))
	for i, p := range parents {
		factors[i] = e.graph.Factors[p]
	}

	var pi0, pi1 float64
	k := len(parents)
	for mask := 0; mask < (1 << k); mask++ {
		assignment := make([]float64, k)
		piProd := 1.0
		for i, parent := range parents {
			label := bitLabel(mask, i)
			assignment[i] = float64(label)
			piProd *= e.piMsg[msgKey{parent, hash, label}]
		}
		p1 := e.factors.Predict(factormodel.FactorContext{Factors: factors, GroupProbabilities: assignment})
		pi1 += p1 * piProd
		pi0 += (1 - p1) * piProd
	}
	e.piVal[valueKey{hash, 1}] = pi1
	e.piVal[valueKey{hash, 0}] = pi0
	return nil
}

// computeGroupPi computes a group node's pi: a group
// is the AND of its members, so pi(G,1) is the product of its members'
// incoming pi-messages at label 1.
func (e *Engine) computeGroupPi(n logic.Node) {
	hash := n.Hash()
	members := e.graph.BackwardAdj[hash]
	allTrue := 1.0
	for _, m := range members {
		allTrue *= e.piMsg[msgKey{m, hash, 1}]
	}
	e.piVal[valueKey{hash, 1}] = allTrue
	e.piVal[valueKey{hash, 0}] = 1 - allTrue
}

// computeLambda computes a node's lambda, following Pearl's semantics for
// observed nodes: hard evidence (probability 0 or 1) sets lambda to the
// indicator for the observed label; soft evidence splits lambda(1)=p,
// lambda(0)=1-p. Unobserved nodes (and all Group nodes, which are never
// directly observed) take the product of their children's lambda-messages.
func (e *Engine) computeLambda(n logic.Node) {
	hash := n.Hash()
	if p, ok, err := e.isObserved(n); err == nil && ok {
		// Pearl's semantics collapse hard (p in {0,1}) and soft evidence into
		// the same formula: lambda(1)=p, lambda(0)=1-p.
		e.lambdaVal[valueKey{hash, 1}] = p
		e.lambdaVal[valueKey{hash, 0}] = 1 - p
		return
	}

	children := e.graph.ForwardAdj[hash]
	l0, l1 := 1.0, 1.0
	for _, c := range children {
		l0 *= e.lambdaMsg[msgKey{c, hash, 0}]
		l1 *= e.lambdaMsg[msgKey{c, hash, 1}]
	}
	e.lambdaVal[valueKey{hash, 0}] = l0
	e.lambdaVal[valueKey{hash, 1}] = l1
}

// sendPiMessages sends a node's pi-message to each of its children,
// identical for Single and Group senders: the message a node sends one
// child is its own pi, discounted by the lambda-messages it has received
// from every *other* child (so the message carries only what the child
// doesn't already know from its own observation).
func (e *Engine) sendPiMessages(n logic.Node) {
	hash := n.Hash()
	children := e.graph.ForwardAdj[hash]
	for _, child := range children {
		for _, label := range labels {
			excl := 1.0
			for _, other := range children {
				if other == child {
					continue
				}
				excl *= e.lambdaMsg[msgKey{other, hash, label}]
			}
			e.piMsg[msgKey{hash, child, label}] = e.piVal[valueKey{hash, label}] * excl
		}
	}
}

// sendLambdaMessages dispatches lambda-message sending by node kind: a
// Single sends the generic combinatorial message to each of its Group
// parents; a Group sends the closed-form AND-specific message to each of
// its members.
func (e *Engine) sendLambdaMessages(n logic.Node) error {
	if n.IsSingle() {
		return e.sendSingleLambdaMessages(n)
	}
	e.sendGroupLambdaMessages(n)
	return nil
}

// sendSingleLambdaMessages enumerates the 2^k assignments of n's k Group
// parents once, and for each parent accumulates the message value at the
// assignment's bit for that parent:
// contribution = P(N=l|a) * pi_prod_excl(a) * lambda(N,l), summed over l.
func (e *Engine) sendSingleLambdaMessages(n logic.Node) error {
	hash := n.Hash()
	parents := e.graph.BackwardAdj[hash]
	k := len(parents)
	if k == 0 {
		return nil
	}
	factors := make([]logic.PropositionFactor, k)
	for i, p := range parents {
		factors[i] = e.graph.Factors[p]
	}
	lambda0 := e.lambdaVal[valueKey{hash, 0}]
	lambda1 := e.lambdaVal[valueKey{hash, 1}]

	accum := make([][2]float64, k)
	for mask := 0; mask < (1 << k); mask++ {
		assignment := make([]float64, k)
		bits := make([]int, k)
		for i := range parents {
			bits[i] = bitLabel(mask, i)
			assignment[i] = float64(bits[i])
		}
		p1 := e.factors.Predict(factormodel.FactorContext{Factors: factors, GroupProbabilities: assignment})
		contribution := p1*lambda1 + (1-p1)*lambda0
		for i := range parents {
			piProdExcl := 1.0
			for j, other := range parents {
				if j == i {
					continue
				}
				piProdExcl *= e.piMsg[msgKey{other, hash, bits[j]}]
			}
			accum[i][bits[i]] += contribution * piProdExcl
		}
	}
	for i, parent := range parents {
		e.lambdaMsg[msgKey{hash, parent, 0}] = accum[i][0]
		e.lambdaMsg[msgKey{hash, parent, 1}] = accum[i][1]
	}
	return nil
}

// sendGroupLambdaMessages computes, for each member q of group G, the
// lambda-message G sends back to q by exploiting the deterministic AND
// semantics: G can only be true when every member
// (q included) is true, so the message reduces to a closed form instead
// of an explicit 2^(n-1) enumeration over the other members:
//
//	lambdaMsg(G->q, 1) = AllOthersTrue*lambda(G,1) + (Total-AllOthersTrue)*lambda(G,0)
//	lambdaMsg(G->q, 0) = Total*lambda(G,0)
//
// where AllOthersTrue is the product of the other members' pi-messages at
// label 1, and Total is the product of the other members' pi-message
// totals (label 0 + label 1), i.e. the total probability mass over every
// assignment of the other members.
func (e *Engine) sendGroupLambdaMessages(n logic.Node) {
	hash := n.Hash()
	members := e.graph.BackwardAdj[hash]
	lambdaG0 := e.lambdaVal[valueKey{hash, 0}]
	lambdaG1 := e.lambdaVal[valueKey{hash, 1}]

	for idx, member := range members {
		allOthersTrue := 1.0
		total := 1.0
		for j, other := range members {
			if j == idx {
				continue
			}
			msg0 := e.piMsg[msgKey{other, hash, 0}]
			msg1 := e.piMsg[msgKey{other, hash, 1}]
			allOthersTrue *= msg1
			total *= msg0 + msg1
		}
		e.lambdaMsg[msgKey{hash, member, 1}] = allOthersTrue*lambdaG1 + (total-allOthersTrue)*lambdaG0
		e.lambdaMsg[msgKey{hash, member, 0}] = total * lambdaG0
	}
}

func bitLabel(mask, position int) int {
	if mask&(1<<position) != 0 {
		return 1
	}
	return 0
}
