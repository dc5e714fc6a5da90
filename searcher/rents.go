package searcher

import "math"

// SetPoliciesRENTS recomputes the usable policy of every edge as a softmax
// over the children's relevance-weighted values, blended with the priors by
// lambda. Edges whose prior is far below the top prior are pruned to a zero
// policy.
//
// Edges must be sorted by descending prior.
func (n *Node) SetPoliciesRENTS(temp, lambda, cutoffFactor, fpu float64) {
	edges := n.Edges()
	if len(edges) == 0 {
		return
	}
	parentQ := -n.QBeta()
	threshold := cutoffFactor * float64(edges[0].P()) / math.Sqrt(float64(n.N())+1.0)

	softmax := make([]float64, len(edges))
	candidate := make([]bool, len(edges))
	candidates := 0
	total := 0.0
	policyTotal := 0.0
	for i, edge := range edges {
		if float64(edge.P()) <= threshold {
			continue
		}
		candidate[i] = true
		candidates++
		softmax[i] = float64(FastExp(float32((edge.QBeta(fpu) - parentQ) / temp)))
		total += softmax[i]
		policyTotal += float64(edge.P())
	}

	if candidates == 0 {
		uniform := float32(1.0 / float64(len(edges)))
		for _, edge := range edges {
			edge.Edge.SetPolicy(uniform)
		}
		return
	}

	scale := 1.0
	if total > 0 {
		scale = 1.0 / total
	}
	scaleP := 1.0
	if policyTotal > 0 {
		scaleP = 1.0 / policyTotal
	} else {
		lambda = 0
	}
	uniform := total == 0 && policyTotal == 0

	for i, edge := range edges {
		var policy float64
		switch {
		case !candidate[i]:
			policy = 0
		case uniform:
			policy = 1.0 / float64(candidates)
		default:
			policy = softmax[i]*scale*(1-lambda) + float64(edge.P())*scaleP*lambda
		}
		edge.Edge.SetPolicy(float32(policy))
	}
}
