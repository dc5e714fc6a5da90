package engine

import (
	"math"

	"lctree/searcher"
)

// maxCachedVisits bounds how long a cached selection may be reused.
const maxCachedVisits = 16

// selectChild picks the edge maximizing the PUCT score. The choice is cached
// on the node for as many visits as it is estimated to stay the best.
func (e *Engine) selectChild(node *searcher.Node) searcher.EdgeAndNode {
	if cached, ok := node.BestChildCached(); ok {
		return node.EdgeToNode(cached)
	}

	edges := node.Edges()
	sqrtN := math.Sqrt(math.Max(float64(node.NStarted()), 1))
	fpu := e.params.FPU

	bestIndex, bestScore, secondScore := 0, math.Inf(-1), math.Inf(-1)
	var bestQ, bestU float64
	for i, edge := range edges {
		q := edge.QBeta(fpu)
		u := e.cpuct * float64(e.prior(edge)) * sqrtN / (1 + float64(edge.NStarted()))
		score := q + u
		if score > bestScore {
			secondScore = bestScore
			bestIndex, bestScore = i, score
			bestQ, bestU = q, u
		} else if score > secondScore {
			secondScore = score
		}
	}

	best := edges[bestIndex]
	if best.Node != nil && !math.IsInf(secondScore, -1) {
		node.UpdateBestChild(best.Node, visitsAllowed(bestQ, bestU, secondScore, best.NStarted()))
	}
	return best
}

func (e *Engine) prior(edge searcher.EdgeAndNode) float32 {
	if e.useRENTS {
		return edge.Edge.Policy()
	}
	return edge.P()
}

// visitsAllowed estimates how many more visits the best edge can take before
// its exploration term drops it below the runner-up.
func visitsAllowed(q, u, second float64, started uint32) uint32 {
	if second <= q {
		return maxCachedVisits
	}
	// u shrinks as c/(1+n+k); solve q + c/(1+n+k) = second for k
	c := u * (1 + float64(started))
	k := c/(second-q) - 1 - float64(started)
	if k < 1 {
		return 1
	}
	return uint32(math.Min(k, maxCachedVisits))
}
