package engine

import (
	"math"

	"github.com/samber/lo"
	"golang.org/x/exp/rand"

	"lctree/searcher"
)

// pickMove chooses the move to play at head from the visit counts of its
// edges.
func (e *Engine) pickMove(head *searcher.Node, turn int) searcher.EdgeAndNode {
	edges := head.Edges()
	if e.temperature <= 0 || turn >= e.tempDecay {
		return lo.MaxBy(edges, func(a, b searcher.EdgeAndNode) bool {
			return a.N() > b.N()
		})
	}
	visits := lo.Map(edges, func(edge searcher.EdgeAndNode, _ int) float64 {
		return float64(edge.N())
	})
	policy := adjustTemperature(visits, e.temperature)
	return edges[sample(policy, e.rng)]
}

func adjustTemperature(visits []float64, temperature float64) []float64 {
	// Compute temperature-adjusted move probabilities
	exponent := 1.0 / temperature
	sum := 0.0
	adjusted := make([]float64, len(visits))
	for i, visit := range visits {
		prob := math.Pow(visit, exponent)
		sum += prob
		adjusted[i] = prob
	}
	if sum == 0 {
		for i := range adjusted {
			adjusted[i] = 1.0 / float64(len(adjusted))
		}
		return adjusted
	}
	// Normalize
	for i := range adjusted {
		adjusted[i] /= sum
	}
	return adjusted
}

func sample(policy []float64, rng *rand.Rand) int {
	sampled := rng.Float64()
	cumulative := 0.0
	for i, prob := range policy {
		cumulative += prob
		if sampled < cumulative {
			return i
		}
	}
	return len(policy) - 1 // Fallback in case of rounding errors
}
