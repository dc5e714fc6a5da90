package searcher

import (
	"math"

	"github.com/samber/lo"

	"lctree/game"
)

// Relevance-weighted aggregation. Every child carries a relevance in [0, 2]
// estimating how likely it is to be at least as good as the parent's current
// value; the parent's value is the relevance-weighted mean of its children.

// betaLogit returns the logit mean and variance of a Beta distribution
// fitted to winrate over visits pseudo-observations.
func betaLogit(winrate, visits float64) (mean, variance float64) {
	alpha := 1.0 + winrate*visits
	beta := 1.0 + (1.0-winrate)*visits
	return math.Log(alpha / beta), 1.0/alpha + 1.0/beta
}

// CalculateRelevance updates the relevance of every visited child.
func (n *Node) CalculateRelevance(trust, prior float64) {
	n.mu.RLock()
	// the parent's value is seen from the other side
	winrate := (1.0 - n.qBeta) / 2.0
	visits := n.nBeta*trust + prior
	n.mu.RUnlock()

	logitParent, varParent := betaLogit(winrate, visits)
	for _, child := range n.Edges() {
		if child.N() == 0 {
			continue
		}
		winrateChild := (1.0 + child.Node.QBeta()) / 2.0
		visitsChild := child.NBeta()*trust + prior

		if visits == 0 && visitsChild == 0 {
			child.Node.SetRBeta(1.0)
			continue
		}
		relevance := 0.0
		if winrateChild != 0 {
			logitChild, varChild := betaLogit(winrateChild, visitsChild)
			z := (logitChild - logitParent) / math.Sqrt(2.0*(varChild+varParent))
			relevance = 1.0 + float64(FastErfLogistic(float32(z)))
		}
		child.Node.SetRBeta(relevance)
	}
}

// RecalculateScore rebuilds the relevance-weighted value of the node from its
// children and promotes the node to terminal when the children prove its
// result.
func (n *Node) RecalculateScore(p Params) {
	n.mu.Lock()
	n.recalculateScore(p)
	n.mu.Unlock()
	n.invalidate()
}

func (n *Node) recalculateScore(p Params) {
	var qTemp, nTemp, dTemp, mTemp float64
	nVanilla := uint32(1)

	losingM := 0.0
	winningM := 1000000.0
	preferTb := false
	lower, upper := game.BlackWon, game.BlackWon

	edges := n.Edges()
	for _, child := range edges {
		edgeLower, edgeUpper := child.Bounds()
		lower = max(lower, edgeLower)
		upper = max(upper, edgeUpper)
		isTb := child.IsTbTerminal()
		if edgeLower == game.WhiteWon && !isTb {
			// shortest win
			winningM = min(winningM, child.M(0))
		} else if edgeUpper == game.BlackWon {
			// longest loss
			losingM = max(losingM, child.M(0))
		}
		preferTb = preferTb || isTb

		nVanilla += child.N()
		visits := child.NBeta()
		if visits > 0 {
			eff := child.RBeta() * visits
			nTemp += eff
			qTemp += -child.Node.QBeta() * eff
			dTemp += child.D(0) * eff
			mTemp += child.M(0) * eff
		}
	}
	if nTemp > 0 {
		mTemp /= nTemp
	}
	// a direct win makes tablebase results irrelevant
	if winningM < 1000 {
		preferTb = false
	}
	kind := EndOfGame
	if preferTb {
		kind = Tablebase
	}

	switch {
	case lower == upper && nVanilla > 1 && upper == game.BlackWon:
		n.makeTerminal(upper.Negate(), losingM+1, kind, p)
	case lower == upper && nVanilla > 1 && upper == game.WhiteWon:
		n.makeTerminal(upper.Negate(), winningM+1, kind, p)
	case lower == upper && nVanilla > 1:
		// all children are proven draws; the value is left to the averages
	case nTemp > 0:
		n.qBeta = qTemp / nTemp
		n.nBeta = nTemp
		n.d = dTemp / nTemp
		n.m = mTemp + 1
	}

	// analyse mode can leave n out of step with the children
	if nVanilla != n.n && n.n > 0 {
		n.n = nVanilla
		n.visitedPolicy.Store(lo.SumBy(edges, func(child EdgeAndNode) float64 {
			if child.N() == 0 {
				return 0
			}
			return float64(child.P())
		}))
	}
	n.resetBestChild()
}

// Convergence reports how a stabilization run ended.
type Convergence struct {
	Steps     int
	Delta     float64
	Converged bool
	// Slow is set when more than 50 rounds were needed
	Slow bool
}

// StabilizeScore alternates relevance and value updates until the value moves
// by at most threshold between rounds, or maxSteps rounds were done.
func (n *Node) StabilizeScore(p Params) Convergence {
	qInit := 10.0 // outside [-1, 1] so at least one round runs
	qNew := n.QBeta()
	steps := 0
	for steps < p.MaxStabilizeSteps && math.Abs(qNew-qInit) > p.StabilizeThreshold {
		n.CalculateRelevance(p.Trust, p.Prior)
		n.RecalculateScore(p)
		qInit = qNew
		qNew = n.QBeta()
		steps++
	}
	delta := math.Abs(qNew - qInit)
	return Convergence{
		Steps:     steps,
		Delta:     delta,
		Converged: delta <= p.StabilizeThreshold,
		Slow:      steps > slowStabilizeSteps,
	}
}

// LCB is a lower confidence bound of the node's value at the given
// percentile, used for move ordering.
func (n *Node) LCB(trust, prior, percentile float64) float64 {
	n.mu.RLock()
	winrate := (1.0 + n.qBeta) / 2.0
	visits := n.nBeta*trust + prior
	n.mu.RUnlock()

	if percentile >= 1.0 {
		return 1.0
	}
	if percentile <= 0.0 {
		return -1.0
	}
	_, variance := betaLogit(winrate, visits)
	odds := float64(FastPow(float32((1.0-percentile)/percentile), float32(math.Sqrt(2.0*variance))))
	return -1.0 + 2.0*winrate/(winrate+(1.0-winrate)*odds)
}
