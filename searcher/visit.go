package searcher

import (
	"lctree/game"
)

// Update is the outcome of one or more visits backed up through a node.
// V is from the point of view of the player who made the move into the
// node.
type Update struct {
	V             float64
	D             float64
	M             float64
	Multivisit    int
	MultivisitEff float64
}

// TryStartScoreUpdate claims a visit of the node. It fails if another worker
// is already on its way to evaluate this unvisited node.
func (n *Node) TryStartScoreUpdate() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.n == 0 && n.nInFlight > 0 {
		return false
	}
	n.nInFlight++
	return true
}

// IncrementNInFlight adds multivisit in-flight visits without the collision
// check.
func (n *Node) IncrementNInFlight(multivisit int) {
	n.mu.Lock()
	n.nInFlight += uint32(multivisit)
	n.mu.Unlock()
}

// CancelScoreUpdate gives back multivisit claimed visits.
func (n *Node) CancelScoreUpdate(multivisit int) {
	n.mu.Lock()
	n.nInFlight -= uint32(multivisit)
	n.resetBestChild()
	n.mu.Unlock()
	n.invalidate()
}

// FinalizeScoreUpdate settles multivisit claimed visits with the evaluation
// in u.
func (n *Node) FinalizeScoreUpdate(u Update, p Params) {
	n.mu.Lock()
	defer n.invalidate()
	defer n.mu.Unlock()

	k := float64(u.Multivisit)
	if n.terminal != NonTerminal {
		if p.InflateTerminals {
			n.nBeta += k * p.TerminalVisitMultiplier
		} else {
			n.nBeta += k
		}
	}

	visits := float64(n.n)
	n.wl += k * (u.V - n.wl) / (visits + k)
	n.d += k * (u.D - n.d) / (visits + k)
	n.m += k * (u.M - n.m) / (visits + k)
	n.qBeta += u.MultivisitEff * (u.V - n.qBeta) / (visits + u.MultivisitEff)
	n.nBeta += u.MultivisitEff

	if n.n == 0 && n.parent != nil {
		n.parent.visitedPolicy.Add(float64(n.OwnEdge().P()))
		n.qBeta = u.V
		n.nBeta = k
	}
	n.n += uint32(u.Multivisit)
	n.nInFlight -= uint32(u.Multivisit)

	if p.FullBetaUpdate && n.edges != nil {
		n.recalculateScore(p)
	}
	n.resetBestChild()
}

// AdjustForTerminal shifts the averages after a descendant turned out to be
// terminal; v, d and m are the differences to apply.
func (n *Node) AdjustForTerminal(v, d, m float64, multivisit int) {
	n.mu.Lock()
	k := float64(multivisit)
	visits := float64(n.n)
	n.wl += k * v / visits
	n.d += k * d / visits
	n.m += k * m / visits
	n.resetBestChild()
	n.mu.Unlock()
	n.invalidate()
}

// RevertTerminalVisits undoes multivisit visits that were backed up with v, d
// and m. A node reverted to zero visits is reset to its unvisited state.
func (n *Node) RevertTerminalVisits(v, d, m float64, multivisit int, p Params) {
	n.mu.Lock()
	defer n.invalidate()
	defer n.mu.Unlock()

	newN := int(n.n) - multivisit
	if newN <= 0 {
		if n.parent != nil {
			n.parent.visitedPolicy.Add(-float64(n.OwnEdge().P()))
		}
		n.wl = 0
		n.d = 1
		n.m = 0
		n.n = 0
		n.nBeta = 0
		n.qBeta = 0
		n.rBeta = 1
	} else {
		k := float64(multivisit)
		remaining := float64(newN)
		n.wl -= k * (v - n.wl) / remaining
		n.d -= k * (d - n.d) / remaining
		n.m -= k * (m - n.m) / remaining
		n.n -= uint32(multivisit)
		if n.edges != nil {
			n.recalculateScore(p)
		}
	}
	n.resetBestChild()
}

// MakeTerminal fixes the node's value to result, seen from the player who
// moved into the node.
func (n *Node) MakeTerminal(result game.GameResult, pliesLeft float64, kind Terminal, p Params) {
	n.mu.Lock()
	n.makeTerminal(result, pliesLeft, kind, p)
	n.mu.Unlock()
	n.invalidate()
}

func (n *Node) makeTerminal(result game.GameResult, pliesLeft float64, kind Terminal, p Params) {
	if kind != TwoFold {
		n.lower, n.upper = result, result
	}
	n.terminal = kind
	n.m = pliesLeft
	switch result {
	case game.Draw:
		n.wl, n.qBeta, n.d = 0, 0, 1
	case game.WhiteWon:
		n.wl, n.qBeta, n.d = 1, 1, 0
	case game.BlackWon:
		n.wl, n.qBeta, n.d = -1, -1, 0
		// a proven loss is never worth exploring
		if n.parent != nil {
			n.OwnEdge().SetP(0)
		}
	}
	if p.InflateTerminals {
		n.nBeta = terminalNBeta
		n.rBeta = terminalRBeta
	}
	n.resetBestChild()
}

// MakeNotTerminal turns a terminal node back into a regular one and rebuilds
// its statistics from its own evaluation and its children.
func (n *Node) MakeNotTerminal() {
	n.mu.Lock()
	defer n.invalidate()
	defer n.mu.Unlock()

	n.terminal = NonTerminal
	n.lower, n.upper = game.BlackWon, game.WhiteWon
	n.n = 0
	n.resetBestChild()
	if n.edges == nil {
		return
	}
	// an expanded node has been visited once itself
	n.n++
	for _, child := range n.Edges() {
		visits := child.N()
		if visits == 0 {
			continue
		}
		n.n += visits
		n.wl += -child.WL(0) * float64(visits)
		n.d += child.D(0) * float64(visits)
	}
	n.wl /= float64(n.n)
	n.d /= float64(n.n)
}
