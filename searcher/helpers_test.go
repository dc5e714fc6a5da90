package searcher

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"lctree/game"
	"lctree/reclaim"
)

// mockCollector records released subtrees without disposing them.
type mockCollector struct {
	sync.Mutex
	subtrees []reclaim.Subtree
}

func (c *mockCollector) Collect(s reclaim.Subtree) {
	c.Lock()
	defer c.Unlock()
	c.subtrees = append(c.subtrees, s)
}

func (c *mockCollector) queued() int {
	c.Lock()
	defer c.Unlock()
	return len(c.subtrees)
}

func (c *mockCollector) drain() int {
	c.Lock()
	defer c.Unlock()
	freed := 0
	for _, s := range c.subtrees {
		freed += s.Dispose()
	}
	c.subtrees = nil
	return freed
}

func mockMoves(count int) []game.Move {
	moves := make([]game.Move, count)
	for i := range moves {
		moves[i] = game.NewMove(uint8(i), uint8(i+8), game.NoPromotion)
	}
	return moves
}

// expand gives node one edge per prior.
func expand(node *Node, priors ...float32) {
	node.CreateEdges(mockMoves(len(priors)))
	for i, p := range priors {
		node.edges[i].SetP(p)
	}
}

// plainParams disables the relevance-weighted recomputation so averages can
// be checked in isolation.
func plainParams() Params {
	p := DefaultParams()
	p.FullBetaUpdate = false
	p.InflateTerminals = false
	return p
}

// visit claims and settles one visit on every node from root down to the
// last one, backing up v from the view of the player who moved into the
// last node.
func visit(t *testing.T, p Params, v float64, path ...*Node) {
	t.Helper()
	for _, node := range path {
		require.True(t, node.TryStartScoreUpdate(), "Claim should succeed on %s", node)
	}
	u := Update{V: v, D: 0.2, M: 3, Multivisit: 1, MultivisitEff: 1}
	for i := len(path) - 1; i >= 0; i-- {
		path[i].FinalizeScoreUpdate(u, p)
		u.V = -u.V
		u.M++
	}
}

// threeLevelTree builds root -> three children -> two grandchildren each,
// with every node visited at least once.
func threeLevelTree(t *testing.T) *Node {
	p := plainParams()
	root := NewNode(nil, 0)
	visit(t, p, 0.1, root)
	expand(root, 0.5, 0.3, 0.2)
	for i := uint16(0); i < 3; i++ {
		child := root.GetOrSpawnChild(i)
		visit(t, p, 0.2, root, child)
		expand(child, 0.6, 0.4)
		for j := uint16(0); j < 2; j++ {
			visit(t, p, -0.3, root, child, child.GetOrSpawnChild(j))
		}
	}
	return root
}
