package searcher

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"lctree/game"
)

type Terminal uint8

const (
	NonTerminal Terminal = iota
	EndOfGame
	Tablebase
	TwoFold
)

func (t Terminal) String() string {
	switch t {
	case EndOfGame:
		return "end-of-game"
	case Tablebase:
		return "tablebase"
	case TwoFold:
		return "twofold"
	default:
		return "non-terminal"
	}
}

type layout uint8

const (
	linkedList layout = iota
	compact
)

// children is the owning relation from a node to its child nodes. Exactly
// one of the two representations is in use, selected by kind.
type children struct {
	kind  layout
	head  *Node  // linkedList: first child, siblings sorted by index
	solid []Node // compact: one slot per edge
}

// Node is a position in the search tree.
//
// The tree structure (edges, children, siblings, parent pointers) is only
// mutated under the caller-held tree lock. Statistics are guarded by mu;
// when both a parent and a child lock are needed the parent is locked
// first.
type Node struct {
	mu sync.RWMutex

	parent  *Node
	index   uint16
	edges   []Edge
	kids    children
	sibling *Node

	n         uint32
	nInFlight uint32
	wl        float64
	d         float64
	m         float64

	// relevance-weighted value, effective visits and relevance
	qBeta float64
	nBeta float64
	rBeta float64

	// sum of priors of children with at least one settled visit
	visitedPolicy atomicFloat

	terminal Terminal
	lower    game.GameResult
	upper    game.GameResult

	epoch atomic.Uint64
	best  bestChild
}

// NewNode creates a detached node. parent may be nil for a root.
func NewNode(parent *Node, index uint16) *Node {
	node := &Node{}
	node.init(parent, index)
	return node
}

func (n *Node) init(parent *Node, index uint16) {
	n.parent = parent
	n.index = index
	n.rBeta = 1
	n.lower = game.BlackWon
	n.upper = game.WhiteWon
}

func (n *Node) Parent() *Node {
	return n.parent
}

func (n *Node) Index() uint16 {
	return n.index
}

// OwnEdge returns the edge of the parent leading to this node.
func (n *Node) OwnEdge() *Edge {
	if n.parent == nil {
		return nil
	}
	return &n.parent.edges[n.index]
}

func (n *Node) NumEdges() int {
	return len(n.edges)
}

func (n *Node) HasChildren() bool {
	switch n.kids.kind {
	case compact:
		return n.kids.solid != nil
	default:
		return n.kids.head != nil
	}
}

func (n *Node) IsSolid() bool {
	return n.kids.kind == compact
}

func (n *Node) N() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.n
}

func (n *Node) NInFlight() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.nInFlight
}

// NStarted is the number of settled plus in-flight visits.
func (n *Node) NStarted() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.n + n.nInFlight
}

// ChildrenVisits is the number of visits that went below this node.
func (n *Node) ChildrenVisits() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.n == 0 {
		return 0
	}
	return n.n - 1
}

func (n *Node) WL() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.wl
}

func (n *Node) D() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.d
}

func (n *Node) M() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.m
}

// Q is the expected score with draws counted as drawScore.
func (n *Node) Q(drawScore float64) float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.wl + drawScore*n.d
}

func (n *Node) QBeta() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.qBeta
}

func (n *Node) NBeta() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.nBeta
}

func (n *Node) RBeta() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.rBeta
}

func (n *Node) SetRBeta(r float64) {
	n.mu.Lock()
	n.rBeta = r
	n.mu.Unlock()
	n.invalidate()
}

func (n *Node) VisitedPolicy() float64 {
	return n.visitedPolicy.Load()
}

func (n *Node) IsTerminal() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.terminal != NonTerminal
}

func (n *Node) IsTbTerminal() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.terminal == Tablebase
}

func (n *Node) TerminalType() Terminal {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.terminal
}

func (n *Node) Bounds() (lower, upper game.GameResult) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lower, n.upper
}

func (n *Node) SetBounds(lower, upper game.GameResult) {
	n.mu.Lock()
	n.lower, n.upper = lower, upper
	n.mu.Unlock()
	n.invalidate()
}

// CreateEdges expands the node with one edge per legal move.
func (n *Node) CreateEdges(moves []game.Move) {
	if n.edges != nil {
		panic("node already has edges")
	}
	if n.HasChildren() {
		panic("node already has children")
	}
	n.edges = EdgesFromMoves(moves)
}

// CreateSingleChildNode expands the node with a single edge and spawns its
// child.
func (n *Node) CreateSingleChildNode(move game.Move) *Node {
	if n.edges != nil {
		panic("node already has edges")
	}
	if n.HasChildren() {
		panic("node already has children")
	}
	n.edges = EdgesFromMoves([]game.Move{move})
	n.kids = children{kind: linkedList, head: NewNode(n, 0)}
	return n.kids.head
}

// SortEdges orders the edges by descending prior. Edge indices are child
// identities, so sorting is only allowed before any child exists.
func (n *Node) SortEdges() {
	if n.edges == nil {
		panic("sorting edges of an unexpanded node")
	}
	if n.HasChildren() {
		panic("sorting edges of a node with children")
	}
	sorted := make([]Edge, len(n.edges))
	order := make([]int, len(n.edges))
	for i := range order {
		order[i] = i
	}
	// raw codes sort like the decoded priors
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(n.edges[b].p.Load(), n.edges[a].p.Load())
	})
	for i, j := range order {
		sorted[i].move = n.edges[j].move
		sorted[i].p.Store(n.edges[j].p.Load())
		sorted[i].policy.Store(n.edges[j].policy.Load())
	}
	n.edges = sorted
}

// Child returns the child at index, or nil if it has not been spawned.
func (n *Node) Child(index uint16) *Node {
	if n.kids.kind == compact {
		if n.kids.solid == nil {
			return nil
		}
		return &n.kids.solid[index]
	}
	for c := n.kids.head; c != nil; c = c.sibling {
		if c.index == index {
			return c
		}
		if c.index > index {
			break
		}
	}
	return nil
}

// GetOrSpawnChild returns the child at index, creating it if needed.
func (n *Node) GetOrSpawnChild(index uint16) *Node {
	if int(index) >= len(n.edges) {
		panic(fmt.Sprintf("edge index %d out of range (%d edges)", index, len(n.edges)))
	}
	if n.kids.kind == compact {
		return &n.kids.solid[index]
	}
	link := &n.kids.head
	for *link != nil && (*link).index < index {
		link = &(*link).sibling
	}
	if *link != nil && (*link).index == index {
		return *link
	}
	child := NewNode(n, index)
	child.sibling = *link
	*link = child
	return child
}

// FirstChild returns the child with the lowest index, or nil.
func (n *Node) FirstChild() *Node {
	if n.kids.kind == compact {
		if len(n.kids.solid) == 0 {
			return nil
		}
		return &n.kids.solid[0]
	}
	return n.kids.head
}

// EdgeAndNode pairs an edge with its child node, which may be nil.
type EdgeAndNode struct {
	Index uint16
	Edge  *Edge
	Node  *Node
}

// Edges returns all edges of the node in index order.
func (n *Node) Edges() []EdgeAndNode {
	out := make([]EdgeAndNode, len(n.edges))
	for i := range n.edges {
		out[i] = EdgeAndNode{Index: uint16(i), Edge: &n.edges[i]}
	}
	if n.kids.kind == compact {
		for i := range n.kids.solid {
			out[i].Node = &n.kids.solid[i]
		}
		return out
	}
	for c := n.kids.head; c != nil; c = c.sibling {
		out[c.index].Node = c
	}
	return out
}

// EdgeToNode returns the parent's edge pairing for child.
func (n *Node) EdgeToNode(child *Node) EdgeAndNode {
	if child.parent != n {
		panic("node is not a child of this node")
	}
	return EdgeAndNode{Index: child.index, Edge: &n.edges[child.index], Node: child}
}

func (e EdgeAndNode) Move(asOpponent bool) game.Move {
	return e.Edge.Move(asOpponent)
}

func (e EdgeAndNode) P() float32 {
	return e.Edge.P()
}

func (e EdgeAndNode) N() uint32 {
	if e.Node == nil {
		return 0
	}
	return e.Node.N()
}

func (e EdgeAndNode) NStarted() uint32 {
	if e.Node == nil {
		return 0
	}
	return e.Node.NStarted()
}

func (e EdgeAndNode) NInFlight() uint32 {
	if e.Node == nil {
		return 0
	}
	return e.Node.NInFlight()
}

func (e EdgeAndNode) WL(def float64) float64 {
	if e.Node == nil || e.Node.N() == 0 {
		return def
	}
	return e.Node.WL()
}

func (e EdgeAndNode) D(def float64) float64 {
	if e.Node == nil || e.Node.N() == 0 {
		return def
	}
	return e.Node.D()
}

func (e EdgeAndNode) M(def float64) float64 {
	if e.Node == nil || e.Node.N() == 0 {
		return def
	}
	return e.Node.M()
}

func (e EdgeAndNode) QBeta(def float64) float64 {
	if e.Node == nil || e.Node.N() == 0 {
		return def
	}
	return e.Node.QBeta()
}

func (e EdgeAndNode) NBeta() float64 {
	if e.Node == nil {
		return 0
	}
	return e.Node.NBeta()
}

func (e EdgeAndNode) RBeta() float64 {
	if e.Node == nil {
		return 1
	}
	return e.Node.RBeta()
}

func (e EdgeAndNode) Bounds() (lower, upper game.GameResult) {
	if e.Node == nil {
		return game.BlackWon, game.WhiteWon
	}
	return e.Node.Bounds()
}

func (e EdgeAndNode) IsTerminal() bool {
	return e.Node != nil && e.Node.IsTerminal()
}

func (e EdgeAndNode) IsTbTerminal() bool {
	return e.Node != nil && e.Node.IsTbTerminal()
}

func (e EdgeAndNode) String() string {
	return fmt.Sprintf("%s N: %d", e.Edge, e.N())
}

// UpdateChildrenParents points every child back at this node. It is needed
// after the node's state has been moved to a new address.
func (n *Node) UpdateChildrenParents() {
	if n.kids.kind == compact {
		for i := range n.kids.solid {
			n.kids.solid[i].parent = n
		}
		return
	}
	for c := n.kids.head; c != nil; c = c.sibling {
		c.parent = n
	}
}

func (n *Node) String() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var b strings.Builder
	fmt.Fprintf(&b, "Term:%s This:%p Parent:%p Index:%d Sibling:%p Edges:%d Solid:%t ",
		n.terminal, n, n.parent, n.index, n.sibling, len(n.edges), n.kids.kind == compact)
	fmt.Fprintf(&b, "N:%d N_:%d WL:%.4f D:%.4f M:%.2f Qb:%.4f Nb:%.2f Rb:%.3f Bounds:%s/%s",
		n.n, n.nInFlight, n.wl, n.d, n.m, n.qBeta, n.nBeta, n.rBeta, n.lower, n.upper)
	return b.String()
}
