package searcher

import (
	"lctree/game"
	"lctree/reclaim"
)

// MakeSolid converts the children of the node from a linked list into one
// slot per edge. It declines, leaving the node untouched, when a worker may
// still hold a reference to a child.
func (n *Node) MakeSolid(gc reclaim.Collector) bool {
	if n.kids.kind == compact || len(n.edges) == 0 || n.IsTerminal() {
		return false
	}
	var totalInFlight uint32
	for c := n.kids.head; c != nil; c = c.sibling {
		visits, inFlight, terminal := c.solidState()
		// leaves in flight may be referenced across the tree lock
		if visits <= 1 && inFlight > 0 {
			return false
		}
		if terminal && inFlight > 0 {
			return false
		}
		totalInFlight += inFlight
	}
	// collisions on direct children do not show up in their counters
	if totalInFlight != n.NInFlight() {
		return false
	}

	slots := make([]Node, len(n.edges))
	for i := range slots {
		slots[i].init(n, uint16(i))
	}
	old := n.kids.head
	for old != nil {
		next := old.sibling
		slot := &slots[old.index]
		slot.moveFrom(old)
		slot.UpdateChildrenParents()
		gc.Collect(chain{head: old})
		old = next
	}
	n.kids = children{kind: compact, solid: slots}
	n.mu.Lock()
	n.resetBestChild()
	n.mu.Unlock()
	n.invalidate()
	return true
}

func (n *Node) solidState() (visits, inFlight uint32, terminal bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.n, n.nInFlight, n.terminal != NonTerminal
}

// moveFrom takes over the state of src, leaving src an empty shell that owns
// nothing. The receiver keeps its own parent and index.
func (n *Node) moveFrom(src *Node) {
	src.mu.Lock()
	defer src.mu.Unlock()
	n.mu.Lock()
	defer n.mu.Unlock()

	n.edges, src.edges = src.edges, nil
	n.kids, src.kids = src.kids, children{}
	n.sibling, src.sibling = nil, nil
	src.parent = nil

	n.n = src.n
	n.nInFlight = src.nInFlight
	n.wl = src.wl
	n.d = src.d
	n.m = src.m
	n.qBeta = src.qBeta
	n.nBeta = src.nBeta
	n.rBeta = src.rBeta
	n.visitedPolicy.Store(src.visitedPolicy.Load())
	n.terminal = src.terminal
	n.lower = src.lower
	n.upper = src.upper
	n.best = bestChild{}
	n.epoch.Add(1)
}

// ReleaseChildren hands every child to gc.
func (n *Node) ReleaseChildren(gc reclaim.Collector) {
	n.detachChildren(gc)
	n.invalidate()
}

func (n *Node) detachChildren(gc reclaim.Collector) {
	switch {
	case n.kids.kind == compact && n.kids.solid != nil:
		gc.Collect(solidBlock{nodes: n.kids.solid})
	case n.kids.kind == linkedList && n.kids.head != nil:
		gc.Collect(chain{head: n.kids.head})
	}
	n.kids = children{}
	n.mu.Lock()
	n.resetBestChild()
	n.mu.Unlock()
}

// ReleaseChildrenExceptOne hands every child but keep to gc. keep ends up as
// the only child, stored in the linked-list layout. If keep is nil, or not a
// child, the node loses its edges as well.
func (n *Node) ReleaseChildrenExceptOne(gc reclaim.Collector, keep *Node) {
	defer n.invalidate()

	if n.kids.kind == compact {
		var survivor *Node
		if keep != nil && keep.parent == n {
			survivor = NewNode(n, keep.index)
			survivor.moveFrom(keep)
			survivor.UpdateChildrenParents()
		}
		n.detachChildren(gc)
		if survivor != nil {
			n.kids = children{kind: linkedList, head: survivor}
		}
	} else {
		var prev, saved *Node
		for c := n.kids.head; c != nil; prev, c = c, c.sibling {
			if c == keep {
				saved = c
				break
			}
		}
		if saved != nil {
			if saved.sibling != nil {
				gc.Collect(chain{head: saved.sibling})
				saved.sibling = nil
			}
			if prev != nil {
				prev.sibling = nil
				gc.Collect(chain{head: n.kids.head})
			}
			n.kids.head = saved
		} else {
			n.detachChildren(gc)
		}
		n.mu.Lock()
		n.resetBestChild()
		n.mu.Unlock()
	}

	if !n.HasChildren() {
		n.edges = nil
	}
}

// Reinitialize releases everything below the node and resets it to an
// unvisited leaf. Parent, index and sibling are kept.
func (n *Node) Reinitialize(gc reclaim.Collector) {
	n.detachChildren(gc)
	n.edges = nil

	n.mu.Lock()
	n.n = 0
	n.nInFlight = 0
	n.wl, n.d, n.m = 0, 0, 0
	n.qBeta, n.nBeta, n.rBeta = 0, 0, 1
	n.visitedPolicy.Store(0)
	n.terminal = NonTerminal
	n.lower, n.upper = game.BlackWon, game.WhiteWon
	n.mu.Unlock()
	n.invalidate()
}
