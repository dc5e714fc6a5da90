package searcher

// bestChild remembers the last selection made at a node. The entry expires
// when the node's statistics change or after enough new visits have started
// through the node.
type bestChild struct {
	node          *Node
	epoch         uint64
	inFlightLimit uint32
}

// invalidate marks every statistic-derived cache of the node stale.
func (n *Node) invalidate() {
	n.epoch.Add(1)
}

// UpdateBestChild caches child as the selection of this node for the next
// visitsAllowed visits.
func (n *Node) UpdateBestChild(child *Node, visitsAllowed uint32) {
	if child == nil || child.N() == 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.best = bestChild{
		node:          child,
		epoch:         n.epoch.Load(),
		inFlightLimit: n.nInFlight + visitsAllowed,
	}
}

// BestChildCached returns the cached selection if it is still valid.
func (n *Node) BestChildCached() (*Node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.best.node == nil || n.best.epoch != n.epoch.Load() || n.nInFlight >= n.best.inFlightLimit {
		return nil, false
	}
	return n.best.node, true
}

func (n *Node) resetBestChild() {
	n.best = bestChild{}
}
