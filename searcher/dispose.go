package searcher

import (
	"lctree/reclaim"
)

// chain is a detached linked list of siblings together with everything below
// them.
type chain struct {
	head *Node
}

func (c chain) Dispose() int {
	return teardown(c.head)
}

// solidBlock is a detached compact child array.
type solidBlock struct {
	nodes []Node
}

func (b solidBlock) Dispose() int {
	freed := 0
	for i := range b.nodes {
		freed += teardown(&b.nodes[i])
	}
	return freed
}

// NewSubtree wraps a root node for disposal. The node must not have a parent.
func NewSubtree(root *Node) reclaim.Subtree {
	if root.parent != nil {
		panic("subtree root is still attached to a parent")
	}
	return chain{head: root}
}

// teardown clears the links of every node reachable from root, including
// root's siblings, and returns the number of nodes visited. It walks the
// tree iteratively so deep lines do not grow the goroutine stack.
func teardown(root *Node) int {
	if root == nil {
		return 0
	}
	freed := 0
	stack := []*Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.sibling != nil {
			stack = append(stack, node.sibling)
		}
		switch node.kids.kind {
		case compact:
			for i := range node.kids.solid {
				stack = append(stack, &node.kids.solid[i])
			}
		default:
			if node.kids.head != nil {
				stack = append(stack, node.kids.head)
			}
		}
		node.parent = nil
		node.sibling = nil
		node.edges = nil
		node.kids = children{}
		node.best = bestChild{}
		freed++
	}
	return freed
}
