package tree

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lctree/game"
	"lctree/reclaim"
	"lctree/searcher"
)

type Option func(t *NodeTree)

func WithLogger(logger zerolog.Logger) Option {
	return func(t *NodeTree) {
		t.log = logger
	}
}

// NodeTree tracks the game played so far and the node of the current
// position (the head) in a tree that is reused from move to move.
//
// Structural changes of the tree, including expansion by search workers,
// must happen while holding the tree's lock.
type NodeTree struct {
	sync.Mutex

	gc        reclaim.Collector
	gamebegin *searcher.Node
	head      *searcher.Node
	history   *game.History
	id        uuid.UUID
	log       zerolog.Logger
}

// New creates an empty tree. Released subtrees are handed to gc.
func New(gc reclaim.Collector, opts ...Option) *NodeTree {
	t := &NodeTree{
		gc:  gc,
		id:  uuid.New(),
		log: log.Logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With().Str("tree", t.id.String()).Logger()
	return t
}

func (t *NodeTree) ID() uuid.UUID {
	return t.id
}

func (t *NodeTree) CurrentHead() *searcher.Node {
	return t.head
}

func (t *NodeTree) GameBeginNode() *searcher.Node {
	return t.gamebegin
}

func (t *NodeTree) History() *game.History {
	return t.history
}

func (t *NodeTree) HeadPosition() game.Position {
	return t.history.Last()
}

func (t *NodeTree) IsBlackToMove() bool {
	return t.history.IsBlackToMove()
}

func (t *NodeTree) PlyCount() int {
	return t.history.Len() - 1
}

// MakeMove advances the head by move, given in absolute orientation. The
// subtree of the new head is reused when it exists. Outside analyse mode all
// other children of the old head are released.
func (t *NodeTree) MakeMove(move game.Move, analyse bool) {
	if t.IsBlackToMove() {
		move = move.Mirror()
	}
	if analyse && t.head.NumEdges() == 0 {
		t.head.CreateEdges(t.HeadPosition().LegalMoves())
	}

	var newHead *searcher.Node
	for _, edge := range t.head.Edges() {
		if edge.Move(false) != move {
			continue
		}
		newHead = t.head.GetOrSpawnChild(edge.Index)
		// the position may have been terminal only because of the history
		// that led to it
		if newHead.IsTerminal() {
			newHead.MakeNotTerminal()
		}
		break
	}
	if !analyse {
		t.head.ReleaseChildrenExceptOne(t.gc, newHead)
		newHead = t.head.FirstChild()
	}
	if newHead == nil {
		newHead = t.head.CreateSingleChildNode(move)
	}
	t.head = newHead
	t.history.Append(move)
}

// TrimTreeAtHead drops all statistics and children of the head.
func (t *NodeTree) TrimTreeAtHead() {
	t.head.Reinitialize(t.gc)
	t.log.Debug().Int("ply", t.PlyCount()).Msg("trimmed tree at head")
}

// ResetToPosition replays moves from start and reports whether the old head
// was passed on the way, in which case its subtree is reused.
func (t *NodeTree) ResetToPosition(start game.Position, moves []game.Move, analyse bool) bool {
	if t.gamebegin != nil && !t.history.Starting().Equal(start) {
		// a different starting position shares nothing with the old tree
		t.DeallocateTree()
	}
	if t.gamebegin == nil {
		t.gamebegin = searcher.NewNode(nil, 0)
	}
	if t.history == nil {
		t.history = game.NewHistory(start)
	} else {
		t.history.Reset(start)
	}

	oldHead := t.head
	t.head = t.gamebegin
	seenOldHead := t.gamebegin == oldHead
	for _, move := range moves {
		t.MakeMove(move, analyse)
		if oldHead == t.head {
			seenOldHead = true
		}
	}

	// If the old head was not on the way, the new head may carry stale
	// statistics from a different line of play.
	if !seenOldHead && !analyse {
		t.TrimTreeAtHead()
	}
	t.log.Info().
		Int("moves", len(moves)).
		Bool("reused", seenOldHead).
		Msg("reset tree to position")
	return seenOldHead
}

// DeallocateTree releases the whole tree.
func (t *NodeTree) DeallocateTree() {
	if t.gamebegin != nil {
		t.gc.Collect(searcher.NewSubtree(t.gamebegin))
	}
	t.gamebegin = nil
	t.head = nil
	t.log.Info().Msg("deallocated tree")
}
