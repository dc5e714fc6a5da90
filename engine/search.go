package engine

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"lctree/game"
	"lctree/searcher"
)

var errNoHead = errors.New("tree has no head; reset it to a position first")

// Search runs episodes from the current head until the episode budget is
// spent, the duration has passed or ctx is done.
func (e *Engine) Search(ctx context.Context) error {
	if e.tree.CurrentHead() == nil {
		return errNoHead
	}
	if e.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.duration)
		defer cancel()
	}

	var remaining atomic.Int64
	remaining.Store(int64(e.episodes))
	var completed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < e.goroutines; i++ {
		rng := rand.New(rand.NewSource(e.rng.Uint64()))
		g.Go(func() error {
			for ctx.Err() == nil {
				if e.episodes > 0 && remaining.Add(-1) < 0 {
					// a colliding worker may still give its episode back
					remaining.Add(1)
					return nil
				}
				if !e.simulate(rng) {
					// the episode ran into a leaf another worker is evaluating
					remaining.Add(1)
					e.metrics.AddCollision()
					runtime.Gosched()
					continue
				}
				e.metrics.AddEpisode()
				done := completed.Add(1)
				if e.stabilizeInterval > 0 && done%int64(e.stabilizeInterval) == 0 {
					e.stabilize()
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// simulate runs one episode: select a leaf, evaluate it and back the result
// up to the head. It reports false if the episode collided with another
// worker and was abandoned.
func (e *Engine) simulate(rng *rand.Rand) bool {
	e.tree.Lock()
	node := e.tree.CurrentHead()
	position := e.tree.HeadPosition()
	path := make([]*searcher.Node, 0, 32)
	for {
		// compact before claiming, so the node's in-flight count still
		// equals the sum over its children
		if e.solidThreshold > 0 && node.HasChildren() && !node.IsSolid() && node.N() >= e.solidThreshold {
			e.metrics.AddSolid(node.MakeSolid(e.gc))
		}
		if !node.TryStartScoreUpdate() {
			for _, visited := range path {
				visited.CancelScoreUpdate(1)
			}
			e.tree.Unlock()
			return false
		}
		path = append(path, node)
		if node.IsTerminal() || node.NumEdges() == 0 {
			break
		}
		if e.useRENTS {
			node.SetPoliciesRENTS(e.params.RENTSTemperature, e.params.RENTSLambda, e.params.RENTSCutoffFactor, e.params.FPU)
		}
		edge := e.selectChild(node)
		position = position.Play(edge.Move(false))
		node = node.GetOrSpawnChild(edge.Index)
	}

	update := searcher.Update{Multivisit: 1, MultivisitEff: 1}
	switch {
	case node.IsTerminal():
		update.V, update.D, update.M = node.WL(), node.D(), node.M()
	case position.Outcome() != game.Undecided:
		node.MakeTerminal(relativeResult(position), 0, searcher.EndOfGame, e.params)
		update.V, update.D, update.M = node.WL(), node.D(), node.M()
	case node != e.tree.CurrentHead() && repeated(position):
		// a repetition inside the search is scored as a draw; the node
		// becomes a regular one again when the game reaches it
		node.MakeTerminal(game.Draw, 0, searcher.TwoFold, e.params)
		update.V, update.D, update.M = node.WL(), node.D(), node.M()
	default:
		moves := position.LegalMoves()
		node.CreateEdges(moves)
		// the claimed leaf keeps other workers out while it is evaluated
		e.tree.Unlock()
		eval := e.evaluator.Evaluate(position, moves, rng)
		e.tree.Lock()
		for i, edge := range node.Edges() {
			edge.Edge.SetP(eval.Priors[i])
		}
		node.SortEdges()
		// the evaluation is from the side to move, the node stores it from
		// the player who moved into it
		update.V, update.D, update.M = -eval.V, eval.D, eval.M
	}

	// Nodes above the leaf may have been moved into compact arrays while
	// the lock was released, so walk up through the parent pointers.
	head := e.tree.CurrentHead()
	for n := node; n != nil; n = n.Parent() {
		n.FinalizeScoreUpdate(update, e.params)
		if n == head {
			break
		}
		update.V = -update.V
		update.M++
	}
	e.tree.Unlock()
	return true
}

// stabilize settles the relevance-weighted value of the head.
func (e *Engine) stabilize() {
	e.tree.Lock()
	defer e.tree.Unlock()

	head := e.tree.CurrentHead()
	convergence := head.StabilizeScore(e.params)
	e.treeMetrics.Stabilized(convergence.Steps)
	if convergence.Slow {
		e.log.Warn().Msgf("slow score stabilization: %d steps, delta %.6f, converged %t, N_eff %.1f, q %.4f",
			convergence.Steps, convergence.Delta, convergence.Converged, head.NBeta(), head.QBeta())
	}
}

func repeated(position game.Position) bool {
	r, ok := position.(game.Repeater)
	return ok && r.Repetitions() > 0
}

// relativeResult converts the outcome of a final position to the view of
// the player who made the last move.
func relativeResult(position game.Position) game.GameResult {
	outcome := position.Outcome()
	if position.IsBlackToMove() {
		// white made the last move
		return outcome
	}
	return outcome.Negate()
}
