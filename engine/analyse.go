package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"lctree/game"
)

// lcbPercentile is the percentile of the lower confidence bound reported for
// each move.
const lcbPercentile = 0.1

// EdgeStats describes one move of the head. Values are from the side to
// move.
type EdgeStats struct {
	Move   string  `json:"move"`
	N      uint32  `json:"n"`
	P      float32 `json:"p"`
	Policy float32 `json:"policy"`
	Q      float64 `json:"q"`
	LCB    float64 `json:"lcb"`
}

// Analysis is the outcome of searching one position.
type Analysis struct {
	Ply    int         `json:"ply"`
	Reused bool        `json:"reused"`
	N      uint32      `json:"n"`
	Q      float64     `json:"q"`
	D      float64     `json:"d"`
	M      float64     `json:"m"`
	Best   string      `json:"best"`
	Edges  []EdgeStats `json:"edges"`
}

// Analyse searches the position reached by playing moves from the start
// position of seed. The tree is kept between calls, so a position that
// continues the previous one reuses its subtree.
func (e *Engine) Analyse(ctx context.Context, seed uint64, moves []game.Move) (Analysis, error) {
	start := e.newGame(seed)
	if err := checkLegal(start, moves); err != nil {
		return Analysis{}, err
	}
	e.tree.Lock()
	reused := e.tree.ResetToPosition(start, moves, false)
	e.tree.Unlock()

	if outcome := e.tree.HeadPosition().Outcome(); outcome != game.Undecided {
		return Analysis{}, fmt.Errorf("game is over: %s", outcome)
	}
	e.metrics.Start(e.goroutines)
	e.metrics.SetTreeReused(reused)
	if err := e.Search(ctx); err != nil {
		return Analysis{}, err
	}
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}

	e.tree.Lock()
	defer e.tree.Unlock()
	head := e.tree.CurrentHead()
	e.metrics.SetRootVisits(int(head.N()))
	e.metrics.Complete()

	blackToMove := e.tree.IsBlackToMove()
	analysis := Analysis{
		Ply:    e.tree.PlyCount(),
		Reused: reused,
		N:      head.N(),
		Q:      -head.QBeta(),
		D:      head.D(),
		M:      head.M(),
	}
	for _, edge := range head.Edges() {
		stats := EdgeStats{
			Move:   edge.Move(blackToMove).String(),
			N:      edge.N(),
			P:      edge.P(),
			Policy: edge.Edge.Policy(),
			Q:      edge.QBeta(e.params.FPU),
			LCB:    -1,
		}
		if edge.N() > 0 {
			stats.LCB = edge.Node.LCB(e.params.Trust, e.params.Prior, lcbPercentile)
		}
		analysis.Edges = append(analysis.Edges, stats)
	}
	slices.SortStableFunc(analysis.Edges, func(a, b EdgeStats) int {
		if c := cmp.Compare(b.N, a.N); c != 0 {
			return c
		}
		return cmp.Compare(b.LCB, a.LCB)
	})
	if len(analysis.Edges) > 0 {
		analysis.Best = analysis.Edges[0].Move
	}
	return analysis, nil
}

// checkLegal reports the first of moves, seen from white, that is not legal
// in the line played from start.
func checkLegal(start game.Position, moves []game.Move) error {
	position := start
	for ply, move := range moves {
		if position.IsBlackToMove() {
			move = move.Mirror()
		}
		if !slices.Contains(position.LegalMoves(), move) {
			return fmt.Errorf("%s is not legal at ply %d: %w", moves[ply], ply, game.ErrInvalidMove)
		}
		position = position.Play(move)
	}
	return nil
}
