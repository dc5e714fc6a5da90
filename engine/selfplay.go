package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lctree/game"
	"lctree/metrics"
	"lctree/training"
)

// RecordWriter persists training records.
type RecordWriter interface {
	Write(data *training.V5TrainingData) error
}

type snapshot struct {
	data        *training.V5TrainingData
	blackToMove bool
	ply         int
}

// PlayGame plays one game from the start position derived from seed.
// Training records are written to w once the result is known; w may be nil.
func (e *Engine) PlayGame(ctx context.Context, seed uint64, w RecordWriter) (metrics.GameMetric, []metrics.MoveMetric, error) {
	gameMetric := metrics.GameMetric{Seed: seed, StartTime: time.Now()}
	var moveMetrics []metrics.MoveMetric
	var snapshots []snapshot

	start := e.newGame(seed)
	e.tree.Lock()
	reused := e.tree.ResetToPosition(start, nil, false)
	e.tree.Unlock()

	e.log.Info().Msgf("game %d started", seed)
	turn := 0
	for ; turn < e.maxTurns; turn++ {
		if e.tree.HeadPosition().Outcome() != game.Undecided {
			break
		}

		e.metrics.Start(e.goroutines)
		e.metrics.SetTreeReused(reused)
		err := e.Search(ctx)
		if err != nil {
			return gameMetric, moveMetrics, fmt.Errorf("failed to search move %d: %w", turn, err)
		}
		if ctx.Err() != nil {
			return gameMetric, moveMetrics, ctx.Err()
		}

		e.tree.Lock()
		head := e.tree.CurrentHead()
		e.metrics.SetRootVisits(int(head.N()))
		searchMetric := e.metrics.Complete()
		if head.NumEdges() == 0 {
			e.tree.Unlock()
			return gameMetric, moveMetrics, fmt.Errorf("search of move %d expanded nothing", turn)
		}

		edge := e.pickMove(head, turn)
		best := training.Best{Q: float32(edge.WL(0)), D: float32(edge.D(0)), M: float32(edge.M(0))}
		data, err := training.FromNode(head, game.Undecided, e.tree.History(), e.encoder, best)
		switch {
		case errors.Is(err, training.ErrInvalidSearch):
			e.log.Warn().Err(err).Int("turn", turn).Msg("skipping training record")
		case err != nil:
			e.tree.Unlock()
			return gameMetric, moveMetrics, err
		default:
			snapshots = append(snapshots, snapshot{data: data, blackToMove: e.tree.IsBlackToMove(), ply: turn})
		}

		blackToMove := e.tree.IsBlackToMove()
		move := edge.Move(blackToMove)
		e.tree.MakeMove(move, false)
		e.tree.Unlock()

		moveMetrics = append(moveMetrics, metrics.MoveMetric{
			Step:         turn + 1,
			BlackToMove:  blackToMove,
			Move:         move.String(),
			SearchMetric: searchMetric,
		})
		reused = true
	}

	result := e.tree.HeadPosition().Outcome()
	if result == game.Undecided {
		// adjudicate games that hit the turn limit
		result = game.Draw
	}
	if w != nil {
		for _, s := range snapshots {
			s.data.SetResult(result, s.blackToMove)
			s.data.PliesLeft = float32(turn - s.ply)
			if err := w.Write(s.data); err != nil {
				return gameMetric, moveMetrics, fmt.Errorf("failed to write training data: %w", err)
			}
		}
	}

	gameMetric.Result = result.String()
	gameMetric.EndTime = time.Now()
	gameMetric.Duration = gameMetric.EndTime.Sub(gameMetric.StartTime)
	gameMetric.TotalMoves = turn
	e.log.Info().Msgf("game %d over after %d moves: %s", seed, turn, result)
	return gameMetric, moveMetrics, nil
}

// Run plays games one after another, seeding each game from the engine's
// random source.
func (e *Engine) Run(ctx context.Context, games int, w RecordWriter) ([]metrics.GameRecord, []metrics.MoveRecord, error) {
	var gameRecords []metrics.GameRecord
	var moveRecords []metrics.MoveRecord
	for i := 0; i < games; i++ {
		gameMetric, moveMetrics, err := e.PlayGame(ctx, e.rng.Uint64(), w)
		if err != nil {
			return gameRecords, moveRecords, fmt.Errorf("game %d: %w", i+1, err)
		}
		gameRecords = append(gameRecords, metrics.GameRecord{ID: i + 1, GameMetric: gameMetric})
		for _, m := range moveMetrics {
			moveRecords = append(moveRecords, metrics.MoveRecord{Game: i + 1, MoveMetric: m})
		}
	}
	return gameRecords, moveRecords, nil
}
