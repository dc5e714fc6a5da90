package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"lctree/game"
	"lctree/meta"
	"lctree/metrics"
	"lctree/reclaim"
	"lctree/searcher"
	"lctree/training"
)

func newEngine(t *testing.T, options ...Option) *Engine {
	gc := reclaim.New()
	gc.Start(context.Background())
	t.Cleanup(gc.Stop)
	e := New(gc, options...)
	t.Cleanup(e.Close)
	return e
}

func reset(e *Engine, seed uint64) {
	e.tree.Lock()
	defer e.tree.Unlock()
	e.tree.ResetToPosition(game.NewSynthetic(seed, e.branching, e.maxPly), nil, false)
}

// requireConsistent checks that no visit is left in flight below node and
// that every node's visits are its own plus those of its children.
func requireConsistent(t *testing.T, node *searcher.Node) {
	require.Equal(t, uint32(0), node.NInFlight(), "Node %s", node)
	sum := uint32(0)
	for _, edge := range node.Edges() {
		if edge.Node == nil {
			continue
		}
		sum += edge.N()
		requireConsistent(t, edge.Node)
	}
	if node.NumEdges() > 0 && node.N() > 0 {
		require.Equal(t, node.ChildrenVisits(), sum, "Node %s", node)
	}
}

func TestSearch(t *testing.T) {
	t.Run("every episode is backed up to the head", func(t *testing.T) {
		params := searcher.DefaultParams()
		params.FullBetaUpdate = false
		e := newEngine(t,
			WithSearch(meta.SearchConfig{Goroutines: 4, Episodes: 200, SolidThreshold: 8, UseRENTS: true}),
			WithParams(params),
		)
		reset(e, 3)

		require.NoError(t, e.Search(context.Background()))

		head := e.tree.CurrentHead()
		require.Equal(t, uint32(200), head.N())
		require.True(t, head.IsSolid(), "A head with enough visits should be compacted")
		requireConsistent(t, head)
	})

	t.Run("relevance-weighted search leaves a consistent tree", func(t *testing.T) {
		e := newEngine(t, WithGoroutines(4), WithEpisodes(300))
		reset(e, 11)

		require.NoError(t, e.Search(context.Background()))

		head := e.tree.CurrentHead()
		require.Greater(t, head.N(), uint32(1))
		require.LessOrEqual(t, head.N(), uint32(300))
		require.GreaterOrEqual(t, head.NBeta(), 1.0)
		requireConsistent(t, head)
	})

	t.Run("searching without a head fails", func(t *testing.T) {
		e := newEngine(t, WithEpisodes(10))
		require.ErrorIs(t, e.Search(context.Background()), errNoHead)
	})

	t.Run("a cancelled search stops early", func(t *testing.T) {
		e := newEngine(t, WithEpisodes(1000000))
		reset(e, 5)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.NoError(t, e.Search(ctx))
		require.Less(t, e.tree.CurrentHead().N(), uint32(1000000))
	})
}

// favouring puts most of the prior on one move when it is legal.
type favouring struct {
	move game.Move
}

func (f favouring) Evaluate(position game.Position, moves []game.Move, rng *rand.Rand) Evaluation {
	eval := Evaluation{V: 0.2, D: 0.3, M: 20, Priors: make([]float32, len(moves))}
	for i, move := range moves {
		eval.Priors[i] = 0.1 / float32(len(moves))
		if move == f.move {
			eval.Priors[i] += 0.9
		}
	}
	return eval
}

func TestSearchRepetition(t *testing.T) {
	var line []game.Move
	for _, s := range []string{"g1f3", "g8f6", "f3g1"} {
		move, err := game.ParseMove(s)
		require.NoError(t, err)
		line = append(line, move)
	}
	back, err := game.ParseMove("f6g8")
	require.NoError(t, err)

	e := newEngine(t,
		WithSearch(meta.SearchConfig{Goroutines: 1, Episodes: 12}),
		WithGame("chess"),
		// black's moves are seen from black's side
		WithEvaluator(favouring{move: back.Mirror()}),
	)
	e.tree.Lock()
	e.tree.ResetToPosition(game.NewChess(), line, false)
	e.tree.Unlock()

	require.NoError(t, e.Search(context.Background()))

	head := e.tree.CurrentHead()
	var repeated searcher.EdgeAndNode
	for _, edge := range head.Edges() {
		if edge.Move(true) == back {
			repeated = edge
		}
	}
	require.NotNil(t, repeated.Node, "The favoured move should have been searched")
	require.Equal(t, searcher.TwoFold, repeated.Node.TerminalType())
	require.Zero(t, repeated.Node.WL(), "A repetition should be scored as a draw")
	require.Equal(t, 1.0, repeated.Node.D())
	requireConsistent(t, head)

	t.Run("the repeated node is searched again once the game reaches it", func(t *testing.T) {
		e.tree.Lock()
		e.tree.MakeMove(back, false)
		e.tree.Unlock()
		require.False(t, e.tree.CurrentHead().IsTerminal())

		require.NoError(t, e.Search(context.Background()))
		require.Greater(t, e.tree.CurrentHead().NumEdges(), 0)
	})
}

func TestSelectChild(t *testing.T) {
	e := newEngine(t, WithSearch(meta.SearchConfig{Episodes: 1, CPuct: 1}))
	node := searcher.NewNode(nil, 0)
	require.True(t, node.TryStartScoreUpdate())
	node.FinalizeScoreUpdate(searcher.Update{Multivisit: 1, MultivisitEff: 1}, e.params)
	node.CreateEdges([]game.Move{
		game.NewMove(0, 8, game.NoPromotion),
		game.NewMove(1, 9, game.NoPromotion),
		game.NewMove(2, 10, game.NoPromotion),
	})
	for i, edge := range node.Edges() {
		edge.Edge.SetP([]float32{0.2, 0.7, 0.1}[i])
	}

	t.Run("unvisited children are ranked by prior", func(t *testing.T) {
		require.Equal(t, uint16(1), e.selectChild(node).Index)
	})

	t.Run("unvisited children are not cached", func(t *testing.T) {
		_, ok := node.BestChildCached()
		require.False(t, ok)
	})
}

func TestVisitsAllowed(t *testing.T) {
	t.Run("a best edge whose value beats the runner-up is cached the longest", func(t *testing.T) {
		require.Equal(t, uint32(maxCachedVisits), visitsAllowed(0.5, 0.1, 0.4, 10))
	})

	t.Run("visits until the exploration term runs out", func(t *testing.T) {
		require.Equal(t, uint32(2), visitsAllowed(0.1, 0.5, 0.4, 3))
	})

	t.Run("at least one visit is allowed", func(t *testing.T) {
		require.Equal(t, uint32(1), visitsAllowed(0.1, 0.35, 0.4, 3))
	})

	t.Run("the allowance is capped", func(t *testing.T) {
		require.Equal(t, uint32(maxCachedVisits), visitsAllowed(0, 1, 0.01, 0))
	})
}

// finalPosition overrides the outcome of an embedded position.
type finalPosition struct {
	game.Position
	outcome     game.GameResult
	blackToMove bool
}

func (p finalPosition) Outcome() game.GameResult { return p.outcome }
func (p finalPosition) IsBlackToMove() bool      { return p.blackToMove }

func TestRelativeResult(t *testing.T) {
	t.Run("a win by the last mover is a win for the node", func(t *testing.T) {
		// black to move means white moved last
		require.Equal(t, game.WhiteWon, relativeResult(finalPosition{outcome: game.WhiteWon, blackToMove: true}))
		require.Equal(t, game.WhiteWon, relativeResult(finalPosition{outcome: game.BlackWon, blackToMove: false}))
	})

	t.Run("a win by the side to move is a loss for the node", func(t *testing.T) {
		require.Equal(t, game.BlackWon, relativeResult(finalPosition{outcome: game.WhiteWon, blackToMove: false}))
	})

	t.Run("draws are draws for everyone", func(t *testing.T) {
		require.Equal(t, game.Draw, relativeResult(finalPosition{outcome: game.Draw, blackToMove: true}))
	})
}

type memoryWriter struct {
	records []*training.V5TrainingData
}

func (w *memoryWriter) Write(data *training.V5TrainingData) error {
	w.records = append(w.records, data)
	return nil
}

func TestPlayGame(t *testing.T) {
	selfPlay := meta.SelfPlayConfig{Seed: 9, Branching: 4, MaxPly: 16, MaxTurns: 24, Temp: 1, TempDecay: 4}

	t.Run("a game produces one record per searched move", func(t *testing.T) {
		e := newEngine(t,
			WithSearch(meta.SearchConfig{Goroutines: 2, Episodes: 64, SolidThreshold: 16, StabilizeInterval: 16, UseRENTS: true}),
			WithSelfPlay(selfPlay),
			WithMetrics(metrics.NewTreeMetrics(nil)),
		)
		w := &memoryWriter{}

		gameMetric, moveMetrics, err := e.PlayGame(context.Background(), 42, w)
		require.NoError(t, err)

		require.Equal(t, len(moveMetrics), gameMetric.TotalMoves)
		require.LessOrEqual(t, gameMetric.TotalMoves, 16)
		require.Greater(t, gameMetric.TotalMoves, 0)
		require.Contains(t, []string{"1-0", "0-1", "1/2-1/2"}, gameMetric.Result)
		require.Len(t, w.records, gameMetric.TotalMoves)
		for i, m := range moveMetrics {
			require.Equal(t, i+1, m.Step)
			require.Equal(t, i%2 == 1, m.BlackToMove)
			require.Greater(t, m.Episodes, 0)
		}
		for i, record := range w.records {
			require.Equal(t, float32(gameMetric.TotalMoves-i), record.PliesLeft)
			require.Contains(t, []int8{-1, 0, 1}, record.Result)
			require.Equal(t, uint32(training.Version), record.Version)
		}
		require.Equal(t, gameMetric.TotalMoves, e.tree.PlyCount())
	})

	t.Run("games of the same seed are replayed on the same tree", func(t *testing.T) {
		e := newEngine(t,
			WithSearch(meta.SearchConfig{Goroutines: 1, Episodes: 32}),
			WithSelfPlay(selfPlay),
		)
		_, _, err := e.PlayGame(context.Background(), 7, nil)
		require.NoError(t, err)
		_, _, err = e.PlayGame(context.Background(), 8, nil)
		require.NoError(t, err)
		require.Equal(t, uint32(0), e.tree.GameBeginNode().NInFlight())
	})

	t.Run("a cancelled game reports the cancellation", func(t *testing.T) {
		e := newEngine(t, WithEpisodes(100), WithSelfPlay(selfPlay))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := e.PlayGame(ctx, 1, nil)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("chess games are adjudicated at the turn limit", func(t *testing.T) {
		chess := selfPlay
		chess.Game = "chess"
		chess.MaxTurns = 6
		e := newEngine(t, WithSearch(meta.SearchConfig{Goroutines: 2, Episodes: 48, SolidThreshold: 16}), WithSelfPlay(chess))
		w := &memoryWriter{}

		gameMetric, moveMetrics, err := e.PlayGame(context.Background(), 1, w)
		require.NoError(t, err)
		require.LessOrEqual(t, gameMetric.TotalMoves, 6)
		require.Len(t, w.records, gameMetric.TotalMoves)
		if gameMetric.TotalMoves == 6 {
			require.Equal(t, "1/2-1/2", gameMetric.Result)
		}
		for _, m := range moveMetrics {
			_, err := game.ParseMove(m.Move)
			require.NoError(t, err)
		}
		// nodes above the head keep the visits of siblings released on the
		// way, so only the head's subtree adds up
		requireConsistent(t, e.tree.CurrentHead())
	})

	t.Run("unknown games are rejected", func(t *testing.T) {
		require.Panics(t, func() { New(reclaim.New(), WithGame("go")) })
	})

	t.Run("several games are recorded in order", func(t *testing.T) {
		e := newEngine(t, WithSearch(meta.SearchConfig{Goroutines: 2, Episodes: 32}), WithSelfPlay(selfPlay))

		games, moves, err := e.Run(context.Background(), 3, nil)
		require.NoError(t, err)
		require.Len(t, games, 3)
		total := 0
		for i, g := range games {
			require.Equal(t, i+1, g.ID)
			total += g.TotalMoves
		}
		require.Len(t, moves, total)
	})
}

func TestPolicy(t *testing.T) {
	t.Run("temperature one keeps visit shares", func(t *testing.T) {
		require.InDeltaSlice(t, []float64{0.25, 0.75}, adjustTemperature([]float64{1, 3}, 1), 1e-9)
	})

	t.Run("low temperatures sharpen the distribution", func(t *testing.T) {
		require.InDeltaSlice(t, []float64{0.1, 0.9}, adjustTemperature([]float64{1, 3}, 0.5), 1e-9)
	})

	t.Run("no visits give a uniform distribution", func(t *testing.T) {
		require.InDeltaSlice(t, []float64{0.5, 0.5}, adjustTemperature([]float64{0, 0}, 1), 1e-9)
	})

	t.Run("sampling follows the distribution", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))
		for i := 0; i < 20; i++ {
			require.Equal(t, 1, sample([]float64{0, 1, 0}, rng))
		}
		require.Equal(t, 1, sample([]float64{0, 0.99999}, rng), "Rounding should fall back to the last move")
	})
}

func TestSyntheticEvaluator(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	eval := NewSyntheticEvaluator(0.2)
	position := game.NewSynthetic(5, 8, 40)
	moves := position.LegalMoves()

	result := eval.Evaluate(position, moves, rng)

	require.Len(t, result.Priors, len(moves))
	total := float32(0)
	for _, p := range result.Priors {
		require.Greater(t, p, float32(0))
		total += p
	}
	require.InDelta(t, 1.0, total, 1e-5)
	require.GreaterOrEqual(t, result.V, -1.0)
	require.LessOrEqual(t, result.V, 1.0)
	require.InDelta(t, 0.5*(1-abs(result.V)), result.D, 1e-9)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
