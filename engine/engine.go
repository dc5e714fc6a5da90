package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"lctree/game"
	"lctree/meta"
	"lctree/metrics"
	"lctree/reclaim"
	"lctree/searcher"
	"lctree/training"
	"lctree/tree"
)

type Option func(e *Engine)

func WithGoroutines(goroutines int) Option {
	return func(e *Engine) {
		if goroutines > 0 {
			e.goroutines = goroutines
		}
	}
}

func WithEpisodes(episodes int) Option {
	return func(e *Engine) {
		if episodes > 0 {
			e.episodes = episodes
		}
	}
}

func WithDuration(duration time.Duration) Option {
	return func(e *Engine) {
		if duration > 0 {
			e.duration = duration
		}
	}
}

func WithParams(params searcher.Params) Option {
	return func(e *Engine) {
		e.params = params
	}
}

func WithSearch(cfg meta.SearchConfig) Option {
	return func(e *Engine) {
		WithGoroutines(cfg.Goroutines)(e)
		WithEpisodes(cfg.Episodes)(e)
		WithDuration(cfg.Duration)(e)
		WithSolidThreshold(cfg.SolidThreshold)(e)
		e.stabilizeInterval = cfg.StabilizeInterval
		if cfg.CPuct > 0 {
			e.cpuct = cfg.CPuct
		}
		e.useRENTS = cfg.UseRENTS
	}
}

func WithSelfPlay(cfg meta.SelfPlayConfig) Option {
	return func(e *Engine) {
		if cfg.Branching > 0 {
			e.branching = cfg.Branching
		}
		if cfg.MaxPly > 0 {
			e.maxPly = cfg.MaxPly
		}
		if cfg.MaxTurns > 0 {
			e.maxTurns = cfg.MaxTurns
		}
		WithTemperature(cfg.Temp, cfg.TempDecay)(e)
		WithGame(cfg.Game)(e)
		e.rng = rand.New(rand.NewSource(cfg.Seed))
	}
}

// WithGame selects the game played: "synthetic", the default, or "chess".
func WithGame(name string) Option {
	return func(e *Engine) {
		switch name {
		case "", "synthetic":
			e.newGame = e.synthetic
		case "chess":
			e.newGame = func(uint64) game.Position { return game.NewChess() }
		default:
			panic(fmt.Sprintf("unknown game %q", name))
		}
	}
}

// WithSolidThreshold compacts the children of nodes with at least threshold
// visits. Zero disables compaction.
func WithSolidThreshold(threshold int) Option {
	return func(e *Engine) {
		if threshold >= 0 {
			e.solidThreshold = uint32(threshold)
		}
	}
}

// WithTemperature samples moves proportionally to visits^(1/temperature)
// during the first decayMoves moves of a game, and plays the most visited
// move afterwards.
func WithTemperature(temperature float64, decayMoves int) Option {
	return func(e *Engine) {
		e.temperature = temperature
		e.tempDecay = decayMoves
	}
}

func WithMetrics(tree *metrics.TreeMetrics) Option {
	return func(e *Engine) {
		e.treeMetrics = tree
		e.metrics = metrics.NewCollector(tree)
	}
}

func WithEvaluator(evaluator Evaluator) Option {
	return func(e *Engine) {
		if evaluator != nil {
			e.evaluator = evaluator
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = logger
	}
}

// Engine plays self-play games on a reused search tree.
type Engine struct {
	goroutines        int
	episodes          int
	duration          time.Duration
	solidThreshold    uint32
	stabilizeInterval int
	cpuct             float64
	useRENTS          bool
	params            searcher.Params

	newGame     func(seed uint64) game.Position
	branching   int
	maxPly      int
	maxTurns    int
	temperature float64
	tempDecay   int

	tree        *tree.NodeTree
	gc          reclaim.Collector
	evaluator   Evaluator
	encoder     training.Encoder
	metrics     metrics.Collector
	treeMetrics *metrics.TreeMetrics
	rng         *rand.Rand
	log         zerolog.Logger
}

// New creates an engine whose tree releases subtrees to gc.
func New(gc reclaim.Collector, options ...Option) *Engine {
	e := &Engine{ // Default values
		goroutines:        meta.GO_ROUTINES,
		episodes:          meta.EPISODES,
		solidThreshold:    meta.SOLID_THRESHOLD,
		stabilizeInterval: meta.STABILIZE_INTERVAL,
		cpuct:             1.745,
		params:            searcher.DefaultParams(),
		branching:         8,
		maxPly:            60,
		maxTurns:          meta.MAX_TURNS,
		temperature:       1.0,
		tempDecay:         20,
		gc:                gc,
		evaluator:         NewSyntheticEvaluator(0.1),
		encoder:           syntheticEncoder{},
		metrics:           metrics.NewDummyCollector(),
		rng:               rand.New(rand.NewSource(1)),
		log:               log.Logger,
	}
	e.newGame = e.synthetic
	for _, option := range options {
		option(e)
	}
	if e.episodes <= 0 && e.duration <= 0 {
		panic("Must specify search episodes or duration")
	}
	e.tree = tree.New(gc, tree.WithLogger(e.log))
	return e
}

func (e *Engine) synthetic(seed uint64) game.Position {
	return game.NewSynthetic(seed, e.branching, e.maxPly)
}

func (e *Engine) Tree() *tree.NodeTree {
	return e.tree
}

// Close releases the whole tree.
func (e *Engine) Close() {
	e.tree.Lock()
	defer e.tree.Unlock()
	e.tree.DeallocateTree()
}
