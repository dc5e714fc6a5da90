package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lctree/engine"
	"lctree/experiments"
	"lctree/meta"
	"lctree/metrics"
	"lctree/reclaim"
	"lctree/server"
	"lctree/training"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	games := flag.Int("games", 0, "number of self-play games (overrides config)")
	goroutines := flag.Int("goroutines", 0, "search goroutines per move (overrides config)")
	episodes := flag.Int("episodes", 0, "episodes per move (overrides config)")
	duration := flag.Duration("duration", 0, "search time per move (overrides config)")
	out := flag.String("out", "", "training data file (overrides config)")
	gameName := flag.String("game", "", "game to play: synthetic or chess (overrides config)")
	listen := flag.String("listen", "", "serve analysis requests on this address instead of playing")
	experiment := flag.String("experiment", "", "run an experiment instead of self-play: parallelization or solid_threshold")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	cfg, err := meta.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *games > 0 {
		cfg.SelfPlay.Games = *games
	}
	if *goroutines > 0 {
		cfg.Search.Goroutines = *goroutines
	}
	if *episodes > 0 {
		cfg.Search.Episodes = *episodes
	}
	if *duration > 0 {
		cfg.Search.Duration = *duration
	}
	if *out != "" {
		cfg.Output.Training = *out
	}
	if *gameName != "" {
		cfg.SelfPlay.Game = *gameName
	}
	if g := cfg.SelfPlay.Game; g != "" && g != "synthetic" && g != "chess" {
		log.Fatal().Msgf("unknown game %q", g)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msgf("invalid log level %q", cfg.LogLevel)
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *listen != "":
		runServer(ctx, cfg, *listen)
	case *experiment == "":
		runSelfPlay(ctx, cfg)
	case *experiment == "parallelization" || *experiment == "solid_threshold":
		runExperiment(ctx, cfg, *experiment)
	default:
		log.Fatal().Msgf("unknown experiment %q", *experiment)
	}
}

func runServer(ctx context.Context, cfg meta.Config, addr string) {
	registry := prometheus.NewRegistry()
	treeMetrics := metrics.NewTreeMetrics(registry)

	gc := reclaim.New(reclaim.WithInterval(cfg.GCInterval), reclaim.WithMetrics(treeMetrics))
	gc.Start(ctx)
	defer gc.Stop()

	e := engine.New(gc,
		engine.WithSearch(cfg.Search),
		engine.WithParams(cfg.Params),
		engine.WithSelfPlay(cfg.SelfPlay),
		engine.WithMetrics(treeMetrics),
	)
	defer e.Close()

	if err := server.New(e, registry).ListenAndServe(ctx, addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}

func runExperiment(ctx context.Context, cfg meta.Config, name string) {
	gc := reclaim.New(reclaim.WithInterval(cfg.GCInterval))
	gc.Start(ctx)
	defer gc.Stop()

	run := experiments.RunParallelization
	if name == "solid_threshold" {
		run = experiments.RunSolidThreshold
	}
	dir, err := run(ctx, cfg, gc, nil)
	if err != nil {
		log.Error().Err(err).Msgf("%s experiment failed", name)
		return
	}
	log.Info().Msgf("Finished %s experiment, records in %s", name, dir)
}

func runSelfPlay(ctx context.Context, cfg meta.Config) {
	registry := prometheus.NewRegistry()
	treeMetrics := metrics.NewTreeMetrics(registry)

	gc := reclaim.New(reclaim.WithInterval(cfg.GCInterval), reclaim.WithMetrics(treeMetrics))
	gc.Start(ctx)
	defer gc.Stop()

	e := engine.New(gc,
		engine.WithSearch(cfg.Search),
		engine.WithParams(cfg.Params),
		engine.WithSelfPlay(cfg.SelfPlay),
		engine.WithMetrics(treeMetrics),
	)
	defer e.Close()

	w, err := training.NewWriter(cfg.Output.Training)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open training output")
	}

	log.Info().Msgf("Running %d self-play games...", cfg.SelfPlay.Games)
	gameRecords, moveRecords, err := e.Run(ctx, cfg.SelfPlay.Games, w)
	if err != nil {
		log.Error().Err(err).Msg("self-play stopped")
	}
	if err := w.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close training output")
	}
	log.Info().Msgf("Wrote %d training records to %s", w.Count(), cfg.Output.Training)

	writer, err := metrics.NewWriter(cfg.Output.MetricsDir)
	if err != nil {
		log.Error().Err(err).Msg("failed to create metrics writer")
		return
	}
	if err := writer.WriteGameRecords(gameRecords); err != nil {
		log.Error().Err(err).Msg("failed to write game records")
	}
	if err := writer.WriteMoveRecords(moveRecords); err != nil {
		log.Error().Err(err).Msg("failed to write move records")
	}
	log.Info().Msgf("Finished self-play, metrics in %s", writer.Dir())

	families, err := registry.Gather()
	if err != nil {
		log.Error().Err(err).Msg("failed to gather tree metrics")
		return
	}
	for _, family := range families {
		for _, m := range family.GetMetric() {
			if counter := m.GetCounter(); counter != nil {
				log.Info().Str("metric", family.GetName()).Float64("value", counter.GetValue()).Msg("tree metric")
			}
		}
	}
}
