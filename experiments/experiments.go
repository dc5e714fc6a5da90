package experiments

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"lctree/engine"
	"lctree/meta"
	"lctree/metrics"
	"lctree/reclaim"
)

// Every config plays the same games: the self-play seed is shared, so the
// start positions match across configs.

// RunParallelization compares search goroutine counts at a fixed episode
// budget.
func RunParallelization(ctx context.Context, cfg meta.Config, gc reclaim.Collector, tree *metrics.TreeMetrics) (string, error) {
	configs := []metrics.ConfigRecord{}
	for i, goroutines := range []int{1, 2, 4, 8, 16} {
		config := baseline(cfg.Search)
		config.ID = i + 1
		config.Goroutines = goroutines
		configs = append(configs, config)
	}
	return runExperiment(ctx, "parallelization", cfg, configs, gc, tree)
}

// RunSolidThreshold compares the visit counts at which children are
// compacted. A threshold of zero never compacts.
func RunSolidThreshold(ctx context.Context, cfg meta.Config, gc reclaim.Collector, tree *metrics.TreeMetrics) (string, error) {
	configs := []metrics.ConfigRecord{}
	for i, threshold := range []int{0, 25, 100, 400} {
		config := baseline(cfg.Search)
		config.ID = i + 1
		config.SolidThreshold = threshold
		configs = append(configs, config)
	}
	return runExperiment(ctx, "solid_threshold", cfg, configs, gc, tree)
}

func baseline(search meta.SearchConfig) metrics.ConfigRecord {
	return metrics.ConfigRecord{
		Goroutines:     search.Goroutines,
		Episodes:       search.Episodes,
		Duration:       search.Duration,
		SolidThreshold: search.SolidThreshold,
		UseRENTS:       search.UseRENTS,
	}
}

// runExperiment plays cfg.SelfPlay.Games games per config and stores the
// records under the metrics directory. It returns the directory written to.
func runExperiment(ctx context.Context, name string, cfg meta.Config, configs []metrics.ConfigRecord, gc reclaim.Collector, tree *metrics.TreeMetrics) (string, error) {
	count := 0
	gameRecords := []metrics.GameRecord{}
	moveRecords := []metrics.MoveRecord{}

	log.Info().Msgf("starting %s experiment...", name)

	for ci, config := range configs {
		log.Info().Msgf("starting config %d of %d: %+v", ci+1, len(configs), config)

		search := cfg.Search
		search.Goroutines = config.Goroutines
		search.Episodes = config.Episodes
		search.Duration = config.Duration
		search.SolidThreshold = config.SolidThreshold
		search.UseRENTS = config.UseRENTS

		e := engine.New(gc,
			engine.WithSearch(search),
			engine.WithParams(cfg.Params),
			engine.WithSelfPlay(cfg.SelfPlay),
			engine.WithMetrics(tree),
		)
		games, moves, err := e.Run(ctx, cfg.SelfPlay.Games, nil)
		e.Close()
		if err != nil {
			return "", fmt.Errorf("config %d: %w", config.ID, err)
		}

		for _, record := range games {
			record.ID += count
			record.Config = config.ID
			gameRecords = append(gameRecords, record)
		}
		for _, record := range moves {
			record.Game += count
			moveRecords = append(moveRecords, record)
		}
		count += len(games)
		log.Info().Msgf("completed config %d of %d", ci+1, len(configs))
	}

	log.Info().Msgf("completed %s experiment", name)

	writer, err := metrics.NewWriter(filepath.Join(cfg.Output.MetricsDir, name))
	if err != nil {
		return "", err
	}
	err = writer.WriteConfigRecords(configs)
	if err != nil {
		return "", fmt.Errorf("failed to store configs: %w", err)
	}
	err = writer.WriteGameRecords(gameRecords)
	if err != nil {
		return "", fmt.Errorf("failed to store game records: %w", err)
	}
	err = writer.WriteMoveRecords(moveRecords)
	if err != nil {
		return "", fmt.Errorf("failed to store move records: %w", err)
	}
	log.Info().Msgf("stored %s records in %s", name, writer.Dir())
	return writer.Dir(), nil
}
