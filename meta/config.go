package meta

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"lctree/searcher"
)

type SearchConfig struct {
	Goroutines        int           `yaml:"goroutines"`
	Episodes          int           `yaml:"episodes"`
	Duration          time.Duration `yaml:"duration"`
	SolidThreshold    int           `yaml:"solid_threshold"`
	StabilizeInterval int           `yaml:"stabilize_interval"`
	CPuct             float64       `yaml:"cpuct"`
	UseRENTS          bool          `yaml:"use_rents"`
}

type SelfPlayConfig struct {
	Game      string  `yaml:"game"` // synthetic or chess
	Games     int     `yaml:"games"`
	Seed      uint64  `yaml:"seed"`
	Branching int     `yaml:"branching"`
	MaxPly    int     `yaml:"max_ply"`
	MaxTurns  int     `yaml:"max_turns"`
	Temp      float64 `yaml:"temperature"`
	TempDecay int     `yaml:"temperature_decay_moves"`
}

type OutputConfig struct {
	MetricsDir string `yaml:"metrics_dir"`
	Training   string `yaml:"training"`
}

type Config struct {
	LogLevel   string          `yaml:"log_level"`
	GCInterval time.Duration   `yaml:"gc_interval"`
	Search     SearchConfig    `yaml:"search"`
	Params     searcher.Params `yaml:"params"`
	SelfPlay   SelfPlayConfig  `yaml:"self_play"`
	Output     OutputConfig    `yaml:"output"`
}

func Default() Config {
	return Config{
		LogLevel:   "info",
		GCInterval: GC_INTERVAL,
		Search: SearchConfig{
			Goroutines:        GO_ROUTINES,
			Episodes:          EPISODES,
			SolidThreshold:    SOLID_THRESHOLD,
			StabilizeInterval: STABILIZE_INTERVAL,
			CPuct:             1.745,
			UseRENTS:          true,
		},
		Params: searcher.DefaultParams(),
		SelfPlay: SelfPlayConfig{
			Game:      "synthetic",
			Games:     4,
			Seed:      1,
			Branching: 8,
			MaxPly:    60,
			MaxTurns:  MAX_TURNS,
			Temp:      1.0,
			TempDecay: 20,
		},
		Output: OutputConfig{
			MetricsDir: "experiments",
			Training:   "training.zst",
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file yields the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	err = yaml.Unmarshal(raw, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
