package searcher

// Params tunes the statistics kept by the tree.
type Params struct {
	// Terminal nodes count multivisit*TerminalVisitMultiplier towards their
	// relevance-weighted visits when InflateTerminals is set
	InflateTerminals        bool    `yaml:"inflate_terminals"`
	TerminalVisitMultiplier float64 `yaml:"terminal_visit_multiplier"`
	// Recompute the relevance-weighted value from the children on every
	// finalize of an expanded node
	FullBetaUpdate bool `yaml:"full_beta_update"`

	Trust              float64 `yaml:"trust"`
	Prior              float64 `yaml:"prior"`
	MaxStabilizeSteps  int     `yaml:"max_stabilize_steps"`
	StabilizeThreshold float64 `yaml:"stabilize_threshold"`

	RENTSTemperature  float64 `yaml:"rents_temperature"`
	RENTSLambda       float64 `yaml:"rents_lambda"`
	RENTSCutoffFactor float64 `yaml:"rents_cutoff_factor"`
	FPU               float64 `yaml:"fpu"`
}

const (
	terminalNBeta = 10.0
	terminalRBeta = 0.1
	// stabilization taking more steps than this is reported as slow
	slowStabilizeSteps = 50
)

func DefaultParams() Params {
	return Params{
		InflateTerminals:        true,
		TerminalVisitMultiplier: 10,
		FullBetaUpdate:          true,
		Trust:                   0.6,
		Prior:                   2.0,
		MaxStabilizeSteps:       100,
		StabilizeThreshold:      1e-4,
		RENTSTemperature:        0.1,
		RENTSLambda:             0.25,
		RENTSCutoffFactor:       0.1,
		FPU:                     -1.0,
	}
}
