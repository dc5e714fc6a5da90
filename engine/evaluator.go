package engine

import (
	"math"

	"golang.org/x/exp/rand"

	"lctree/game"
	"lctree/training"
)

// Evaluation is the evaluator's verdict on a position, from the side to
// move. Priors has one entry per legal move and sums to 1.
type Evaluation struct {
	V      float64 // in [-1, 1]
	D      float64 // in [0, 1]
	M      float64 // expected plies left
	Priors []float32
}

type Evaluator interface {
	Evaluate(position game.Position, moves []game.Move, rng *rand.Rand) Evaluation
}

// keyed positions expose a stable identity the synthetic evaluator derives
// its values from.
type keyed interface {
	Key() uint64
}

type syntheticEvaluator struct {
	noise float64
}

// NewSyntheticEvaluator returns an evaluator whose values are a fixed
// function of the position plus uniform noise of the given amplitude.
func NewSyntheticEvaluator(noise float64) Evaluator {
	return syntheticEvaluator{noise: noise}
}

func (s syntheticEvaluator) Evaluate(position game.Position, moves []game.Move, rng *rand.Rand) Evaluation {
	var key uint64
	if k, ok := position.(keyed); ok {
		key = k.Key()
	} else {
		key = rng.Uint64()
	}

	base := float64(key%2001)/1000 - 1
	v := math.Max(-1, math.Min(1, 0.8*base+s.noise*(2*rng.Float64()-1)))
	eval := Evaluation{
		V:      v,
		D:      0.5 * (1 - math.Abs(v)),
		M:      float64(10 + (key>>16)%30),
		Priors: make([]float32, len(moves)),
	}

	total := 0.0
	raw := make([]float64, len(moves))
	for i := range raw {
		raw[i] = 0.1 + rng.Float64()
		total += raw[i]
	}
	for i := range raw {
		eval.Priors[i] = float32(raw[i] / total)
	}
	return eval
}

// syntheticEncoder fills the input planes from the position keys of the
// recent history.
type syntheticEncoder struct{}

const historyPlanes = 13

func (syntheticEncoder) Format() training.InputFormat {
	return training.InputWithCanonicalization
}

func (syntheticEncoder) Encode(history *game.History) (planes [training.NumPlanes]uint64, transform int) {
	for i := range planes {
		back := history.Len() - 1 - i/historyPlanes
		if back < 0 {
			break
		}
		if k, ok := history.At(back).(keyed); ok {
			planes[i] = k.Key() >> (i % historyPlanes)
		}
	}
	return planes, 0
}

func (syntheticEncoder) MoveIndex(move game.Move, transform int) int {
	return (int(move.From())*64 + int(move.To())) % training.NumProbabilities
}
