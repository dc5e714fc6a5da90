package searcher

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFastMath(t *testing.T) {
	t.Run("logarithms are close to the exact ones", func(t *testing.T) {
		for _, x := range []float64{0.01, 0.3, 1, 2, 7.5, 100, 12345} {
			require.InDelta(t, math.Log(x), float64(FastLog(float32(x))), 1e-2, "log(%v)", x)
		}
		require.Equal(t, float32(0), FastLog2(1))
		require.Equal(t, float32(3), FastLog2(8))
	})

	t.Run("exponentials are close to the exact ones", func(t *testing.T) {
		for _, x := range []float64{-20, -3.2, -0.5, 0, 0.7, 4, 15} {
			require.InEpsilon(t, math.Exp(x), float64(FastExp(float32(x))), 1e-2, "exp(%v)", x)
		}
		require.Equal(t, float32(0), FastPow2(-200))
	})

	t.Run("powers are close to the exact ones", func(t *testing.T) {
		require.InEpsilon(t, math.Pow(9, 0.5), float64(FastPow(9, 0.5)), 1e-2)
		require.InEpsilon(t, math.Pow(0.25, 1.7), float64(FastPow(0.25, 1.7)), 2e-2)
	})

	t.Run("the logistic form tracks erf", func(t *testing.T) {
		for x := -3.0; x <= 3.0; x += 0.25 {
			require.InDelta(t, math.Erf(x), float64(FastErfLogistic(float32(x))), 0.03, "erf(%v)", x)
		}
		require.Equal(t, float32(0), FastErfLogistic(0))
	})
}
