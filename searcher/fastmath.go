package searcher

import "math"

// Fast approximations of log/exp used on the aggregation hot path. The
// results are accurate to about 1e-3 relative error.

func FastLog2(a float32) float32 {
	tmp := math.Float32bits(a)
	expb := tmp >> 23
	tmp = (tmp & 0x7fffff) | (0x7f << 23)
	out := math.Float32frombits(tmp) - 1.0
	return out*(1.3465552-0.34655523*out) - 127 + float32(expb)
}

func FastPow2(a float32) float32 {
	if a < -126 {
		return 0
	}
	exp := int32(math.Floor(float64(a)))
	out := a - float32(exp)
	out = 1.0 + out*(0.6602339+0.33976606*out)
	tmp := int32(math.Float32bits(out))
	tmp += int32(uint32(exp) << 23)
	return math.Float32frombits(uint32(tmp))
}

func FastLog(a float32) float32 {
	return 0.6931471805599453 * FastLog2(a)
}

func FastExp(a float32) float32 {
	return FastPow2(1.442695040 * a)
}

func FastPow(a, b float32) float32 {
	return FastPow2(b * FastLog2(a))
}

// FastErfLogistic approximates erf(x) by tanh(1.2027x), written in logistic
// form so it only needs one exponential.
func FastErfLogistic(x float32) float32 {
	return 2.0/(1.0+FastExp(-2.4054*x)) - 1.0
}
