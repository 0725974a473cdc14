package decoder

import "math"

// logAdd returns log(exp(a) + exp(b)) without overflowing
func logAdd(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// logSoftmax normalises logits into log-probabilities, writing into out.
// Applying it to values that are already log-probabilities is a no-op up to
// rounding.
func logSoftmax(logits []float32, out []float64) []float64 {
	out = out[:0]
	if len(logits) == 0 {
		return out
	}
	peak := math.Inf(-1)
	for _, v := range logits {
		if float64(v) > peak {
			peak = float64(v)
		}
	}
	sum := 0.0
	for _, v := range logits {
		sum += math.Exp(float64(v) - peak)
	}
	norm := peak + math.Log(sum)
	for _, v := range logits {
		out = append(out, float64(v)-norm)
	}
	return out
}
