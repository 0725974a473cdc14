package audio

import (
	"fmt"
	"math"
)

// Resampler converts a mono stream between sample rates by linear
// interpolation. It keeps the last input sample and the read position between
// calls, so chunk boundaries leave no seams. Positions are tracked exactly in
// units of 1/to input samples. A Resampler belongs to a single goroutine.
type Resampler struct {
	from, to int64

	pos  int64 // next output position relative to the current chunk start, in 1/to samples
	prev float32
}

// NewResampler creates a resampler between two integral sample rates
func NewResampler(from, to float64) (*Resampler, error) {
	if math.IsNaN(from) || math.IsNaN(to) || math.Round(from) < 1 || math.Round(to) < 1 {
		return nil, fmt.Errorf("invalid resampling rates %v -> %v", from, to)
	}
	return &Resampler{from: int64(math.Round(from)), to: int64(math.Round(to))}, nil
}

// From returns the input sample rate
func (r *Resampler) From() float64 { return float64(r.from) }

// To returns the output sample rate
func (r *Resampler) To() float64 { return float64(r.to) }

// Resample converts in and appends the result to out[:0].
func (r *Resampler) Resample(in []float32, out []float32) []float32 {
	out = out[:0]
	if len(in) == 0 {
		return out
	}
	if r.from == r.to {
		return append(out, in...)
	}

	at := func(i int64) float32 {
		if i < 0 {
			return r.prev
		}
		return in[i]
	}

	last := int64(len(in)-1) * r.to
	for r.pos < last {
		idx := floorDiv(r.pos, r.to)
		frac := float32(r.pos-idx*r.to) / float32(r.to)
		a, b := at(idx), at(idx+1)
		out = append(out, a+(b-a)*frac)
		r.pos += r.from
	}

	r.pos -= int64(len(in)) * r.to
	r.prev = in[len(in)-1]
	return out
}

// Reset forgets stream history
func (r *Resampler) Reset() {
	r.pos = 0
	r.prev = 0
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
