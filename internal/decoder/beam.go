package decoder

import (
	"fmt"
	"slices"

	"github.com/emmett/streamvox/internal/model"
)

// Beam is an insertion-ordered set of hypotheses, unique by token sequence.
type Beam struct {
	hyps  []*Hypothesis
	peak  []float64 // best single contribution merged into each entry
	index map[string]int
}

// NewBeam returns an empty beam
func NewBeam() *Beam {
	return &Beam{index: make(map[string]int)}
}

func newInitialBeam() *Beam {
	b := NewBeam()
	b.Add(newEmptyHypothesis())
	return b
}

// Len returns the number of distinct sequences in the beam
func (b *Beam) Len() int { return len(b.hyps) }

// Hypotheses returns the entries in insertion order
func (b *Beam) Hypotheses() []*Hypothesis { return b.hyps }

// Add inserts h, or merges it into the entry with the same token sequence.
// Merged scores are combined with log-sum-exp; the timing metadata of the
// stronger contributor is kept. The beam takes ownership of h.
func (b *Beam) Add(h *Hypothesis) {
	i, ok := b.index[h.key]
	if !ok {
		b.index[h.key] = len(b.hyps)
		b.hyps = append(b.hyps, h)
		b.peak = append(b.peak, h.LogProb)
		return
	}

	cur := b.hyps[i]
	merged := logAdd(cur.LogProb, h.LogProb)
	if h.LogProb > b.peak[i] {
		b.peak[i] = h.LogProb
		if h.predictorOut == nil {
			h.predictorOut = cur.predictorOut
		}
		cur = h
	}
	cur.LogProb = merged
	b.hyps[i] = cur
}

// Prune returns a new beam with the k highest-scoring entries. Equal scores
// keep their insertion order.
func (b *Beam) Prune(k int) *Beam {
	order := make([]int, len(b.hyps))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int {
		sx, sy := b.hyps[x].LogProb, b.hyps[y].LogProb
		switch {
		case sx > sy:
			return -1
		case sx < sy:
			return 1
		}
		return 0
	})
	if len(order) > k {
		order = order[:k]
	}

	out := NewBeam()
	for _, i := range order {
		out.index[b.hyps[i].key] = len(out.hyps)
		out.hyps = append(out.hyps, b.hyps[i])
		out.peak = append(out.peak, b.peak[i])
	}
	return out
}

// Best returns the highest-scoring hypothesis; ties go to the shorter
// sequence, then to the earlier entry.
func (b *Beam) Best() *Hypothesis {
	var best *Hypothesis
	for _, h := range b.hyps {
		if best == nil || h.LogProb > best.LogProb ||
			(h.LogProb == best.LogProb && len(h.Tokens) < len(best.Tokens)) {
			best = h
		}
	}
	return best
}

// modifiedBeamSearch advances beam over the encoder output frames. frameOffset
// is the index of encoderOut[0] since the last reset.
func modifiedBeamSearch(m model.Model, meta model.Meta, beam *Beam, encoderOut [][]float32, frameOffset, beamSize int) (*Beam, error) {
	var logProbs []float64
	for t, enc := range encoderOut {
		next := NewBeam()
		for _, h := range beam.hyps {
			pred, err := h.predictor(m, meta)
			if err != nil {
				return nil, err
			}
			logits, err := m.RunJoiner(enc, pred)
			if err != nil {
				return nil, fmt.Errorf("%w: joiner: %w", ErrModelInference, err)
			}
			logProbs = logSoftmax(logits, logProbs)
			for token, lp := range logProbs {
				next.Add(h.successor(int32(token), meta.BlankID, frameOffset+t, lp))
			}
		}
		beam = next.Prune(beamSize)
	}
	return beam, nil
}
