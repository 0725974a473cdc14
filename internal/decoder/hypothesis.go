package decoder

import (
	"encoding/binary"
	"fmt"

	"github.com/emmett/streamvox/internal/model"
)

// Hypothesis is one candidate token sequence. Tokens and Timestamps are never
// modified after creation; successors get fresh slices when they append.
type Hypothesis struct {
	Tokens []int32

	// Timestamps holds the encoder output frame index of each token
	Timestamps []int

	LogProb float64

	// NumTrailingBlanks counts frames since the last non-blank emission
	NumTrailingBlanks int

	key          string
	predictorOut []float32 // nil until first needed
}

func newEmptyHypothesis() *Hypothesis {
	return &Hypothesis{}
}

// Key identifies the token sequence. Two hypotheses with equal keys are
// the same path through the vocabulary.
func (h *Hypothesis) Key() string {
	return h.key
}

// successor returns the hypothesis extended by token at frame t.
// Blank successors share the parent's sequence and predictor embedding.
func (h *Hypothesis) successor(token, blank int32, t int, logProb float64) *Hypothesis {
	if token == blank {
		return &Hypothesis{
			Tokens:            h.Tokens,
			Timestamps:        h.Timestamps,
			LogProb:           h.LogProb + logProb,
			NumTrailingBlanks: h.NumTrailingBlanks + 1,
			key:               h.key,
			predictorOut:      h.predictorOut,
		}
	}

	n := len(h.Tokens)
	tokens := make([]int32, n+1)
	copy(tokens, h.Tokens)
	tokens[n] = token

	timestamps := make([]int, n+1)
	copy(timestamps, h.Timestamps)
	timestamps[n] = t

	var suffix [4]byte
	binary.LittleEndian.PutUint32(suffix[:], uint32(token))

	return &Hypothesis{
		Tokens:     tokens,
		Timestamps: timestamps,
		LogProb:    h.LogProb + logProb,
		key:        h.key + string(suffix[:]),
	}
}

// context returns the trailing size tokens, left padded with blank
func (h *Hypothesis) context(size int, blank int32) []int32 {
	ctx := make([]int32, size)
	n := len(h.Tokens)
	for i := range ctx {
		j := n - size + i
		if j < 0 {
			ctx[i] = blank
		} else {
			ctx[i] = h.Tokens[j]
		}
	}
	return ctx
}

// predictor returns the cached prediction network embedding, computing it on
// first use.
func (h *Hypothesis) predictor(m model.Model, meta model.Meta) ([]float32, error) {
	if h.predictorOut != nil {
		return h.predictorOut, nil
	}
	out, err := m.RunPredictor(h.context(meta.ContextSize, meta.BlankID))
	if err != nil {
		return nil, fmt.Errorf("%w: predictor: %w", ErrModelInference, err)
	}
	h.predictorOut = out
	return out, nil
}
