package decoder

import (
	"fmt"

	"github.com/emmett/streamvox/internal/model"
)

// greedySearch emits the single most likely token per encoder frame. Ties go
// to the lowest token id, which keeps it in step with a beam of size one.
func greedySearch(m model.Model, meta model.Meta, hyp *Hypothesis, encoderOut [][]float32, frameOffset int) (*Hypothesis, error) {
	var logProbs []float64
	for t, enc := range encoderOut {
		pred, err := hyp.predictor(m, meta)
		if err != nil {
			return nil, err
		}
		logits, err := m.RunJoiner(enc, pred)
		if err != nil {
			return nil, fmt.Errorf("%w: joiner: %w", ErrModelInference, err)
		}
		logProbs = logSoftmax(logits, logProbs)

		best := 0
		for i, lp := range logProbs {
			if lp > logProbs[best] {
				best = i
			}
		}
		hyp = hyp.successor(int32(best), meta.BlankID, frameOffset+t, logProbs[best])
	}
	return hyp, nil
}
