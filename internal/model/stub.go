package model

import (
	"fmt"
	"math"
	"strconv"
)

// StubBackend is the registry name of the stub model.
const StubBackend = "stub"

// Stub vocabulary ids.
const (
	StubBlank  int32 = 0
	StubSpeech int32 = 1
	StubPause  int32 = 2
)

const (
	stubContextSize = 2
	stubSegmentSize = 9
	stubHopSize     = 4
	stubSubsampling = 4
)

// StubVocabulary lists the symbols of the stub model, indexed by token id.
func StubVocabulary() []string {
	return []string{"<blk>", "▁[speech]", "▁[pause]"}
}

// StubModel is a deterministic transducer that needs no neural network.
// Its encoder reduces each hop to the mean log-mel energy, and the joiner
// emits [speech] when the energy crosses Threshold and [pause] when it falls
// back below it. It exists so the streaming pipeline can be exercised end to
// end without a real backend.
type StubModel struct {
	Threshold  float64
	FeatureDim int
}

// NewStubModel returns a stub model for featureDim-dimensional frames.
func NewStubModel(featureDim int, threshold float64) *StubModel {
	return &StubModel{Threshold: threshold, FeatureDim: featureDim}
}

func init() {
	Register(StubBackend, openStub)
}

func openStub(_ string, opts map[string]string) (Model, error) {
	dim := 80
	threshold := 8.0
	if v, ok := opts["feature_dim"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid feature_dim %q", v)
		}
		dim = n
	}
	if v, ok := opts["threshold"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold %q: %w", v, err)
		}
		threshold = f
	}
	return NewStubModel(dim, threshold), nil
}

// Meta implements Model.
func (s *StubModel) Meta() Meta {
	return Meta{
		BlankID:           StubBlank,
		ContextSize:       stubContextSize,
		SegmentSize:       stubSegmentSize,
		HopSize:           stubHopSize,
		VocabSize:         len(StubVocabulary()),
		FeatureDim:        s.FeatureDim,
		SubsamplingFactor: stubSubsampling,
	}
}

// InitState implements Model. The state counts processed chunks.
func (s *StubModel) InitState() State {
	return 0
}

// RunEncoder implements Model.
func (s *StubModel) RunEncoder(frames [][]float32, state State) ([][]float32, State, error) {
	n, ok := state.(int)
	if !ok {
		return nil, nil, fmt.Errorf("stub: unexpected state type %T", state)
	}
	if len(frames) != stubSegmentSize {
		return nil, nil, fmt.Errorf("stub: expected %d frames, got %d", stubSegmentSize, len(frames))
	}

	var sum float64
	var count int
	for _, frame := range frames[:stubHopSize] {
		if len(frame) != s.FeatureDim {
			return nil, nil, fmt.Errorf("stub: expected dim %d, got %d", s.FeatureDim, len(frame))
		}
		for _, v := range frame {
			sum += float64(v)
		}
		count += len(frame)
	}
	energy := float32(sum / float64(count))

	out := make([][]float32, stubHopSize/stubSubsampling)
	for i := range out {
		out[i] = []float32{energy}
	}
	return out, n + 1, nil
}

// RunPredictor implements Model.
func (s *StubModel) RunPredictor(context []int32) ([]float32, error) {
	if len(context) != stubContextSize {
		return nil, fmt.Errorf("stub: expected context of %d, got %d", stubContextSize, len(context))
	}
	return []float32{float32(context[len(context)-1])}, nil
}

// RunJoiner implements Model.
func (s *StubModel) RunJoiner(encoderOut, predictorOut []float32) ([]float32, error) {
	if len(encoderOut) != 1 || len(predictorOut) != 1 {
		return nil, fmt.Errorf("stub: malformed joiner input")
	}
	voiced := float64(encoderOut[0]) > s.Threshold
	last := int32(predictorOut[0])

	target := StubBlank
	switch {
	case voiced && last != StubSpeech:
		target = StubSpeech
	case !voiced && last == StubSpeech:
		target = StubPause
	}

	vocab := len(StubVocabulary())
	other := float32(math.Log(0.1 / float64(vocab-1)))
	out := make([]float32, vocab)
	for i := range out {
		out[i] = other
	}
	out[target] = float32(math.Log(0.9))
	return out, nil
}
