package decoder

import (
	"errors"
	"strings"

	"github.com/emmett/streamvox/internal/model"
)

const testVocab = 10

var errBoom = errors.New("boom")

// scriptedModel treats each feature frame as joiner logits. The encoder
// passes the first hop frames of a chunk through, the predictor exposes the
// last context token, and bias (if set) adds a context dependent term.
type scriptedModel struct {
	segment, hop int
	bias         [][]float32 // [lastToken][token]

	encoderCalls   int
	predictorCalls int
	failEncoderAt  int // 1-based chunk number, 0 never
	failJoiner     bool
}

func newScriptedModel(segment, hop int) *scriptedModel {
	return &scriptedModel{segment: segment, hop: hop}
}

func (m *scriptedModel) Meta() model.Meta {
	return model.Meta{
		BlankID:           0,
		ContextSize:       2,
		SegmentSize:       m.segment,
		HopSize:           m.hop,
		VocabSize:         testVocab,
		FeatureDim:        testVocab,
		SubsamplingFactor: 1,
	}
}

func (m *scriptedModel) InitState() model.State { return 0 }

func (m *scriptedModel) RunEncoder(frames [][]float32, state model.State) ([][]float32, model.State, error) {
	m.encoderCalls++
	if m.failEncoderAt > 0 && m.encoderCalls == m.failEncoderAt {
		return nil, state, errBoom
	}
	out := make([][]float32, m.hop)
	for i := range out {
		out[i] = append([]float32(nil), frames[i]...)
	}
	return out, state.(int) + 1, nil
}

func (m *scriptedModel) RunPredictor(context []int32) ([]float32, error) {
	m.predictorCalls++
	return []float32{float32(context[len(context)-1])}, nil
}

func (m *scriptedModel) RunJoiner(encoderOut, predictorOut []float32) ([]float32, error) {
	if m.failJoiner {
		return nil, errBoom
	}
	out := append([]float32(nil), encoderOut...)
	if m.bias != nil {
		row := m.bias[int(predictorOut[0])]
		for i := range out {
			out[i] += row[i]
		}
	}
	return out, nil
}

// scriptedExtractor releases one scripted frame per samplesPerFrame samples
type scriptedExtractor struct {
	script          [][]float32
	samplesPerFrame int
	samples         int
	consumed        int // frames handed out before the last reset
	finished        bool
}

func (e *scriptedExtractor) AcceptWaveform(sampleRate float64, samples []float32) error {
	if sampleRate != 16000 {
		return errors.New("unexpected sample rate")
	}
	e.samples += len(samples)
	return nil
}

func (e *scriptedExtractor) InputFinished() { e.finished = true }

func (e *scriptedExtractor) NumFramesReady() int {
	return min(e.samples/e.samplesPerFrame, len(e.script)-e.consumed)
}

func (e *scriptedExtractor) Frame(i int) []float32 { return e.script[e.consumed+i] }

func (e *scriptedExtractor) Dim() int { return testVocab }

func (e *scriptedExtractor) Reset() {
	e.consumed += e.NumFramesReady()
	e.samples = 0
	e.finished = false
}

// tokenFrame puts (almost) all probability mass on token
func tokenFrame(token int) []float32 {
	f := make([]float32, testVocab)
	for i := range f {
		if i != token {
			f[i] = -1000
		}
	}
	return f
}

func silenceFrame() []float32 { return tokenFrame(0) }

// script builds frames from a token per frame, 0 meaning silence
func script(tokens ...int) [][]float32 {
	frames := make([][]float32, len(tokens))
	for i, t := range tokens {
		frames[i] = tokenFrame(t)
	}
	return frames
}

type mapSymbols map[int32]string

func (s mapSymbols) TokenToText(ids []int32) string {
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(s[id])
	}
	return b.String()
}

var testSymbols = mapSymbols{1: "a", 2: "b", 3: "c", 5: "he", 9: "llo"}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FrameDuration = 0.01
	return cfg
}
