package model

import (
	"errors"
	"math"
	"testing"
)

func TestOpenStub(t *testing.T) {
	m, err := Open(StubBackend, "", map[string]string{"feature_dim": "4", "threshold": "1.5"})
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	meta := m.Meta()
	if meta.FeatureDim != 4 {
		t.Fatalf("expected feature dim 4, got %d", meta.FeatureDim)
	}
	if meta.SegmentSize < meta.HopSize {
		t.Fatalf("segment %d smaller than hop %d", meta.SegmentSize, meta.HopSize)
	}
	if stub, ok := m.(*StubModel); !ok || stub.Threshold != 1.5 {
		t.Fatalf("unexpected model %#v", m)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("does-not-exist", "", nil)
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestOpenStubInvalidOptions(t *testing.T) {
	if _, err := Open(StubBackend, "", map[string]string{"feature_dim": "zero"}); err == nil {
		t.Fatal("expected error for invalid feature_dim")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	Register(StubBackend, openStub)
}

func TestStubJoinerTransitions(t *testing.T) {
	m := NewStubModel(2, 5)

	loud := make([][]float32, stubSegmentSize)
	quiet := make([][]float32, stubSegmentSize)
	for i := range loud {
		loud[i] = []float32{10, 10}
		quiet[i] = []float32{0, 0}
	}

	state := m.InitState()
	enc, state, err := m.RunEncoder(loud, state)
	if err != nil {
		t.Fatalf("RunEncoder() returned error: %v", err)
	}
	if len(enc) != 1 || enc[0][0] != 10 {
		t.Fatalf("unexpected encoder output %v", enc)
	}
	if state.(int) != 1 {
		t.Fatalf("expected state 1, got %v", state)
	}

	cases := []struct {
		name    string
		enc     []float32
		context []int32
		want    int32
	}{
		{"speech onset", []float32{10}, []int32{StubBlank, StubBlank}, StubSpeech},
		{"speech continues", []float32{10}, []int32{StubBlank, StubSpeech}, StubBlank},
		{"pause", []float32{0}, []int32{StubBlank, StubSpeech}, StubPause},
		{"silence continues", []float32{0}, []int32{StubSpeech, StubPause}, StubBlank},
	}
	for _, tc := range cases {
		pred, err := m.RunPredictor(tc.context)
		if err != nil {
			t.Fatalf("%s: RunPredictor() returned error: %v", tc.name, err)
		}
		out, err := m.RunJoiner(tc.enc, pred)
		if err != nil {
			t.Fatalf("%s: RunJoiner() returned error: %v", tc.name, err)
		}
		best := 0
		for i := range out {
			if out[i] > out[best] {
				best = i
			}
		}
		if int32(best) != tc.want {
			t.Errorf("%s: expected token %d, got %d", tc.name, tc.want, best)
		}
		var total float64
		for _, v := range out {
			total += math.Exp(float64(v))
		}
		if math.Abs(total-1) > 1e-5 {
			t.Errorf("%s: joiner output is not normalised: %f", tc.name, total)
		}
	}

	if _, _, err := m.RunEncoder(quiet[:3], m.InitState()); err == nil {
		t.Fatal("expected error for short segment")
	}
}
