package decoder

import (
	"errors"
	"testing"
)

func TestEncoderStepperOverlap(t *testing.T) {
	m := newScriptedModel(5, 3)
	s, err := NewEncoderStepper(m)
	if err != nil {
		t.Fatalf("NewEncoderStepper() returned error: %v", err)
	}

	s.Accept(script(1, 2, 3, 4)...)
	if s.Ready() {
		t.Fatal("expected stepper not ready with 4 of 5 frames")
	}
	if _, err := s.Step(); !errors.Is(err, ErrInsufficientFrames) {
		t.Fatalf("expected ErrInsufficientFrames, got %v", err)
	}

	s.Accept(script(5, 6, 7)...)
	out, err := s.Step()
	if err != nil {
		t.Fatalf("Step() returned error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 output frames, got %d", len(out))
	}
	if s.NumProcessed() != 3 {
		t.Fatalf("expected 3 processed frames, got %d", s.NumProcessed())
	}
	if s.Buffered() < 5-3 {
		t.Fatalf("expected at least the overlap to stay buffered, got %d", s.Buffered())
	}

	// the next chunk starts at frame 4 (token 4)
	s.Accept(script(8)...)
	out, err = s.Step()
	if err != nil {
		t.Fatalf("Step() returned error: %v", err)
	}
	if out[0][4] != 0 {
		t.Fatalf("expected second chunk to start at the fourth frame, got %v", out[0])
	}
}

func TestEncoderStepperPadsOnce(t *testing.T) {
	m := newScriptedModel(4, 2)
	s, _ := NewEncoderStepper(m)
	s.Accept(script(1, 2, 3, 4, 5)...)

	if _, err := s.Step(); err != nil {
		t.Fatalf("Step() returned error: %v", err)
	}
	if s.Ready() {
		t.Fatal("expected stepper to wait before input is finished")
	}

	s.InputFinished()
	if !s.Ready() {
		t.Fatal("expected the padded chunk to be ready")
	}
	out, err := s.Step()
	if err != nil {
		t.Fatalf("padded Step() returned error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 output frames, got %d", len(out))
	}
	if m.encoderCalls != 2 {
		t.Fatalf("expected 2 encoder calls, got %d", m.encoderCalls)
	}

	if s.Ready() {
		t.Fatal("expected nothing left after the padded chunk")
	}
	if _, err := s.Step(); !errors.Is(err, ErrStreamExhausted) {
		t.Fatalf("expected ErrStreamExhausted, got %v", err)
	}
	if s.NumProcessed() != 5 {
		t.Fatalf("expected all 5 frames processed, got %d", s.NumProcessed())
	}
}

func TestEncoderStepperFailureAndReset(t *testing.T) {
	m := newScriptedModel(2, 2)
	m.failEncoderAt = 1
	s, _ := NewEncoderStepper(m)
	s.Accept(script(1, 2)...)

	_, err := s.Step()
	if !errors.Is(err, ErrModelInference) || !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped model error, got %v", err)
	}

	s.Reset()
	if s.Buffered() != 0 || s.NumProcessed() != 0 || s.Ready() {
		t.Fatalf("expected empty stepper after reset, buffered=%d processed=%d", s.Buffered(), s.NumProcessed())
	}
	s.Accept(script(1, 2)...)
	if _, err := s.Step(); err != nil {
		t.Fatalf("Step() after reset returned error: %v", err)
	}
}

func TestEncoderStepperInvalidChunking(t *testing.T) {
	if _, err := NewEncoderStepper(newScriptedModel(2, 3)); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for segment < hop, got %v", err)
	}
	if _, err := NewEncoderStepper(newScriptedModel(2, 0)); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for zero hop, got %v", err)
	}
}
