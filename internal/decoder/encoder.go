package decoder

import (
	"fmt"

	"github.com/emmett/streamvox/internal/model"
)

// EncoderStepper runs the encoder over overlapping chunks of feature frames
// and carries its recurrent state from one chunk to the next.
type EncoderStepper struct {
	model   model.Model
	segment int
	hop     int
	dim     int

	frames    [][]float32 // frames not yet consumed by a hop
	state     model.State
	processed int
	finished  bool
	padded    bool
}

// NewEncoderStepper validates the model's chunking and returns a stepper in
// its initial state.
func NewEncoderStepper(m model.Model) (*EncoderStepper, error) {
	meta := m.Meta()
	if meta.HopSize <= 0 {
		return nil, fmt.Errorf("%w: hop size %d must be positive", ErrInvalidConfiguration, meta.HopSize)
	}
	if meta.SegmentSize < meta.HopSize {
		return nil, fmt.Errorf("%w: segment size %d is smaller than hop size %d", ErrInvalidConfiguration, meta.SegmentSize, meta.HopSize)
	}
	s := &EncoderStepper{
		model:   m,
		segment: meta.SegmentSize,
		hop:     meta.HopSize,
		dim:     meta.FeatureDim,
	}
	s.Reset()
	return s, nil
}

// Accept appends feature frames. The frames are retained, not copied.
func (s *EncoderStepper) Accept(frames ...[]float32) {
	s.frames = append(s.frames, frames...)
}

// InputFinished allows one final zero-padded chunk
func (s *EncoderStepper) InputFinished() {
	s.finished = true
}

// Ready reports whether Step can run without ErrInsufficientFrames
func (s *EncoderStepper) Ready() bool {
	if len(s.frames) >= s.segment {
		return true
	}
	return s.finished && !s.padded && len(s.frames) > 0
}

// Buffered returns the number of frames waiting in the stream buffer
func (s *EncoderStepper) Buffered() int { return len(s.frames) }

// NumProcessed returns the number of feature frames the encoder has advanced over
func (s *EncoderStepper) NumProcessed() int { return s.processed }

// Step encodes the next chunk and returns its output embeddings.
func (s *EncoderStepper) Step() ([][]float32, error) {
	if s.padded {
		return nil, ErrStreamExhausted
	}

	var chunk [][]float32
	switch {
	case len(s.frames) >= s.segment:
		chunk = s.frames[:s.segment]
	case s.finished && len(s.frames) > 0:
		chunk = make([][]float32, s.segment)
		n := copy(chunk, s.frames)
		for i := n; i < s.segment; i++ {
			chunk[i] = make([]float32, s.dim)
		}
		s.padded = true
	case s.finished:
		s.padded = true
		return nil, ErrStreamExhausted
	default:
		return nil, ErrInsufficientFrames
	}

	out, state, err := s.model.RunEncoder(chunk, s.state)
	if err != nil {
		return nil, fmt.Errorf("%w: encoder: %w", ErrModelInference, err)
	}
	s.state = state
	s.advance()
	return out, nil
}

// Reset drops buffered frames and restores the model's initial state
func (s *EncoderStepper) Reset() {
	clear(s.frames)
	s.frames = s.frames[:0]
	s.state = s.model.InitState()
	s.processed = 0
	s.finished = false
	s.padded = false
}

func (s *EncoderStepper) advance() {
	if s.padded {
		s.processed += len(s.frames)
		clear(s.frames)
		s.frames = s.frames[:0]
		return
	}
	n := copy(s.frames, s.frames[s.hop:])
	clear(s.frames[n:])
	s.frames = s.frames[:n]
	s.processed += s.hop
}
