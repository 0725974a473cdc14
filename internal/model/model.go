package model

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownBackend is returned by Open when no backend is registered under the requested name.
var ErrUnknownBackend = errors.New("model: unknown backend")

// State is the opaque recurrent encoder state. A State passed to RunEncoder
// must not be used again by the caller; only the returned State is valid.
type State any

// Meta describes the fixed properties of a transducer model.
type Meta struct {
	// BlankID is the vocabulary id meaning "no new symbol at this step"
	BlankID int32

	// ContextSize is the number of trailing tokens the predictor conditions on
	ContextSize int

	// SegmentSize is the number of feature frames consumed per encoder call
	SegmentSize int

	// HopSize is the number of feature frames the encoder advances per call.
	// SegmentSize - HopSize frames are look-ahead shared with the next call.
	HopSize int

	// VocabSize is the length of the joiner output
	VocabSize int

	// FeatureDim is the expected feature frame dimension
	FeatureDim int

	// SubsamplingFactor is the ratio of feature frames to encoder output frames
	SubsamplingFactor int
}

// Model is the neural transducer: encoder, prediction network and joiner.
// Implementations must be side-effect free given their inputs.
type Model interface {
	// Meta returns the model's fixed properties
	Meta() Meta

	// InitState returns a fresh encoder state
	InitState() State

	// RunEncoder runs one chunk of SegmentSize frames and returns the encoder
	// output embeddings together with the state for the next chunk.
	RunEncoder(frames [][]float32, state State) ([][]float32, State, error)

	// RunPredictor returns the prediction network embedding for the given
	// ContextSize trailing tokens.
	RunPredictor(context []int32) ([]float32, error)

	// RunJoiner combines one encoder embedding with a predictor embedding and
	// returns VocabSize log-probabilities (or logits).
	RunJoiner(encoderOut, predictorOut []float32) ([]float32, error)
}

// Opener constructs a model from a bundle directory and backend-specific options.
type Opener func(dir string, opts map[string]string) (Model, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Opener)
)

// Register makes a model backend available under name.
// It panics if Register is called twice with the same name or a nil opener.
func Register(name string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if open == nil {
		panic("model: Register opener is nil")
	}
	if _, dup := backends[name]; dup {
		panic("model: Register called twice for backend " + name)
	}
	backends[name] = open
}

// Open opens a model using the named backend.
func Open(backend, dir string, opts map[string]string) (Model, error) {
	backendsMu.RLock()
	open, ok := backends[backend]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownBackend, backend, Backends())
	}
	m, err := open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s model from %q: %w", backend, dir, err)
	}
	return m, nil
}

// Backends returns the sorted names of the registered backends.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
