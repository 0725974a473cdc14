// Package decoder implements streaming transducer decoding: chunked encoder
// stepping, greedy and modified beam search, and rule based endpointing.
package decoder

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/emmett/streamvox/internal/audio"
	"github.com/emmett/streamvox/internal/feature"
	"github.com/emmett/streamvox/internal/model"
)

// State is the decoder lifecycle position
type State int32

const (
	StateIdle State = iota
	StateAccepting
	StateDecoding
	StateEndpointed
	StateFinishing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccepting:
		return "accepting"
	case StateDecoding:
		return "decoding"
	case StateEndpointed:
		return "endpointed"
	case StateFinishing:
		return "finishing"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Stats is a snapshot of decoder progress since the last reset
type Stats struct {
	State           State
	FeatureFrames   int
	ProcessedFrames int // feature frames the encoder advanced over
	OutputFrames    int // encoder output frames searched
	Chunks          int
	SilenceFrames   int
	Buffer          audio.BufferStats
}

// Option configures a Decoder
type Option func(*Decoder)

// WithLogger sets the logger. The decoder logs under the "decoder" prefix.
func WithLogger(logger *log.Logger) Option {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Decoder runs one streaming recognition session.
//
// AcceptWaveform and InputFinished belong to the producer goroutine; every
// other method belongs to a single consumer goroutine. The two sides share
// only the sample buffer and the state.
type Decoder struct {
	cfg           Config
	model         model.Model
	meta          model.Meta
	extractor     feature.Extractor
	symbols       SymbolTable
	logger        *log.Logger
	frameDuration float64

	buffer *audio.SampleBuffer
	state  atomic.Int32

	// producer side
	resampler      *audio.Resampler
	resampled      []float32
	resetResampler atomic.Bool

	// consumer side
	stepper      *EncoderStepper
	beam         *Beam
	endpoint     *EndpointDetector
	samples      []float32
	nextFeature  int
	outputFrames int
	chunks       int
	announced    []int32 // token prefix released by ResetResult
	flushed      bool
	overflows    uint64
}

// New creates a decoder over model m. The extractor must produce frames of
// the model's feature dimension at cfg.SampleRate.
func New(cfg Config, m model.Model, extractor feature.Extractor, symbols SymbolTable, opts ...Option) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	meta := m.Meta()
	if meta.VocabSize <= 0 || meta.BlankID < 0 || int(meta.BlankID) >= meta.VocabSize {
		return nil, fmt.Errorf("%w: blank id %d outside vocabulary of %d", ErrInvalidConfiguration, meta.BlankID, meta.VocabSize)
	}
	if meta.ContextSize < 1 {
		return nil, fmt.Errorf("%w: context size %d must be positive", ErrInvalidConfiguration, meta.ContextSize)
	}
	if extractor.Dim() != meta.FeatureDim {
		return nil, fmt.Errorf("%w: extractor dimension %d does not match model feature dimension %d",
			ErrInvalidConfiguration, extractor.Dim(), meta.FeatureDim)
	}

	stepper, err := NewEncoderStepper(m)
	if err != nil {
		return nil, err
	}

	frameDuration := cfg.OutputFrameDuration(meta.SubsamplingFactor)
	endpointCfg := cfg.Endpoint
	if !cfg.EnableEndpoint {
		endpointCfg = EndpointConfig{
			Rule1: EndpointRule{Disabled: true},
			Rule2: EndpointRule{Disabled: true},
			Rule3: EndpointRule{Disabled: true},
		}
	}
	endpoint, err := NewEndpointDetector(endpointCfg, frameDuration)
	if err != nil {
		return nil, err
	}

	d := &Decoder{
		cfg:           cfg,
		model:         m,
		meta:          meta,
		extractor:     extractor,
		symbols:       symbols,
		logger:        log.Default(),
		frameDuration: frameDuration,
		buffer:        audio.NewSampleBuffer(cfg.BufferCeiling),
		stepper:       stepper,
		beam:          newInitialBeam(),
		endpoint:      endpoint,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithPrefix("decoder")

	d.logger.Debug("decoder ready",
		"method", cfg.Method,
		"beam", cfg.beamSize(),
		"segment", meta.SegmentSize,
		"hop", meta.HopSize,
		"frame_duration", frameDuration,
	)
	return d, nil
}

// State returns the current lifecycle state
func (d *Decoder) State() State {
	return State(d.state.Load())
}

// FrameDuration returns the seconds covered by one encoder output frame
func (d *Decoder) FrameDuration() float64 { return d.frameDuration }

// AcceptWaveform queues samples in [-1, 1] for decoding. It never blocks on
// the consumer. Audio that does not match the configured rate is resampled.
func (d *Decoder) AcceptWaveform(sampleRate float64, samples []float32) error {
	if d.State() == StateFinishing {
		return ErrInputFinished
	}

	if d.resetResampler.Swap(false) && d.resampler != nil {
		d.resampler.Reset()
	}
	if sampleRate != d.cfg.SampleRate {
		if d.resampler == nil || d.resampler.From() != sampleRate {
			r, err := audio.NewResampler(sampleRate, d.cfg.SampleRate)
			if err != nil {
				return fmt.Errorf("failed to create resampler: %w", err)
			}
			d.resampler = r
		}
		d.resampled = d.resampler.Resample(samples, d.resampled)
		samples = d.resampled
	}

	d.buffer.Push(samples)
	d.state.CompareAndSwap(int32(StateIdle), int32(StateAccepting))
	return nil
}

// InputFinished marks the end of the audio. The next Decode flushes the
// remaining frames with padding; later AcceptWaveform calls fail.
func (d *Decoder) InputFinished() {
	d.state.Store(int32(StateFinishing))
}

// Decode processes every complete encoder chunk that is available. It is a
// no-op when there is not enough audio yet. A model failure resets the
// session and is returned wrapped in ErrModelInference.
func (d *Decoder) Decode() error {
	finishing := d.State() == StateFinishing

	if err := d.feed(finishing); err != nil {
		return err
	}
	if !d.stepper.Ready() {
		return nil
	}

	if !finishing {
		d.transition(StateDecoding)
	}
	for d.stepper.Ready() {
		out, err := d.stepper.Step()
		if err != nil {
			return d.fail(err)
		}
		d.chunks++
		if err := d.search(out); err != nil {
			return d.fail(err)
		}
		d.logger.Debug("chunk decoded",
			"chunk", d.chunks,
			"frames", len(out),
			"processed", d.stepper.NumProcessed(),
			"best", d.beam.Best().LogProb,
		)
	}

	if finishing {
		return nil
	}
	if d.IsEndpoint() {
		if d.transition(StateEndpointed) {
			d.logger.Info("endpoint detected",
				"rule", d.endpoint.firing(d.hasText()),
				"silence_frames", d.endpoint.SilenceFrames(),
				"utterance_frames", d.endpoint.UtteranceFrames(),
			)
		}
	} else {
		d.transition(StateAccepting)
	}
	return nil
}

// feed moves buffered audio through the extractor into the stream buffer
func (d *Decoder) feed(finishing bool) error {
	d.samples = d.buffer.Drain(d.samples)
	if stats := d.buffer.Stats(); stats.Overflows != d.overflows {
		d.logger.Warn("audio dropped",
			"error", ErrBufferOverflow,
			"dropped", stats.Dropped,
			"overflows", stats.Overflows,
		)
		d.overflows = stats.Overflows
	}

	if len(d.samples) > 0 {
		if err := d.extractor.AcceptWaveform(d.cfg.SampleRate, d.samples); err != nil {
			return fmt.Errorf("failed to extract features: %w", err)
		}
	}
	if finishing && !d.flushed {
		d.extractor.InputFinished()
	}

	for ready := d.extractor.NumFramesReady(); d.nextFeature < ready; d.nextFeature++ {
		d.stepper.Accept(d.extractor.Frame(d.nextFeature))
	}
	if finishing && !d.flushed {
		d.stepper.InputFinished()
		d.flushed = true
	}
	return nil
}

// search runs the configured algorithm one encoder frame at a time so the
// endpoint counters see every frame.
func (d *Decoder) search(encoderOut [][]float32) error {
	for _, frame := range encoderOut {
		step := [][]float32{frame}
		if d.cfg.Method == GreedySearch {
			hyp, err := greedySearch(d.model, d.meta, d.beam.Best(), step, d.outputFrames)
			if err != nil {
				return err
			}
			beam := NewBeam()
			beam.Add(hyp)
			d.beam = beam
		} else {
			beam, err := modifiedBeamSearch(d.model, d.meta, d.beam, step, d.outputFrames, d.cfg.BeamSize)
			if err != nil {
				return err
			}
			d.beam = beam
		}
		d.outputFrames++
		d.endpoint.Advance(d.beam.Best().NumTrailingBlanks)
	}
	return nil
}

func (d *Decoder) fail(err error) error {
	if errors.Is(err, ErrModelInference) {
		d.logger.Error("model inference failed, resetting session", "error", err)
		d.Reset()
	}
	return fmt.Errorf("failed to decode chunk: %w", err)
}

// transition moves to next unless a concurrent InputFinished got there first
func (d *Decoder) transition(next State) bool {
	for {
		cur := d.state.Load()
		if State(cur) == StateFinishing || State(cur) == next {
			return false
		}
		if d.state.CompareAndSwap(cur, int32(next)) {
			return true
		}
	}
}

// GetResult renders the best hypothesis. Tokens already released by
// ResetResult are left out while the best hypothesis still extends them.
func (d *Decoder) GetResult() RecognitionResult {
	best := d.beam.Best()
	off := 0
	if hasPrefix(best.Tokens, d.announced) {
		off = len(d.announced)
	}
	tokens := best.Tokens[off:]

	result := RecognitionResult{
		Tokens:     append([]int32(nil), tokens...),
		Timestamps: make([]float64, len(tokens)),
	}
	for i, t := range best.Timestamps[off:] {
		result.Timestamps[i] = float64(t) * d.frameDuration
	}
	if d.symbols != nil {
		result.Text = d.symbols.TokenToText(tokens)
	}
	return result
}

// ResetResult hides the current text from later results without touching
// the search state.
func (d *Decoder) ResetResult() {
	d.announced = append(d.announced[:0], d.beam.Best().Tokens...)
}

func hasPrefix(tokens, prefix []int32) bool {
	if len(prefix) > len(tokens) {
		return false
	}
	for i, t := range prefix {
		if tokens[i] != t {
			return false
		}
	}
	return true
}

func (d *Decoder) hasText() bool {
	return strings.TrimSpace(d.GetResult().Text) != ""
}

// IsEndpoint reports whether any endpoint rule fires for the current state
func (d *Decoder) IsEndpoint() bool {
	if !d.cfg.EnableEndpoint {
		return false
	}
	return d.endpoint.IsEndpoint(d.hasText())
}

// Reset starts a new session: buffered audio, features, encoder state, beam
// and counters are all discarded.
func (d *Decoder) Reset() {
	d.buffer.Reset()
	d.resetResampler.Store(true)
	d.extractor.Reset()
	d.stepper.Reset()
	d.beam = newInitialBeam()
	d.endpoint.Reset()
	d.nextFeature = 0
	d.outputFrames = 0
	d.chunks = 0
	d.announced = d.announced[:0]
	d.flushed = false
	d.state.Store(int32(StateIdle))
	d.logger.Info("session reset")
}

// NextSegment starts a new segment after an endpoint. The beam, the
// released prefix and the endpoint counters are cleared; buffered audio,
// features, look-ahead frames and the encoder state carry over, so nothing
// already captured is lost. Timestamps keep counting from the last Reset.
func (d *Decoder) NextSegment() {
	d.beam = newInitialBeam()
	d.endpoint.Reset()
	d.announced = d.announced[:0]
	d.state.CompareAndSwap(int32(StateEndpointed), int32(StateAccepting))
	d.logger.Debug("segment started", "output_frames", d.outputFrames)
}

// Beam returns the current hypotheses in insertion order
func (d *Decoder) Beam() []*Hypothesis {
	return d.beam.Hypotheses()
}

// Stats returns a snapshot of progress counters
func (d *Decoder) Stats() Stats {
	return Stats{
		State:           d.State(),
		FeatureFrames:   d.nextFeature,
		ProcessedFrames: d.stepper.NumProcessed(),
		OutputFrames:    d.outputFrames,
		Chunks:          d.chunks,
		SilenceFrames:   d.endpoint.SilenceFrames(),
		Buffer:          d.buffer.Stats(),
	}
}
