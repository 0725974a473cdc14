package decoder

import (
	"fmt"
	"math"
)

// EndpointRule fires when the trailing silence and the utterance length both
// reach their thresholds. A zero threshold imposes no condition.
type EndpointRule struct {
	MinTrailingSilence float64 `yaml:"min_trailing_silence"` // seconds
	MinUtteranceLength float64 `yaml:"min_utterance_length"` // seconds
	RequireText        bool    `yaml:"require_text"`
	Disabled           bool    `yaml:"disabled"`
}

// EndpointConfig holds the three rules. Any firing rule ends the utterance.
type EndpointConfig struct {
	Rule1 EndpointRule `yaml:"rule1"`
	Rule2 EndpointRule `yaml:"rule2"`
	Rule3 EndpointRule `yaml:"rule3"`
}

// DefaultEndpointConfig returns the thresholds used for live microphone input
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		Rule1: EndpointRule{MinTrailingSilence: 2.4, RequireText: true},
		Rule2: EndpointRule{MinTrailingSilence: 1.2, RequireText: true},
		Rule3: EndpointRule{MinUtteranceLength: 300},
	}
}

// Validate checks every enabled rule
func (c EndpointConfig) Validate() error {
	for i, r := range c.rules() {
		if err := r.validate(); err != nil {
			return fmt.Errorf("%w: endpoint rule%d: %v", ErrInvalidConfiguration, i+1, err)
		}
	}
	return nil
}

func (c EndpointConfig) rules() [3]EndpointRule {
	return [3]EndpointRule{c.Rule1, c.Rule2, c.Rule3}
}

func (r EndpointRule) validate() error {
	if r.Disabled {
		return nil
	}
	for _, v := range []float64{r.MinTrailingSilence, r.MinUtteranceLength} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("threshold %v must be a finite non-negative number of seconds", v)
		}
	}
	if r.MinTrailingSilence == 0 && r.MinUtteranceLength == 0 {
		return fmt.Errorf("enabled rule has no silence or length threshold")
	}
	return nil
}

type frameRule struct {
	silence     int
	utterance   int
	requireText bool
	enabled     bool
}

// toFrames converts seconds into the number of frames needed to reach them
func toFrames(seconds, frameDuration float64) int {
	return int(math.Ceil(seconds/frameDuration - 1e-9))
}

// EndpointDetector tracks silence and utterance length in encoder output
// frames and evaluates the rules against them.
type EndpointDetector struct {
	rules     [3]frameRule
	silence   int
	utterance int
}

// NewEndpointDetector compiles cfg for the given encoder output frame duration
func NewEndpointDetector(cfg EndpointConfig, frameDuration float64) (*EndpointDetector, error) {
	if math.IsNaN(frameDuration) || frameDuration <= 0 {
		return nil, fmt.Errorf("%w: frame duration %v must be positive", ErrInvalidConfiguration, frameDuration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &EndpointDetector{}
	for i, r := range cfg.rules() {
		d.rules[i] = frameRule{
			silence:     toFrames(r.MinTrailingSilence, frameDuration),
			utterance:   toFrames(r.MinUtteranceLength, frameDuration),
			requireText: r.RequireText,
			enabled:     !r.Disabled,
		}
	}
	return d, nil
}

// Advance records one encoder output frame. trailingSilence is the best
// hypothesis' count of frames since its last non-blank token.
func (d *EndpointDetector) Advance(trailingSilence int) {
	d.utterance++
	d.silence = trailingSilence
}

// SilenceFrames returns the trailing silence seen at the last Advance
func (d *EndpointDetector) SilenceFrames() int { return d.silence }

// UtteranceFrames returns the frames observed since Reset
func (d *EndpointDetector) UtteranceFrames() int { return d.utterance }

// IsEndpoint reports whether any rule fires. hasText says whether the
// current result is non-empty.
func (d *EndpointDetector) IsEndpoint(hasText bool) bool {
	return d.firing(hasText) > 0
}

// firing returns the number (1-3) of the first rule that fires, or 0
func (d *EndpointDetector) firing(hasText bool) int {
	for i, r := range d.rules {
		if !r.enabled || (r.requireText && !hasText) {
			continue
		}
		if d.silence >= r.silence && d.utterance >= r.utterance {
			return i + 1
		}
	}
	return 0
}

// Reset zeroes both counters
func (d *EndpointDetector) Reset() {
	d.silence = 0
	d.utterance = 0
}
