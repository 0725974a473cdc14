package decoder

import (
	"fmt"
	"math"
)

// Method selects the search algorithm
type Method string

const (
	GreedySearch       Method = "greedy_search"
	ModifiedBeamSearch Method = "modified_beam_search"
)

// Config controls a Decoder
type Config struct {
	Method   Method `yaml:"method"`
	BeamSize int    `yaml:"beam_size"`

	// EnableEndpoint turns endpoint detection on; when false IsEndpoint is
	// always false.
	EnableEndpoint bool           `yaml:"enable_endpoint"`
	Endpoint       EndpointConfig `yaml:"endpoint"`

	// SampleRate is the rate the feature extractor expects. Audio at other
	// rates is resampled on the way in.
	SampleRate float64 `yaml:"sample_rate"`

	// FrameShift is the feature frame shift in seconds
	FrameShift float64 `yaml:"frame_shift"`

	// FrameDuration is the encoder output frame duration in seconds. Zero
	// derives it from FrameShift and the model's subsampling factor.
	FrameDuration float64 `yaml:"frame_duration"`

	// BufferCeiling is the sample capacity of the hand-off buffer
	BufferCeiling int `yaml:"buffer_ceiling"`
}

// DefaultConfig returns the configuration for live 16 kHz input
func DefaultConfig() Config {
	return Config{
		Method:         ModifiedBeamSearch,
		BeamSize:       4,
		EnableEndpoint: true,
		Endpoint:       DefaultEndpointConfig(),
		SampleRate:     16000,
		FrameShift:     0.01,
	}
}

// Validate checks the settings that do not depend on the model
func (c Config) Validate() error {
	switch c.Method {
	case GreedySearch:
	case ModifiedBeamSearch:
		if c.BeamSize <= 0 {
			return fmt.Errorf("%w: beam size %d must be positive", ErrInvalidConfiguration, c.BeamSize)
		}
	default:
		return fmt.Errorf("%w: unknown decoding method %q", ErrInvalidConfiguration, c.Method)
	}
	if !(c.SampleRate > 0) {
		return fmt.Errorf("%w: sample rate %v must be positive", ErrInvalidConfiguration, c.SampleRate)
	}
	if math.IsNaN(c.FrameDuration) || c.FrameDuration < 0 {
		return fmt.Errorf("%w: frame duration %v must not be negative", ErrInvalidConfiguration, c.FrameDuration)
	}
	if c.FrameDuration == 0 && !(c.FrameShift > 0) {
		return fmt.Errorf("%w: frame shift %v must be positive", ErrInvalidConfiguration, c.FrameShift)
	}
	if c.BufferCeiling < 0 {
		return fmt.Errorf("%w: buffer ceiling %d must not be negative", ErrInvalidConfiguration, c.BufferCeiling)
	}
	if c.EnableEndpoint {
		if err := c.Endpoint.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// OutputFrameDuration returns the seconds covered by one encoder output frame
func (c Config) OutputFrameDuration(subsampling int) float64 {
	if c.FrameDuration > 0 {
		return c.FrameDuration
	}
	return c.FrameShift * float64(max(subsampling, 1))
}

func (c Config) beamSize() int {
	if c.Method == GreedySearch {
		return 1
	}
	return c.BeamSize
}
