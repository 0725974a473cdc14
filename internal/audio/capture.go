package audio

import (
	"context"
)

// CaptureConfig holds configuration for audio capture
type CaptureConfig struct {
	// SampleRate is the rate requested from the device (Hz). The decoder
	// resamples whatever it gets, so 16000 only avoids that work.
	SampleRate uint32

	// Channels is the number of channels requested. Anything above one is
	// downmixed before the sink sees it.
	Channels uint32

	// BufferFrames is the device period in frames
	// Smaller = lower latency, more callbacks
	BufferFrames uint32

	// DeviceID is the identifier from ListDevices
	// Empty string = use default device
	DeviceID string
}

// DefaultCaptureConfig returns 16 kHz mono with a 20 ms period
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:   16000,
		Channels:     1,
		BufferFrames: 320,
		DeviceID:     "",
	}
}

// Sink receives mono float32 samples from the capture callback. The slice
// is reused after the call returns and the sink must not block.
type Sink func(samples []float32)

// Capturer is the interface for audio capture implementations
type Capturer interface {
	// Start begins delivering audio to sink until Stop or ctx is done
	Start(ctx context.Context, sink Sink) error

	// Stop stops audio capture
	Stop() error

	// SampleRate is the rate the device actually runs at
	SampleRate() float64

	// IsRunning returns true if capture is currently active
	IsRunning() bool
}

// NewCapturer creates a new audio capturer with the given configuration
func NewCapturer(config CaptureConfig) (Capturer, error) {
	return NewMalgoCapturer(config)
}
