// Package feature turns waveform samples into acoustic feature frames.
package feature

import (
	"errors"
)

// ErrSampleRateMismatch is returned when samples arrive at a rate the
// extractor was not configured for. Callers resample first.
var ErrSampleRateMismatch = errors.New("sample rate mismatch")

// Extractor is a streaming feature front end. Frames are indexed from the
// last Reset and never change once ready.
type Extractor interface {
	AcceptWaveform(sampleRate float64, samples []float32) error
	InputFinished()
	NumFramesReady() int
	Frame(i int) []float32
	Dim() int
	Reset()
}

// Options configures the fbank front end
type Options struct {
	SampleRate     float64 `yaml:"sample_rate"`
	NumBins        int     `yaml:"num_bins"`
	FrameLengthMs  float64 `yaml:"frame_length_ms"`
	FrameShiftMs   float64 `yaml:"frame_shift_ms"`
	PreemphCoeff   float64 `yaml:"preemph_coeff"`
	LowFreq        float64 `yaml:"low_freq"`
	HighFreq       float64 `yaml:"high_freq"` // <= 0 is an offset from Nyquist
	Dither         float64 `yaml:"dither"`
	RemoveDCOffset bool    `yaml:"remove_dc_offset"`
	InputScale     float64 `yaml:"input_scale"`
}

// DefaultOptions returns the 16 kHz, 80-bin configuration transducer models
// are usually trained with.
func DefaultOptions() Options {
	return Options{
		SampleRate:     16000,
		NumBins:        80,
		FrameLengthMs:  25,
		FrameShiftMs:   10,
		PreemphCoeff:   0.97,
		LowFreq:        20,
		HighFreq:       -400,
		Dither:         0,
		RemoveDCOffset: true,
		InputScale:     32768,
	}
}

// FrameShiftSeconds returns the time between consecutive frames
func (o Options) FrameShiftSeconds() float64 {
	return o.FrameShiftMs / 1000
}

func (o Options) windowSize() int {
	return int(o.SampleRate * o.FrameLengthMs / 1000)
}

func (o Options) windowShift() int {
	return int(o.SampleRate * o.FrameShiftMs / 1000)
}

// Validate reports whether the options describe a usable front end
func (o Options) Validate() error {
	switch {
	case o.SampleRate <= 0:
		return errors.New("sample rate must be positive")
	case o.NumBins <= 0:
		return errors.New("num_bins must be positive")
	case o.windowSize() <= 0 || o.windowShift() <= 0:
		return errors.New("frame length and shift must cover at least one sample")
	case o.Dither < 0:
		return errors.New("dither must not be negative")
	}
	high := o.highFreq()
	if o.LowFreq < 0 || high <= o.LowFreq || high > o.SampleRate/2 {
		return errors.New("mel frequency range is empty or exceeds Nyquist")
	}
	return nil
}

func (o Options) highFreq() float64 {
	if o.HighFreq <= 0 {
		return o.SampleRate/2 + o.HighFreq
	}
	return o.HighFreq
}
