package audio

import "math"

// SilenceFloor is the level reported for digital silence.
const SilenceFloor = -120.0

// Level is a running RMS meter with exponential decay. It backs the input
// meter shown while listening and is not part of endpoint decisions.
type Level struct {
	decay float64
	rms   float64
	peak  float64
}

// NewLevel creates a meter. decay in (0, 1] is the weight of the newest
// block; 1 means no smoothing.
func NewLevel(decay float64) *Level {
	if decay <= 0 || decay > 1 {
		decay = 1
	}
	return &Level{decay: decay}
}

// Process folds a block of samples into the meter and returns the smoothed
// RMS.
func (l *Level) Process(samples []float32) float64 {
	if len(samples) == 0 {
		return l.rms
	}
	r := RMS(samples)
	l.rms = l.decay*r + (1-l.decay)*l.rms
	if r > l.peak {
		l.peak = r
	}
	return l.rms
}

// RMS returns the smoothed level.
func (l *Level) RMS() float64 { return l.rms }

// Peak returns the largest block RMS seen since the last Reset.
func (l *Level) Peak() float64 { return l.peak }

// DBFS returns the smoothed level in decibels relative to full scale.
func (l *Level) DBFS() float64 { return ToDBFS(l.rms) }

// Reset clears the meter.
func (l *Level) Reset() {
	l.rms = 0
	l.peak = 0
}

// RMS computes the root mean square of samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ToDBFS converts a linear amplitude to dBFS, clamped at SilenceFloor.
func ToDBFS(rms float64) float64 {
	if rms <= 0 {
		return SilenceFloor
	}
	db := 20 * math.Log10(rms)
	if db < SilenceFloor {
		return SilenceFloor
	}
	return db
}
