package feature

import (
	"fmt"
	"math"
	"math/rand/v2"
)

const epsilon = 1.1920928955078125e-07 // float32 machine epsilon

var _ Extractor = (*Fbank)(nil)

// Fbank is a streaming log mel filterbank extractor. Frames are computed as
// soon as a full window of samples is available; windows never extend past
// the start of the signal.
type Fbank struct {
	opts Options

	windowSize  int
	windowShift int
	window      []float64
	banks       *melBanks
	fft         *fftWorkspace
	rng         *rand.Rand

	pending  []float64 // samples from the start of the next frame onwards
	frames   [][]float32
	finished bool

	scratch []float64
}

// NewFbank creates an extractor with the given options
func NewFbank(opts Options) (*Fbank, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feature options: %w", err)
	}

	size := opts.windowSize()
	padded := nextPowerOfTwo(size)

	f := &Fbank{
		opts:        opts,
		windowSize:  size,
		windowShift: opts.windowShift(),
		window:      poveyWindow(size),
		banks:       newMelBanks(opts.NumBins, padded, opts.SampleRate, opts.LowFreq, opts.highFreq()),
		fft:         newFFTWorkspace(padded),
		rng:         rand.New(rand.NewPCG(0x5eed, 0xfeed)),
		scratch:     make([]float64, size),
	}
	return f, nil
}

// Options returns the configuration the extractor was built with
func (f *Fbank) Options() Options { return f.opts }

// Dim returns the number of mel bins per frame
func (f *Fbank) Dim() int { return f.opts.NumBins }

// NumFramesReady returns how many frames can be read with Frame
func (f *Fbank) NumFramesReady() int { return len(f.frames) }

// Frame returns frame i. The slice must not be modified.
func (f *Fbank) Frame(i int) []float32 { return f.frames[i] }

// AcceptWaveform appends samples in [-1, 1] and computes every frame that
// became complete.
func (f *Fbank) AcceptWaveform(sampleRate float64, samples []float32) error {
	if sampleRate != f.opts.SampleRate {
		return fmt.Errorf("%w: got %v Hz, extractor expects %v Hz", ErrSampleRateMismatch, sampleRate, f.opts.SampleRate)
	}
	if f.finished {
		return nil
	}
	for _, s := range samples {
		f.pending = append(f.pending, float64(s)*f.opts.InputScale)
	}
	f.computeReady()
	return nil
}

// InputFinished flushes a final zero-padded frame when trailing samples are
// not covered by any complete window.
func (f *Fbank) InputFinished() {
	if f.finished {
		return
	}
	f.finished = true
	f.computeReady()

	covered := 0
	if len(f.frames) > 0 {
		covered = f.windowSize - f.windowShift
	}
	if len(f.pending) > covered {
		padded := make([]float64, f.windowSize)
		copy(padded, f.pending)
		f.frames = append(f.frames, f.computeFrame(padded))
	}
	f.pending = f.pending[:0]
}

// Reset discards all samples and frames
func (f *Fbank) Reset() {
	f.pending = f.pending[:0]
	f.frames = nil
	f.finished = false
}

func (f *Fbank) computeReady() {
	consumed := 0
	for len(f.pending)-consumed >= f.windowSize {
		f.frames = append(f.frames, f.computeFrame(f.pending[consumed:consumed+f.windowSize]))
		consumed += f.windowShift
	}
	if consumed > 0 {
		n := copy(f.pending, f.pending[consumed:])
		f.pending = f.pending[:n]
	}
}

func (f *Fbank) computeFrame(samples []float64) []float32 {
	frame := f.scratch
	copy(frame, samples)

	if f.opts.Dither > 0 {
		for i := range frame {
			frame[i] += f.opts.Dither * f.rng.NormFloat64()
		}
	}

	if f.opts.RemoveDCOffset {
		mean := 0.0
		for _, v := range frame {
			mean += v
		}
		mean /= float64(len(frame))
		for i := range frame {
			frame[i] -= mean
		}
	}

	if c := f.opts.PreemphCoeff; c != 0 {
		for i := len(frame) - 1; i > 0; i-- {
			frame[i] -= c * frame[i-1]
		}
		frame[0] -= c * frame[0]
	}

	for i := range frame {
		frame[i] *= f.window[i]
	}

	out := make([]float32, f.opts.NumBins)
	f.banks.apply(f.fft.powerSpectrum(frame), out)
	return out
}

// poveyWindow is a Hann window raised to the power 0.85
func poveyWindow(n int) []float64 {
	w := make([]float64, n)
	a := 2 * math.Pi / float64(n-1)
	for i := range w {
		w[i] = math.Pow(0.5-0.5*math.Cos(a*float64(i)), 0.85)
	}
	return w
}
