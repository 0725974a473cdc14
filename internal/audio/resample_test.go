package audio

import (
	"math"
	"testing"
)

func TestResamplerPassthrough(t *testing.T) {
	r, err := NewResampler(16000, 16000)
	if err != nil {
		t.Fatalf("NewResampler() returned error: %v", err)
	}
	in := []float32{0.1, 0.2, 0.3}
	out := r.Resample(in, nil)
	if len(out) != 3 || out[2] != 0.3 {
		t.Fatalf("expected passthrough, got %v", out)
	}
}

func TestResamplerInvalidRates(t *testing.T) {
	if _, err := NewResampler(0, 16000); err == nil {
		t.Fatal("expected error for zero input rate")
	}
	if _, err := NewResampler(16000, math.NaN()); err == nil {
		t.Fatal("expected error for NaN output rate")
	}
}

func TestResamplerUpsampleRamp(t *testing.T) {
	r, _ := NewResampler(8000, 16000)
	in := make([]float32, 100)
	for i := range in {
		in[i] = float32(i)
	}
	out := r.Resample(in, nil)
	if len(out) < 195 || len(out) > 200 {
		t.Fatalf("expected about 200 samples, got %d", len(out))
	}
	for i, v := range out {
		if want := float32(i) / 2; math.Abs(float64(v-want)) > 1e-4 {
			t.Fatalf("sample %d: expected %f, got %f", i, want, v)
		}
	}
}

// Splitting the input into chunks must produce exactly the same stream as
// resampling it in one call.
func TestResamplerChunkBoundaries(t *testing.T) {
	in := make([]float32, 4410)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) * 0.05))
	}

	whole, _ := NewResampler(44100, 16000)
	want := whole.Resample(in, nil)

	chunked, _ := NewResampler(44100, 16000)
	var got []float32
	var buf []float32
	for start := 0; start < len(in); start += 441 {
		end := start + 441
		if end > len(in) {
			end = len(in)
		}
		buf = chunked.Resample(in[start:end], buf)
		got = append(got, buf...)
	}

	if len(got) != len(want) {
		t.Fatalf("chunked length %d != whole length %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-5 {
			t.Fatalf("sample %d differs: %f vs %f", i, got[i], want[i])
		}
	}
}
