package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodePCM16LE converts little-endian signed 16-bit PCM to float32 samples
// in [-1, 1). The result is appended to dst.
func DecodePCM16LE(dst []float32, data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return dst, fmt.Errorf("pcm16: odd byte count %d", len(data))
	}
	for i := 0; i+1 < len(data); i += 2 {
		s := int16(binary.LittleEndian.Uint16(data[i:]))
		dst = append(dst, float32(s)/32768)
	}
	return dst, nil
}

// DecodeFloat32LE converts little-endian IEEE float32 samples.
func DecodeFloat32LE(dst []float32, data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return dst, fmt.Errorf("float32: byte count %d is not a multiple of 4", len(data))
	}
	for i := 0; i+3 < len(data); i += 4 {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(data[i:])))
	}
	return dst, nil
}

// EncodePCM16LE converts float32 samples to little-endian PCM16, clipping
// values outside [-1, 1].
func EncodePCM16LE(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		v := float64(s) * 32768
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(v)))
	}
	return dst
}

// Downmix averages interleaved channels into mono in place and returns the
// shortened slice. A trailing partial frame is dropped.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	for f := 0; f < frames; f++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[f*channels+c]
		}
		samples[f] = sum / float32(channels)
	}
	return samples[:frames]
}
