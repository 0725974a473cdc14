package feature

import (
	"math"
)

// fftWorkspace holds reusable buffers for a fixed-size radix-2 FFT.
// Split real/imaginary layout; no allocation per frame.
type fftWorkspace struct {
	re, im []float64
	perm   []int
	twRe   [][]float64 // twiddle factors per stage
	twIm   [][]float64
	power  []float64 // [size/2+1]
}

func newFFTWorkspace(size int) *fftWorkspace {
	bits := 0
	for v := size; v > 1; v >>= 1 {
		bits++
	}

	perm := make([]int, size)
	for i := range perm {
		perm[i] = bitReverse(i, bits)
	}

	var twRe, twIm [][]float64
	for n := 2; n <= size; n *= 2 {
		half := n / 2
		re := make([]float64, half)
		im := make([]float64, half)
		for k := 0; k < half; k++ {
			angle := -2 * math.Pi * float64(k) / float64(n)
			re[k] = math.Cos(angle)
			im[k] = math.Sin(angle)
		}
		twRe = append(twRe, re)
		twIm = append(twIm, im)
	}

	return &fftWorkspace{
		re:    make([]float64, size),
		im:    make([]float64, size),
		perm:  perm,
		twRe:  twRe,
		twIm:  twIm,
		power: make([]float64, size/2+1),
	}
}

// powerSpectrum zero-pads frame to the workspace size, transforms it in place
// and writes |X|^2 for the non-negative frequencies into ws.power.
func (ws *fftWorkspace) powerSpectrum(frame []float64) []float64 {
	n := len(ws.re)
	copy(ws.re, frame)
	for i := len(frame); i < n; i++ {
		ws.re[i] = 0
	}
	clear(ws.im)

	for i, j := range ws.perm {
		if i < j {
			ws.re[i], ws.re[j] = ws.re[j], ws.re[i]
		}
	}

	for stage, size := 0, 2; size <= n; stage, size = stage+1, size*2 {
		half := size / 2
		wr, wi := ws.twRe[stage], ws.twIm[stage]
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				a := start + k
				b := a + half
				tr := wr[k]*ws.re[b] - wi[k]*ws.im[b]
				ti := wr[k]*ws.im[b] + wi[k]*ws.re[b]
				ws.re[b] = ws.re[a] - tr
				ws.im[b] = ws.im[a] - ti
				ws.re[a] += tr
				ws.im[a] += ti
			}
		}
	}

	for i := range ws.power {
		ws.power[i] = ws.re[i]*ws.re[i] + ws.im[i]*ws.im[i]
	}
	return ws.power
}

func bitReverse(x, bits int) int {
	var result int
	for i := 0; i < bits; i++ {
		result = (result << 1) | (x & 1)
		x >>= 1
	}
	return result
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
