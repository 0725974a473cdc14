package feature

import "math"

// sparseFilter stores only the non-zero range of a triangular filter.
type sparseFilter struct {
	start  int
	coeffs []float64
}

// melBanks is a triangular filterbank laid out on the mel scale.
type melBanks struct {
	filters []sparseFilter
}

func melScale(hz float64) float64 {
	return 1127.0 * math.Log(1.0+hz/700.0)
}

// newMelBanks builds numBins triangles between lowFreq and highFreq over the
// paddedLen/2+1 FFT bins. Triangles are linear in mel, not in Hz.
func newMelBanks(numBins, paddedLen int, sampleRate, lowFreq, highFreq float64) *melBanks {
	numFFTBins := paddedLen / 2
	binWidth := sampleRate / float64(paddedLen)

	melLow := melScale(lowFreq)
	melHigh := melScale(highFreq)
	delta := (melHigh - melLow) / float64(numBins+1)

	banks := &melBanks{filters: make([]sparseFilter, numBins)}
	for b := 0; b < numBins; b++ {
		left := melLow + float64(b)*delta
		center := left + delta
		right := center + delta

		first, last := -1, -1
		weights := make([]float64, numFFTBins)
		for i := 0; i < numFFTBins; i++ {
			mel := melScale(binWidth * float64(i))
			if mel <= left || mel >= right {
				continue
			}
			if mel <= center {
				weights[i] = (mel - left) / (center - left)
			} else {
				weights[i] = (right - mel) / (right - center)
			}
			if first < 0 {
				first = i
			}
			last = i
		}
		if first >= 0 {
			banks.filters[b] = sparseFilter{
				start:  first,
				coeffs: append([]float64(nil), weights[first:last+1]...),
			}
		}
	}
	return banks
}

// apply writes log mel energies of powerSpec into dst.
func (m *melBanks) apply(powerSpec []float64, dst []float32) {
	for i, f := range m.filters {
		sum := 0.0
		for j, c := range f.coeffs {
			sum += c * powerSpec[f.start+j]
		}
		if sum < epsilon {
			sum = epsilon
		}
		dst[i] = float32(math.Log(sum))
	}
}
