package mfcc

import "math"

// Slaney mel scale constants: linear below 1 kHz, logarithmic above.
const (
	slaneyMinLogHz  = 1000.0
	slaneyFreqStep  = 200.0 / 3
	slaneyMinLogMel = slaneyMinLogHz / slaneyFreqStep
)

var slaneyLogStep = math.Log(6.4) / 27.0

// melScale converts Hz to mel, using the HTK formula when htk is set and the
// Slaney formula otherwise.
func melScale(hz float64, htk bool) float64 {
	if htk {
		return 1127.0 * math.Log(1.0+hz/700.0)
	}
	if hz < slaneyMinLogHz {
		return hz / slaneyFreqStep
	}
	return slaneyMinLogMel + math.Log(hz/slaneyMinLogHz)/slaneyLogStep
}

// inverseMelScale converts mel back to Hz.
func inverseMelScale(mel float64, htk bool) float64 {
	if htk {
		return 700.0 * (math.Exp(mel/1127.0) - 1.0)
	}
	if mel < slaneyMinLogMel {
		return mel * slaneyFreqStep
	}
	return slaneyMinLogHz * math.Exp(slaneyLogStep*(mel-slaneyMinLogMel))
}

// hannWindow generates a periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// melFilter is one triangular filter, stored sparsely from its first
// non-zero FFT bin.
type melFilter struct {
	first   int
	weights []float64
}

// melFilterBank creates numBins triangular filters over the first fftLen/2
// FFT bins. Without htk, each filter is scaled by 2/(right-left) in Hz so
// filters have equal area.
func melFilterBank(numBins, fftLen, sampleRate int, loHz, hiHz float64, htk bool) []melFilter {
	numFFTBins := fftLen / 2
	binWidth := float64(sampleRate) / float64(fftLen)

	loMel := melScale(loHz, htk)
	hiMel := melScale(hiHz, htk)
	delta := (hiMel - loMel) / float64(numBins+1)

	bank := make([]melFilter, numBins)
	for b := range bank {
		left := loMel + float64(b)*delta
		center := loMel + float64(b+1)*delta
		right := loMel + float64(b+2)*delta

		norm := 1.0
		if !htk {
			norm = 2.0 / (inverseMelScale(right, htk) - inverseMelScale(left, htk))
		}

		first, last := -1, -1
		weights := make([]float64, numFFTBins)
		for i := 0; i < numFFTBins; i++ {
			mel := melScale(binWidth*float64(i), htk)
			if mel <= left || mel >= right {
				continue
			}
			var w float64
			if mel <= center {
				w = (mel - left) / (center - left)
			} else {
				w = (right - mel) / (right - center)
			}
			weights[i] = w * norm
			if first < 0 {
				first = i
			}
			last = i
		}
		if first < 0 {
			bank[b] = melFilter{}
			continue
		}
		bank[b] = melFilter{first: first, weights: weights[first : last+1 : last+1]}
	}
	return bank
}

// dctMatrix returns the orthonormal DCT-II basis as a numCoeffs x n row-major
// matrix.
func dctMatrix(numCoeffs, n int) []float64 {
	m := make([]float64, numCoeffs*n)
	scale0 := math.Sqrt(1.0 / float64(n))
	scaleK := math.Sqrt(2.0 / float64(n))
	for k := 0; k < numCoeffs; k++ {
		s := scaleK
		if k == 0 {
			s = scale0
		}
		for i := 0; i < n; i++ {
			m[k*n+i] = s * math.Cos(math.Pi/float64(n)*(float64(i)+0.5)*float64(k))
		}
	}
	return m
}
