package mfcc

import (
	"fmt"
	"math"

	"github.com/chaz8081/gostt-edge/internal/quant"
)

// Channels is the number of feature channels per vector: static MFCC, delta
// and delta-delta.
const Channels = 3

// Nine-tap regression kernels for the first and second time derivatives.
var (
	delta1Coeffs = [...]float32{
		6.66666667e-02, 5.00000000e-02, 3.33333333e-02, 1.66666667e-02, -3.46944695e-18,
		-1.66666667e-02, -3.33333333e-02, -5.00000000e-02, -6.66666667e-02,
	}
	delta2Coeffs = [...]float32{
		0.06060606, 0.01515152, -0.01731602, -0.03679654, -0.04329004,
		-0.03679654, -0.01731602, 0.01515152, 0.06060606,
	}
)

// Preprocessor turns one inference window of audio into the interleaved
// int8 feature matrix the acoustic model expects. Each of the NumVectors rows
// holds [static | delta | delta-delta], NumFeatures values each.
type Preprocessor struct {
	params Params
	mfcc   *MFCC

	// vector-major [NumVectors x NumFeatures]
	static []float32
	delta1 []float32
	delta2 []float32
}

// NewPreprocessor allocates every buffer the front end needs.
func NewPreprocessor(p Params) (*Preprocessor, error) {
	m, err := New(p)
	if err != nil {
		return nil, err
	}
	n := p.NumVectors * p.NumFeatures
	return &Preprocessor{
		params: p,
		mfcc:   m,
		static: make([]float32, n),
		delta1: make([]float32, n),
		delta2: make([]float32, n),
	}, nil
}

// Params returns the extraction parameters.
func (p *Preprocessor) Params() Params { return p.params }

// Channels returns the number of feature channels per vector.
func (p *Preprocessor) Channels() int { return Channels }

// OutputLen returns the feature matrix length.
func (p *Preprocessor) OutputLen() int {
	return p.params.NumVectors * p.params.NumFeatures * Channels
}

// Extract computes the quantized feature matrix for audio into out.
func (p *Preprocessor) Extract(audio []float32, out []int8, q quant.Params) error {
	if want := p.params.RequiredSamples(); len(audio) != want {
		return fmt.Errorf("mfcc: window has %d samples, want %d", len(audio), want)
	}
	if len(out) != p.OutputLen() {
		return fmt.Errorf("mfcc: output has %d values, want %d", len(out), p.OutputLen())
	}
	if err := q.Validate(); err != nil {
		return fmt.Errorf("mfcc: %w", err)
	}

	nf := p.params.NumFeatures
	for v := 0; v < p.params.NumVectors; v++ {
		start := v * p.params.WindowStride
		if err := p.mfcc.Compute(p.static[v*nf:(v+1)*nf], audio[start:start+p.params.WindowLen]); err != nil {
			return err
		}
	}

	p.computeDeltas()

	if p.params.Normalize {
		normalize(p.static)
		normalize(p.delta1)
		normalize(p.delta2)
	}

	stride := nf * Channels
	for v := 0; v < p.params.NumVectors; v++ {
		row := out[v*stride : (v+1)*stride]
		src := v * nf
		for i := 0; i < nf; i++ {
			row[i] = q.Quantize(p.static[src+i])
			row[nf+i] = q.Quantize(p.delta1[src+i])
			row[2*nf+i] = q.Quantize(p.delta2[src+i])
		}
	}
	return nil
}

// computeDeltas convolves each coefficient track with the delta kernels.
// Vectors without a full kernel of neighbours on both sides are zero.
func (p *Preprocessor) computeDeltas() {
	clear(p.delta1)
	clear(p.delta2)

	nf := p.params.NumFeatures
	half := len(delta1Coeffs) / 2
	for v := half; v < p.params.NumVectors-half; v++ {
		for f := 0; f < nf; f++ {
			var d1, d2 float32
			for j := range delta1Coeffs {
				x := p.static[(v-half+j)*nf+f]
				d1 += x * delta1Coeffs[j]
				d2 += x * delta2Coeffs[j]
			}
			p.delta1[v*nf+f] = d1
			p.delta2[v*nf+f] = d2
		}
	}
}

// normalize rescales vec to zero mean and unit variance. A constant vector
// becomes all zeros.
func normalize(vec []float32) {
	if len(vec) == 0 {
		return
	}
	var sum float64
	for _, x := range vec {
		sum += float64(x)
	}
	mean := sum / float64(len(vec))

	var ss float64
	for _, x := range vec {
		d := float64(x) - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(vec)))
	if std == 0 {
		clear(vec)
		return
	}
	for i, x := range vec {
		vec[i] = float32((float64(x) - mean) / std)
	}
}
