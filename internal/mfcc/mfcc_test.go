package mfcc

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/chaz8081/gostt-edge/internal/quant"
)

func TestHannWindow(t *testing.T) {
	w := hannWindow(512)
	if len(w) != 512 {
		t.Fatalf("expected 512, got %d", len(w))
	}
	if w[0] != 0 {
		t.Errorf("w[0] = %f, want 0", w[0])
	}
	if math.Abs(w[256]-1.0) > 1e-12 {
		t.Errorf("w[256] = %f, want 1", w[256])
	}
	if math.Abs(w[1]-w[511]) > 1e-12 {
		t.Errorf("periodic window should be symmetric around n/2: w[1]=%f w[511]=%f", w[1], w[511])
	}
}

func TestMelScale(t *testing.T) {
	tests := []struct {
		name string
		hz   float64
		htk  bool
		mel  float64
	}{
		{"slaney_linear", 500, false, 7.5},
		{"slaney_knee", 1000, false, 15},
		{"slaney_log", 6400, false, 42},
		{"htk_1k", 1000, true, 1127 * math.Log(1+1000.0/700)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := melScale(tt.hz, tt.htk)
			if math.Abs(got-tt.mel) > 1e-9 {
				t.Errorf("melScale(%v) = %f, want %f", tt.hz, got, tt.mel)
			}
			if back := inverseMelScale(got, tt.htk); math.Abs(back-tt.hz) > 1e-6 {
				t.Errorf("inverseMelScale(melScale(%v)) = %f", tt.hz, back)
			}
		})
	}
}

func TestMelFilterBank(t *testing.T) {
	p := Wav2LetterParams()
	bank := melFilterBank(p.NumFbankBins, 512, p.SampleRate, p.MelLoFreq, p.MelHiFreq, false)
	if len(bank) != 128 {
		t.Fatalf("expected 128 filters, got %d", len(bank))
	}
	nonEmpty := 0
	for i, f := range bank {
		if f.first+len(f.weights) > 256 {
			t.Fatalf("filter %d spans past the last FFT bin", i)
		}
		for _, w := range f.weights {
			if w < 0 {
				t.Fatalf("filter %d has negative weight %f", i, w)
			}
		}
		if len(f.weights) > 0 {
			nonEmpty++
		}
	}
	// Above the linear region every filter is wider than an FFT bin.
	if nonEmpty < 100 {
		t.Errorf("only %d of 128 filters cover an FFT bin", nonEmpty)
	}
	// Filters are ordered by frequency.
	for i := 1; i < len(bank); i++ {
		if len(bank[i].weights) > 0 && len(bank[i-1].weights) > 0 && bank[i].first < bank[i-1].first {
			t.Errorf("filter %d starts before filter %d", i, i-1)
		}
	}
}

func TestDCTMatrixOrthonormalRows(t *testing.T) {
	const k, n = 13, 128
	m := dctMatrix(k, n)
	for a := 0; a < k; a++ {
		for b := 0; b < k; b++ {
			var dot float64
			for i := 0; i < n; i++ {
				dot += m[a*n+i] * m[b*n+i]
			}
			want := 0.0
			if a == b {
				want = 1
			}
			if math.Abs(dot-want) > 1e-9 {
				t.Errorf("row %d . row %d = %f, want %f", a, b, dot, want)
			}
		}
	}
}

func TestParamsValidate(t *testing.T) {
	if err := Wav2LetterParams().Validate(); err != nil {
		t.Fatalf("Wav2LetterParams invalid: %v", err)
	}
	if got := Wav2LetterParams().RequiredSamples(); got != 47712 {
		t.Errorf("RequiredSamples() = %d, want 47712", got)
	}

	mutations := map[string]func(*Params){
		"zero_rate":        func(p *Params) { p.SampleRate = 0 },
		"too_many_feats":   func(p *Params) { p.NumFeatures = 200 },
		"hi_above_nyquist": func(p *Params) { p.MelHiFreq = 9000 },
		"inverted_range":   func(p *Params) { p.MelLoFreq = 8000; p.MelHiFreq = 100 },
		"zero_stride":      func(p *Params) { p.WindowStride = 0 },
		"short_window":     func(p *Params) { p.WindowLen = 256 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			p := Wav2LetterParams()
			mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
			if _, err := New(p); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func sine(n int, hz, rate float64) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(0.5 * math.Sin(2*math.Pi*hz*float64(i)/rate))
	}
	return s
}

func TestComputeSinePeak(t *testing.T) {
	p := Wav2LetterParams()
	m, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]float32, p.NumFeatures)
	if err := m.Compute(out, sine(p.FrameLen, 1000, float64(p.SampleRate))); err != nil {
		t.Fatalf("Compute: %v", err)
	}

	best := 0
	for i, e := range m.energies {
		if e > m.energies[best] {
			best = i
		}
	}
	loMel := melScale(p.MelLoFreq, p.UseHTK)
	delta := (melScale(p.MelHiFreq, p.UseHTK) - loMel) / float64(p.NumFbankBins+1)
	center := inverseMelScale(loMel+float64(best+1)*delta, p.UseHTK)
	if math.Abs(center-1000) > 100 {
		t.Errorf("loudest mel bin centred at %.0f Hz, want ~1000 Hz", center)
	}

	floor := m.energies[best] - topDB
	for i, e := range m.energies {
		if e < floor-1e-9 {
			t.Fatalf("bin %d = %f dB, below the %f dB floor", i, e, floor)
		}
	}
}

func TestComputeSilence(t *testing.T) {
	p := Wav2LetterParams()
	m, _ := New(p)
	out := make([]float32, p.NumFeatures)
	if err := m.Compute(out, make([]float32, p.FrameLen)); err != nil {
		t.Fatal(err)
	}
	// Every bin sits at 10*log10(1e-10) = -100 dB; only the DC term survives.
	want := float32(-100 * math.Sqrt(float64(p.NumFbankBins)))
	if math.Abs(float64(out[0]-want)) > 1e-2 {
		t.Errorf("out[0] = %f, want %f", out[0], want)
	}
	for k := 1; k < len(out); k++ {
		if math.Abs(float64(out[k])) > 1e-3 {
			t.Errorf("out[%d] = %f, want 0", k, out[k])
		}
	}
}

func TestComputeShortInput(t *testing.T) {
	m, _ := New(Wav2LetterParams())
	if err := m.Compute(make([]float32, 13), make([]float32, 100)); err == nil {
		t.Error("Compute should fail for a short frame")
	}
	if err := m.Compute(make([]float32, 5), make([]float32, 512)); err == nil {
		t.Error("Compute should fail for a short output")
	}
}

func noise(n int, seed uint64) []float32 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(r.Float64()*2 - 1)
	}
	return s
}

func TestPreprocessorExtract(t *testing.T) {
	p := Wav2LetterParams()
	pre, err := NewPreprocessor(p)
	if err != nil {
		t.Fatal(err)
	}
	if pre.Channels() != 3 || pre.OutputLen() != 296*13*3 {
		t.Fatalf("Channels() = %d, OutputLen() = %d", pre.Channels(), pre.OutputLen())
	}

	q := quant.Params{Scale: 0.05, ZeroPoint: 0}
	out := make([]int8, pre.OutputLen())
	if err := pre.Extract(noise(p.RequiredSamples(), 1), out, q); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	// Normalised channels are zero mean, unit variance.
	for name, ch := range map[string][]float32{"static": pre.static, "delta1": pre.delta1, "delta2": pre.delta2} {
		var sum, ss float64
		for _, x := range ch {
			sum += float64(x)
		}
		mean := sum / float64(len(ch))
		for _, x := range ch {
			ss += (float64(x) - mean) * (float64(x) - mean)
		}
		if math.Abs(mean) > 1e-4 || math.Abs(ss/float64(len(ch))-1) > 1e-3 {
			t.Errorf("%s: mean %f, variance %f", name, mean, ss/float64(len(ch)))
		}
	}

	// Row layout is [static | delta | delta2].
	nf := p.NumFeatures
	v := 150
	for i := 0; i < nf; i++ {
		if got, want := out[v*3*nf+i], q.Quantize(pre.static[v*nf+i]); got != want {
			t.Fatalf("static[%d][%d] = %d, want %d", v, i, got, want)
		}
		if got, want := out[v*3*nf+nf+i], q.Quantize(pre.delta1[v*nf+i]); got != want {
			t.Fatalf("delta1[%d][%d] = %d, want %d", v, i, got, want)
		}
		if got, want := out[v*3*nf+2*nf+i], q.Quantize(pre.delta2[v*nf+i]); got != want {
			t.Fatalf("delta2[%d][%d] = %d, want %d", v, i, got, want)
		}
	}
}

func TestPreprocessorDeltaEdgesZero(t *testing.T) {
	p := Wav2LetterParams()
	p.Normalize = false
	pre, _ := NewPreprocessor(p)
	out := make([]int8, pre.OutputLen())
	if err := pre.Extract(noise(p.RequiredSamples(), 2), out, quant.Params{Scale: 1}); err != nil {
		t.Fatal(err)
	}
	nf := p.NumFeatures
	for _, v := range []int{0, 3, p.NumVectors - 4, p.NumVectors - 1} {
		for i := 0; i < nf; i++ {
			if pre.delta1[v*nf+i] != 0 || pre.delta2[v*nf+i] != 0 {
				t.Fatalf("vector %d: deltas should be zero at the edges", v)
			}
		}
	}
}

func TestPreprocessorDeltaOfRamp(t *testing.T) {
	p := Wav2LetterParams()
	pre, _ := NewPreprocessor(p)
	nf := p.NumFeatures
	// A coefficient rising by 1 per vector has delta -1 and no curvature.
	for v := 0; v < p.NumVectors; v++ {
		for f := 0; f < nf; f++ {
			pre.static[v*nf+f] = float32(v)
		}
	}
	pre.computeDeltas()
	for _, v := range []int{4, 100, p.NumVectors - 5} {
		if d := pre.delta1[v*nf]; math.Abs(float64(d)+1) > 1e-3 {
			t.Errorf("delta1[%d] = %f, want -1", v, d)
		}
		if d := pre.delta2[v*nf]; math.Abs(float64(d)) > 1e-3 {
			t.Errorf("delta2[%d] = %f, want 0", v, d)
		}
	}
}

func TestPreprocessorOverlappingWindows(t *testing.T) {
	p := Wav2LetterParams()
	p.Normalize = false
	pre, _ := NewPreprocessor(p)

	const shiftVectors = 100
	shift := shiftVectors * p.WindowStride
	audio := noise(p.RequiredSamples()+shift, 3)
	out := make([]int8, pre.OutputLen())
	q := quant.Params{Scale: 1}

	if err := pre.Extract(audio[:p.RequiredSamples()], out, q); err != nil {
		t.Fatal(err)
	}
	firstStatic := slices.Clone(pre.static)
	firstDelta := slices.Clone(pre.delta1)

	if err := pre.Extract(audio[shift:], out, q); err != nil {
		t.Fatal(err)
	}

	nf := p.NumFeatures
	for v := 0; v+shiftVectors < p.NumVectors; v++ {
		a := firstStatic[(v+shiftVectors)*nf : (v+shiftVectors+1)*nf]
		b := pre.static[v*nf : (v+1)*nf]
		if !slices.Equal(a, b) {
			t.Fatalf("static vector %d of the shifted window differs from vector %d of the first", v, v+shiftVectors)
		}
	}
	// Deltas match wherever both windows have the full kernel.
	for v := 4; v+shiftVectors < p.NumVectors-4; v++ {
		a := firstDelta[(v+shiftVectors)*nf : (v+shiftVectors+1)*nf]
		b := pre.delta1[v*nf : (v+1)*nf]
		if !slices.Equal(a, b) {
			t.Fatalf("delta vector %d differs", v)
		}
	}
}

func TestPreprocessorRejectsBadInput(t *testing.T) {
	p := Wav2LetterParams()
	pre, _ := NewPreprocessor(p)
	out := make([]int8, pre.OutputLen())
	q := quant.Params{Scale: 0.1}

	if err := pre.Extract(make([]float32, p.RequiredSamples()-1), out, q); err == nil {
		t.Error("short window should fail")
	}
	if err := pre.Extract(make([]float32, p.RequiredSamples()), out[:10], q); err == nil {
		t.Error("short output should fail")
	}
	if err := pre.Extract(make([]float32, p.RequiredSamples()), out, quant.Params{}); err == nil {
		t.Error("zero scale should fail")
	}
}

func TestNormalizeConstant(t *testing.T) {
	v := []float32{3, 3, 3}
	normalize(v)
	if !slices.Equal(v, []float32{0, 0, 0}) {
		t.Errorf("normalize(constant) = %v, want zeros", v)
	}
}
