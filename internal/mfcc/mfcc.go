// Package mfcc computes the Wav2Letter acoustic front end: MFCC vectors with
// first and second order deltas, normalised and quantized to int8.
//
// Default parameters match the Wav2Letter int8 model:
//
//	SampleRate:    16000
//	FrameLen:        512 (32 ms)
//	NumFbankBins:    128
//	MelLoFreq:         0
//	MelHiFreq:      8000
//	NumFeatures:      13
//	NumVectors:      296
//	WindowLen:       512
//	WindowStride:    160
package mfcc

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Log mel energies are clamped to minEnergy and floored at topDB below the
// frame maximum.
const (
	minEnergy = 1e-10
	topDB     = 80.0
)

var ErrInvalidParams = errors.New("invalid mfcc parameters")

// Params controls MFCC extraction.
type Params struct {
	SampleRate   int     // audio sample rate in Hz
	NumFbankBins int     // mel filterbank size
	MelLoFreq    float64 // lowest filterbank frequency in Hz
	MelHiFreq    float64 // highest filterbank frequency in Hz
	NumFeatures  int     // MFCC coefficients per vector
	FrameLen     int     // samples per MFCC frame
	UseHTK       bool    // HTK mel scale instead of Slaney
	NumVectors   int     // MFCC vectors per inference window
	WindowLen    int     // samples per vector window
	WindowStride int     // samples between vector windows
	Normalize    bool    // per-channel mean/variance normalisation
}

// Wav2LetterParams returns the front end settings of the Wav2Letter model.
func Wav2LetterParams() Params {
	return Params{
		SampleRate:   16000,
		NumFbankBins: 128,
		MelLoFreq:    0,
		MelHiFreq:    8000,
		NumFeatures:  13,
		FrameLen:     512,
		UseHTK:       false,
		NumVectors:   296,
		WindowLen:    512,
		WindowStride: 160,
		Normalize:    true,
	}
}

// Validate checks the parameters describe a computable front end.
func (p Params) Validate() error {
	switch {
	case p.SampleRate <= 0:
		return fmt.Errorf("mfcc: sample rate %d: %w", p.SampleRate, ErrInvalidParams)
	case p.FrameLen <= 1:
		return fmt.Errorf("mfcc: frame length %d: %w", p.FrameLen, ErrInvalidParams)
	case p.NumFbankBins <= 0:
		return fmt.Errorf("mfcc: %d filterbank bins: %w", p.NumFbankBins, ErrInvalidParams)
	case p.NumFeatures <= 0 || p.NumFeatures > p.NumFbankBins:
		return fmt.Errorf("mfcc: %d features for %d bins: %w", p.NumFeatures, p.NumFbankBins, ErrInvalidParams)
	case p.MelLoFreq < 0 || p.MelHiFreq <= p.MelLoFreq || p.MelHiFreq > float64(p.SampleRate)/2:
		return fmt.Errorf("mfcc: mel range %.0f-%.0f Hz: %w", p.MelLoFreq, p.MelHiFreq, ErrInvalidParams)
	case p.NumVectors <= 0 || p.WindowStride <= 0 || p.WindowLen < p.FrameLen:
		return fmt.Errorf("mfcc: %d vectors, window %d, stride %d: %w", p.NumVectors, p.WindowLen, p.WindowStride, ErrInvalidParams)
	}
	return nil
}

// RequiredSamples returns the audio length of one inference window.
func (p Params) RequiredSamples() int {
	return p.WindowLen + (p.NumVectors-1)*p.WindowStride
}

// MFCC computes single MFCC vectors. All buffers are allocated by New; an
// MFCC is not safe for concurrent use.
type MFCC struct {
	params Params
	fftLen int

	window  []float64
	filters []melFilter
	dct     []float64
	fft     *fourier.FFT

	frame    []float64
	spectrum []complex128
	power    []float64
	energies []float64
}

// New builds the window, filterbank and DCT tables for p.
func New(p Params) (*MFCC, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	fftLen := 1 << bits.Len(uint(p.FrameLen-1))
	return &MFCC{
		params:   p,
		fftLen:   fftLen,
		window:   hannWindow(p.FrameLen),
		filters:  melFilterBank(p.NumFbankBins, fftLen, p.SampleRate, p.MelLoFreq, p.MelHiFreq, p.UseHTK),
		dct:      dctMatrix(p.NumFeatures, p.NumFbankBins),
		fft:      fourier.NewFFT(fftLen),
		frame:    make([]float64, fftLen),
		spectrum: make([]complex128, fftLen/2+1),
		power:    make([]float64, fftLen/2+1),
		energies: make([]float64, p.NumFbankBins),
	}, nil
}

// Params returns the extraction parameters.
func (m *MFCC) Params() Params { return m.params }

// Compute writes NumFeatures coefficients for the first FrameLen samples of
// audio into out.
func (m *MFCC) Compute(out []float32, audio []float32) error {
	if len(audio) < m.params.FrameLen {
		return fmt.Errorf("mfcc: frame has %d samples, want %d", len(audio), m.params.FrameLen)
	}
	if len(out) < m.params.NumFeatures {
		return fmt.Errorf("mfcc: output has room for %d coefficients, want %d", len(out), m.params.NumFeatures)
	}

	for i, w := range m.window {
		m.frame[i] = float64(audio[i]) * w
	}
	clear(m.frame[m.params.FrameLen:])

	m.fft.Coefficients(m.spectrum, m.frame)
	for i, c := range m.spectrum {
		m.power[i] = real(c)*real(c) + imag(c)*imag(c)
	}

	m.melEnergies()
	m.logScale()

	n := m.params.NumFbankBins
	for k := 0; k < m.params.NumFeatures; k++ {
		row := m.dct[k*n : (k+1)*n]
		var sum float64
		for i, e := range m.energies {
			sum += row[i] * e
		}
		out[k] = float32(sum)
	}
	return nil
}

func (m *MFCC) melEnergies() {
	for b, f := range m.filters {
		var sum float64
		for i, w := range f.weights {
			sum += w * m.power[f.first+i]
		}
		m.energies[b] = sum
	}
}

// logScale converts energies to decibels and clamps them to topDB below the
// loudest bin.
func (m *MFCC) logScale() {
	maxDB := math.Inf(-1)
	for i, e := range m.energies {
		db := 10 * math.Log10(max(e, minEnergy))
		m.energies[i] = db
		maxDB = max(maxDB, db)
	}
	floor := maxDB - topDB
	for i, db := range m.energies {
		m.energies[i] = max(db, floor)
	}
}
