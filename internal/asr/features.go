package asr

import (
	"fmt"
	"time"

	"github.com/chaz8081/gostt-edge/internal/engine"
	"github.com/chaz8081/gostt-edge/internal/quant"
)

// FeatureExtractor turns one inference window of audio into a quantized
// feature matrix.
type FeatureExtractor interface {
	Extract(audio []float32, out []int8, q quant.Params) error
	Channels() int
}

// FeaturePipeline validates windows and runs the extractor into a buffer it
// owns. It is not safe for concurrent use.
type FeaturePipeline struct {
	geom      Geometry
	extractor FeatureExtractor
	quant     quant.Params
	profiler  engine.Profiler
	buf       []int8
}

// NewFeaturePipeline allocates the feature buffer for geom.
func NewFeaturePipeline(geom Geometry, extractor FeatureExtractor, q quant.Params, profiler engine.Profiler) *FeaturePipeline {
	if profiler == nil {
		profiler = engine.NopProfiler{}
	}
	return &FeaturePipeline{
		geom:      geom,
		extractor: extractor,
		quant:     q,
		profiler:  profiler,
		buf:       make([]int8, geom.FeatureBufferLen(extractor.Channels())),
	}
}

// Len returns the feature buffer length.
func (f *FeaturePipeline) Len() int { return len(f.buf) }

// Process extracts features for window into the pipeline's buffer and
// returns it. The returned slice is reused by the next call. A window of the
// wrong length fails with *InputSizeMismatchError and leaves the buffer as
// it was.
func (f *FeaturePipeline) Process(window []float32) ([]int8, error) {
	if err := f.ProcessInto(f.buf, window); err != nil {
		return nil, err
	}
	return f.buf, nil
}

// ProcessInto extracts features for window into dst.
func (f *FeaturePipeline) ProcessInto(dst []int8, window []float32) error {
	if want := f.geom.RequiredInputSamples(); len(window) != want {
		return &InputSizeMismatchError{Got: len(window), Want: want}
	}
	if len(dst) != len(f.buf) {
		return fmt.Errorf("asr: buffer has %d values, want %d: %w", len(dst), len(f.buf), ErrBufferSizeMismatch)
	}
	start := time.Now()
	err := f.extractor.Extract(window, dst, f.quant)
	f.profiler.Record("features", time.Since(start))
	if err != nil {
		return fmt.Errorf("asr: extract features: %w", err)
	}
	return nil
}
