package asr

import "fmt"

// Geometry is the fixed framing of a model's input: how raw audio is cut
// into feature vectors and how consecutive inference windows overlap.
type Geometry struct {
	SampleRate   int `yaml:"sample_rate"`
	FrameLen     int `yaml:"frame_len"`
	NumFeatures  int `yaml:"num_features"`
	WindowLen    int `yaml:"window_len"`
	WindowStride int `yaml:"window_stride"`
	NumVectors   int `yaml:"num_vectors"`
	LeftContext  int `yaml:"left_context"`
	RightContext int `yaml:"right_context"`
}

// Validate enforces the relations the sliding window depends on.
func (g Geometry) Validate() error {
	switch {
	case g.SampleRate <= 0 || g.FrameLen <= 0 || g.NumFeatures <= 0:
		return fmt.Errorf("asr: sample rate %d, frame %d, features %d: %w",
			g.SampleRate, g.FrameLen, g.NumFeatures, ErrInvalidGeometry)
	case g.WindowStride <= 0:
		return fmt.Errorf("asr: window stride %d: %w", g.WindowStride, ErrInvalidGeometry)
	case g.WindowLen < g.WindowStride:
		return fmt.Errorf("asr: window length %d shorter than stride %d: %w", g.WindowLen, g.WindowStride, ErrInvalidGeometry)
	case g.LeftContext < 0 || g.RightContext < 0:
		return fmt.Errorf("asr: negative context %d/%d: %w", g.LeftContext, g.RightContext, ErrInvalidGeometry)
	case g.NumVectors < g.LeftContext+g.RightContext+1:
		return fmt.Errorf("asr: %d vectors leave no inner context after %d+%d: %w",
			g.NumVectors, g.LeftContext, g.RightContext, ErrInvalidGeometry)
	}
	return nil
}

// RequiredInputSamples returns the exact audio length of one inference
// window: the first vector window plus one stride per further vector.
func (g Geometry) RequiredInputSamples() int {
	return g.WindowLen + (g.NumVectors-1)*g.WindowStride
}

// InnerContext returns the number of vectors per window that are not
// left or right context.
func (g Geometry) InnerContext() int {
	return g.NumVectors - g.LeftContext - g.RightContext
}

// AdvanceOffset returns how many samples the caller moves forward between
// consecutive windows so that inner contexts tile the stream.
func (g Geometry) AdvanceOffset() int {
	return g.InnerContext() * g.WindowStride
}

// FeatureBufferLen returns the length of the quantized feature matrix for
// the given channel count.
func (g Geometry) FeatureBufferLen(channels int) int {
	return g.NumVectors * g.NumFeatures * channels
}
