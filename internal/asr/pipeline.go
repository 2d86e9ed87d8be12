// Package asr assembles the streaming speech recognition core: a model's
// input geometry, the feature front end, the inference engine and the CTC
// decoder.
//
// Callers cut audio into windows of RequiredInputSamples samples, advancing
// by AdvanceOffset between windows so that each window's inner context
// follows the previous one:
//
//	p, err := asr.Create(asr.ModelWav2Letter, decode.DefaultLabels(), asr.Options{Backend: b})
//	stream, _ := p.NewStream()
//	for each window {
//		scores, _ := p.Infer(window)
//		text, _ := stream.Decode(scores.Int8(), last)
//	}
package asr

import (
	"fmt"
	"time"

	"github.com/chaz8081/gostt-edge/internal/decode"
	"github.com/chaz8081/gostt-edge/internal/engine"
	"github.com/chaz8081/gostt-edge/internal/quant"
)

// Pipeline is a ready-to-run model. It is single-threaded: callers must not
// overlap calls to Process or Infer.
type Pipeline struct {
	name     string
	geom     Geometry
	features *FeaturePipeline
	interp   *engine.Interpreter
	decoder  *decode.Decoder
	layout   decode.OutputLayout
	quant    quant.Params
	profiler engine.Profiler
}

// Name returns the model name.
func (p *Pipeline) Name() string { return p.name }

// Geometry returns the model's input framing.
func (p *Pipeline) Geometry() Geometry { return p.geom }

// RequiredInputSamples returns the exact window length Process accepts.
func (p *Pipeline) RequiredInputSamples() int { return p.geom.RequiredInputSamples() }

// AdvanceOffset returns the samples to advance between windows.
func (p *Pipeline) AdvanceOffset() int { return p.geom.AdvanceOffset() }

// Process converts one window of audio into the quantized feature matrix.
// The returned buffer is owned by the pipeline and valid until the next call.
func (p *Pipeline) Process(window []float32) ([]int8, error) {
	return p.features.Process(window)
}

// Infer extracts features for window straight into the engine's input tensor,
// runs the model and returns the output score tensor. The tensor is valid
// until the next call.
func (p *Pipeline) Infer(window []float32) (*engine.Tensor, error) {
	in, err := p.interp.Input(0)
	if err != nil {
		return nil, fmt.Errorf("asr: input tensor: %w", err)
	}
	if err := p.features.ProcessInto(in.Int8(), window); err != nil {
		return nil, err
	}
	if err := p.interp.Invoke(); err != nil {
		return nil, fmt.Errorf("asr: %w", err)
	}
	out, err := p.interp.Output(0)
	if err != nil {
		return nil, fmt.Errorf("asr: output tensor: %w", err)
	}
	return out, nil
}

// Transcribe runs Infer and decodes the window on its own, keeping every
// output row.
func (p *Pipeline) Transcribe(window []float32) (string, error) {
	out, err := p.Infer(window)
	if err != nil {
		return "", err
	}
	start := time.Now()
	text, err := p.decoder.Decode(out.Int8())
	p.profiler.Record("decode", time.Since(start))
	return text, err
}

// NewStream returns a decoder stream for consecutive windows of this model.
func (p *Pipeline) NewStream() (*decode.Stream, error) {
	return p.decoder.NewStream(p.layout)
}

// Interpreter returns the engine handle.
func (p *Pipeline) Interpreter() *engine.Interpreter { return p.interp }

// Decoder returns the decoder handle.
func (p *Pipeline) Decoder() *decode.Decoder { return p.decoder }

// OutputLayout returns the context layout of the score tensor.
func (p *Pipeline) OutputLayout() decode.OutputLayout { return p.layout }

// Quantization returns the input quantization read from the engine.
func (p *Pipeline) Quantization() quant.Params { return p.quant }

// ArenaUsedBytes returns the engine arena bytes in use.
func (p *Pipeline) ArenaUsedBytes() int { return p.interp.ArenaUsedBytes() }
