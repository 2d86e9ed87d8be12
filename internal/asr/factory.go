package asr

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/chaz8081/gostt-edge/internal/decode"
	"github.com/chaz8081/gostt-edge/internal/engine"
	"github.com/chaz8081/gostt-edge/internal/mfcc"
	"github.com/chaz8081/gostt-edge/internal/quant"
)

// Options configures Create. Backend is required; every other field has a
// default.
type Options struct {
	Backend engine.Backend
	// Resolver receives the model's operators. Defaults to a resolver sized
	// for exactly the model's operator set.
	Resolver *engine.OpResolver
	// Arena defaults to the model's configured arena size.
	Arena    *engine.Arena
	Profiler engine.Profiler
	Logger   *slog.Logger
	// Extractor defaults to the model's MFCC front end.
	Extractor FeatureExtractor
	// InputQuant overrides the model's declared input quantization.
	InputQuant *quant.Params
	// DisableNormalization skips per-channel feature normalisation in the
	// default front end.
	DisableNormalization bool
}

// Create builds the pipeline for the named model. It never returns a
// partially built pipeline.
func Create(name string, labels decode.Labels, opts Options) (*Pipeline, error) {
	cfg, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("asr: %s: no engine backend: %w", name, ErrEngineInit)
	}
	if labels.Len() != cfg.Classes() {
		return nil, fmt.Errorf("asr: %s: model has %d classes, labels have %d: %w",
			name, cfg.Classes(), labels.Len(), ErrEngineInit)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	profiler := opts.Profiler
	if profiler == nil {
		profiler = engine.NopProfiler{}
	}

	extractor := opts.Extractor
	if extractor == nil {
		pre, err := mfcc.NewPreprocessor(cfg.MFCCParams(!opts.DisableNormalization))
		if err != nil {
			return nil, fmt.Errorf("asr: %s: front end: %w: %w", name, err, ErrInvalidGeometry)
		}
		extractor = pre
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = engine.NewOpResolver(len(cfg.Ops))
	}
	for _, op := range cfg.Ops {
		if resolver.Has(op) {
			continue
		}
		if err := resolver.Add(op); err != nil {
			return nil, fmt.Errorf("asr: %s: %w: %w", name, ErrOperatorRegistration, err)
		}
	}

	inputQuant := cfg.Input.Quant
	if opts.InputQuant != nil {
		inputQuant = *opts.InputQuant
	}

	arena := opts.Arena
	if arena == nil {
		arena = engine.NewArena(cfg.ArenaSize)
	}
	interp := engine.NewInterpreter(cfg.Model(inputQuant), resolver, arena, opts.Backend, engine.WithProfiler(profiler))
	if err := interp.AllocateTensors(); err != nil {
		if errors.Is(err, engine.ErrOpNotRegistered) {
			return nil, fmt.Errorf("asr: %s: %w: %w", name, ErrOperatorRegistration, err)
		}
		return nil, fmt.Errorf("asr: %s: %w: %w", name, ErrTensorAllocation, err)
	}

	in, err := interp.Input(0)
	if err != nil {
		return nil, fmt.Errorf("asr: %s: %w: %w", name, ErrEngineInit, err)
	}
	q := in.Quant()
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("asr: %s: input quantization: %w: %w", name, ErrEngineInit, err)
	}
	featureLen := cfg.Geometry.FeatureBufferLen(extractor.Channels())
	if in.Spec.DType != engine.DTypeInt8 || in.Spec.NumElements() != featureLen {
		return nil, fmt.Errorf("asr: %s: input tensor %v %s does not hold %d features: %w",
			name, in.Spec.Shape, in.Spec.DType, featureLen, ErrEngineInit)
	}

	g := cfg.Geometry
	layout, err := decode.NewOutputLayout(g.NumVectors, g.LeftContext, g.RightContext, cfg.OutputStride, cfg.Classes())
	if err != nil {
		return nil, fmt.Errorf("asr: %s: %w: %w", name, ErrEngineInit, err)
	}
	out, err := interp.Output(0)
	if err != nil {
		return nil, fmt.Errorf("asr: %s: %w: %w", name, ErrEngineInit, err)
	}
	if out.Spec.DType != engine.DTypeInt8 || out.Spec.NumElements() != layout.Size() {
		return nil, fmt.Errorf("asr: %s: output tensor %v %s does not hold %d scores: %w",
			name, out.Spec.Shape, out.Spec.DType, layout.Size(), ErrEngineInit)
	}

	logger.Info("speech recognition model ready",
		"model", name,
		"arena_used_bytes", interp.ArenaUsedBytes(),
		"arena_size", arena.Size(),
		"input_scale", q.Scale,
		"input_zero_point", q.ZeroPoint,
	)

	return &Pipeline{
		name:     name,
		geom:     g,
		features: NewFeaturePipeline(g, extractor, q, profiler),
		interp:   interp,
		decoder:  decode.NewDecoder(labels),
		layout:   layout,
		quant:    q,
		profiler: profiler,
	}, nil
}
