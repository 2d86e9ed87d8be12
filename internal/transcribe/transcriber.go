// Package transcribe turns a stream of 16 kHz mono audio into text by running
// a speech recognition pipeline over consecutive overlapping windows.
package transcribe

import (
	"fmt"
	"log/slog"

	"github.com/chaz8081/gostt-edge/internal/asr"
	"github.com/chaz8081/gostt-edge/internal/config"
	"github.com/chaz8081/gostt-edge/internal/decode"
	"github.com/chaz8081/gostt-edge/internal/engine"
)

// Transcriber converts audio samples to text.
type Transcriber interface {
	// Process transcribes mono 16kHz float32 audio samples to text.
	Process(samples []float32) (string, error)
	// Close releases backend resources.
	Close() error
}

type options struct {
	backend   engine.Backend
	profiler  engine.Profiler
	extractor asr.FeatureExtractor
}

// Option configures New.
type Option func(*options)

// WithBackend replaces the runner process configured by engine.command.
func WithBackend(b engine.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithProfiler records pipeline event durations into p.
func WithProfiler(p engine.Profiler) Option {
	return func(o *options) { o.profiler = p }
}

// WithExtractor replaces the model's MFCC front end.
func WithExtractor(e asr.FeatureExtractor) Option {
	return func(o *options) { o.extractor = e }
}

// New builds a streaming transcriber for cfg.Model.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("transcribe: invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	modelCfg, err := asr.Lookup(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	labels := decode.DefaultLabels()
	if cfg.LabelsPath != "" {
		labels, err = decode.LoadLabels(cfg.LabelsPath)
		if err != nil {
			return nil, fmt.Errorf("transcribe: %w", err)
		}
	}

	backend := o.backend
	if backend == nil {
		modelPath := cfg.ModelPath(modelCfg.ModelFile)
		eb, err := engine.NewExecBackend(engine.ExecBackendConfig{
			Command:   cfg.Engine.Command,
			ModelPath: modelPath,
			Timeout:   cfg.Timeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("transcribe: %w", err)
		}
		logger.Debug("engine runner", "args", eb.Args())
		backend = eb
	}

	var arena *engine.Arena
	if cfg.Engine.ArenaSize > 0 {
		arena = engine.NewArena(cfg.Engine.ArenaSize)
	}

	p, err := asr.Create(cfg.Model, labels, asr.Options{
		Backend:              backend,
		Arena:                arena,
		Profiler:             o.profiler,
		Logger:               logger,
		Extractor:            o.extractor,
		InputQuant:           cfg.InputQuant(),
		DisableNormalization: !cfg.Features.Normalize,
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	return NewStream(p, logger, cfg.Stream.EmitPartials)
}
