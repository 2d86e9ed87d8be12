package asr

import (
	"fmt"
	"slices"
	"sync"

	"github.com/chaz8081/gostt-edge/internal/engine"
	"github.com/chaz8081/gostt-edge/internal/mfcc"
	"github.com/chaz8081/gostt-edge/internal/quant"
)

// Built-in model names.
const (
	ModelWav2Letter       = "Wav2Letter"
	ModelWav2LetterPruned = "Wav2LetterPruned"
)

// Filterbank holds the mel filterbank settings of a model's front end.
type Filterbank struct {
	NumBins int
	LoHz    float64
	HiHz    float64
	UseHTK  bool
}

// ModelConfig is everything the factory needs to build a pipeline for one
// model: input framing, front end, operator set and tensor declarations.
type ModelConfig struct {
	Name string
	// ModelFile is the artefact file name the engine backend loads.
	ModelFile  string
	Geometry   Geometry
	Filterbank Filterbank
	Ops        []engine.OpCode
	Input      engine.TensorSpec
	Output     engine.TensorSpec
	// OutputStride is the model's time downsampling: input vectors per
	// output row.
	OutputStride int
	ArenaSize    int
	ScratchBytes int
}

// MFCCParams returns the front end parameters for the model's geometry.
func (c ModelConfig) MFCCParams(normalize bool) mfcc.Params {
	g := c.Geometry
	return mfcc.Params{
		SampleRate:   g.SampleRate,
		NumFbankBins: c.Filterbank.NumBins,
		MelLoFreq:    c.Filterbank.LoHz,
		MelHiFreq:    c.Filterbank.HiHz,
		NumFeatures:  g.NumFeatures,
		FrameLen:     g.FrameLen,
		UseHTK:       c.Filterbank.UseHTK,
		NumVectors:   g.NumVectors,
		WindowLen:    g.WindowLen,
		WindowStride: g.WindowStride,
		Normalize:    normalize,
	}
}

// Model returns the engine model declaration with the given input
// quantization.
func (c ModelConfig) Model(inputQuant quant.Params) *engine.Model {
	in := c.Input
	in.Shape = slices.Clone(in.Shape)
	in.Quant = inputQuant
	out := c.Output
	out.Shape = slices.Clone(out.Shape)
	return &engine.Model{
		Name:         c.Name,
		Ops:          slices.Clone(c.Ops),
		Input:        in,
		Output:       out,
		ScratchBytes: c.ScratchBytes,
	}
}

// Classes returns the number of output classes per row.
func (c ModelConfig) Classes() int {
	if len(c.Output.Shape) == 0 {
		return 0
	}
	return c.Output.Shape[len(c.Output.Shape)-1]
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]ModelConfig)
)

// Register adds a model configuration. Names are unique.
func Register(cfg ModelConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("asr: register: empty model name")
	}
	if err := cfg.Geometry.Validate(); err != nil {
		return fmt.Errorf("asr: register %q: %w", cfg.Name, err)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[cfg.Name]; ok {
		return fmt.Errorf("asr: register %q: %w", cfg.Name, ErrDuplicateModel)
	}
	registry[cfg.Name] = cfg
	return nil
}

// Lookup returns the configuration registered under name.
func Lookup(name string) (ModelConfig, error) {
	registryMu.RLock()
	cfg, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return ModelConfig{}, fmt.Errorf("asr: model %q: %w", name, ErrUnknownModel)
	}
	return cfg, nil
}

// Names returns the registered model names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Wav2LetterGeometry returns the input framing of the Wav2Letter models:
// 16 kHz audio, 296 vectors of 13 MFCCs from 32 ms windows every 10 ms, with
// 98 vectors of context on each side.
func Wav2LetterGeometry() Geometry {
	return Geometry{
		SampleRate:   16000,
		FrameLen:     16000 * 32 / 1000,
		NumFeatures:  13,
		WindowLen:    512,
		WindowStride: 160,
		NumVectors:   296,
		LeftContext:  98,
		RightContext: 98,
	}
}

func wav2Letter(name, file string) ModelConfig {
	g := Wav2LetterGeometry()
	return ModelConfig{
		Name:       name,
		ModelFile:  file,
		Geometry:   g,
		Filterbank: Filterbank{NumBins: 128, LoHz: 0, HiHz: 8000},
		Ops: []engine.OpCode{
			engine.OpReshape,
			engine.OpFullyConnected,
			engine.OpDepthwiseConv2D,
			engine.OpConv2D,
			engine.OpAveragePool2D,
			engine.OpSoftmax,
			engine.OpLeakyRelu,
		},
		Input: engine.TensorSpec{
			Name:  "input",
			Shape: []int{1, g.NumVectors, g.NumFeatures * mfcc.Channels},
			DType: engine.DTypeInt8,
			Quant: quant.Params{Scale: 0.0356, ZeroPoint: -12},
		},
		Output: engine.TensorSpec{
			Name:  "output",
			Shape: []int{1, 1, g.NumVectors / 2, 29},
			DType: engine.DTypeInt8,
			Quant: quant.Params{Scale: 1.0 / 256, ZeroPoint: -128},
		},
		OutputStride: 2,
		ArenaSize:    engine.DefaultArenaSize,
		ScratchBytes: 3 * 1024 * 1024,
	}
}

func init() {
	for _, cfg := range []ModelConfig{
		wav2Letter(ModelWav2Letter, "tiny_wav2letter_int8.tflite"),
		wav2Letter(ModelWav2LetterPruned, "tiny_wav2letter_pruned_int8.tflite"),
	} {
		if err := Register(cfg); err != nil {
			panic(err)
		}
	}
}
