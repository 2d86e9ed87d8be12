package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/gostt-edge/internal/quant"
)

// Config holds all application configuration.
type Config struct {
	Model      string         `yaml:"model"`       // registered model name, e.g. "Wav2Letter"
	LabelsPath string         `yaml:"labels_path"` // optional label file; built-in labels when empty
	ModelsDir  string         `yaml:"models_dir"`
	Engine     EngineConfig   `yaml:"engine"`
	Audio      AudioConfig    `yaml:"audio"`
	Features   FeaturesConfig `yaml:"features"`
	Stream     StreamConfig   `yaml:"stream"`
	LogLevel   string         `yaml:"log_level"`
	LogFile    string         `yaml:"log_file"` // optional rotating log file
}

// EngineConfig holds inference engine settings.
type EngineConfig struct {
	// Command runs one inference: int8 input tensor on stdin, int8 output
	// tensor on stdout.
	Command string `yaml:"command"`
	// ModelPath defaults to the model's file under models_dir.
	ModelPath string `yaml:"model_path"`
	ArenaSize int    `yaml:"arena_size"` // bytes; 0 uses the model default
	TimeoutMS int    `yaml:"timeout_ms"`
	// InputScale and InputZeroPoint override the model's declared input
	// quantization when InputScale is non-zero.
	InputScale     float32 `yaml:"input_scale"`
	InputZeroPoint int32   `yaml:"input_zero_point"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
}

// FeaturesConfig holds front end settings.
type FeaturesConfig struct {
	Normalize bool `yaml:"normalize"`
}

// StreamConfig holds streaming transcription settings.
type StreamConfig struct {
	EmitPartials bool `yaml:"emit_partials"` // log text as each window is decoded
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gostt-edge")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultModelsDir returns the default directory for downloaded models.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(home, ".local", "share", "gostt-edge", "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Model:     "Wav2Letter",
		ModelsDir: DefaultModelsDir(),
		Engine: EngineConfig{
			Command:   "tflite-runner --threads 1",
			TimeoutMS: 5000,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
		},
		Features: FeaturesConfig{
			Normalize: true,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.LabelsPath = expandTilde(cfg.LabelsPath)
	cfg.ModelsDir = expandTilde(cfg.ModelsDir)
	cfg.Engine.ModelPath = expandTilde(cfg.Engine.ModelPath)
	cfg.LogFile = expandTilde(cfg.LogFile)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Model == "" {
		return errors.New("model must not be empty")
	}

	if strings.TrimSpace(c.Engine.Command) == "" {
		return errors.New("engine.command must not be empty")
	}

	if c.Engine.ModelPath == "" && c.ModelsDir == "" {
		return errors.New("engine.model_path or models_dir must be set")
	}

	if c.Engine.ArenaSize < 0 {
		return fmt.Errorf("engine.arena_size must be >= 0, got %d", c.Engine.ArenaSize)
	}

	if c.Engine.TimeoutMS < 0 {
		return fmt.Errorf("engine.timeout_ms must be >= 0, got %d", c.Engine.TimeoutMS)
	}

	if c.Engine.InputScale != 0 {
		if err := c.inputQuant().Validate(); err != nil {
			return fmt.Errorf("engine.input_scale/input_zero_point: %w", err)
		}
	} else if c.Engine.InputZeroPoint != 0 {
		return errors.New("engine.input_zero_point requires engine.input_scale")
	}

	if c.Audio.SampleRate == 0 {
		return errors.New("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return errors.New("audio.channels must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// InputQuant returns the configured input quantization override, or nil
// when the model's declared values should be used.
func (c *Config) InputQuant() *quant.Params {
	if c.Engine.InputScale == 0 {
		return nil
	}
	q := c.inputQuant()
	return &q
}

func (c *Config) inputQuant() quant.Params {
	return quant.Params{Scale: c.Engine.InputScale, ZeroPoint: c.Engine.InputZeroPoint}
}

// Timeout returns the engine invocation timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Engine.TimeoutMS) * time.Millisecond
}

// ModelPath returns the engine model file: engine.model_path when set,
// otherwise file under models_dir.
func (c *Config) ModelPath(file string) string {
	if c.Engine.ModelPath != "" {
		return c.Engine.ModelPath
	}
	return filepath.Join(c.ModelsDir, file)
}

// ParseLogLevel maps a log_level string to a slog level. Unknown values
// map to info.
func ParseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultConfigTemplate = `# gostt-edge configuration
#
# model: registered model name (gostt-edge models list)
# labels_path: optional JSON/YAML label file ({"0": "a", ...}); built-in labels when empty
# engine.command: inference runner; reads the int8 input tensor on stdin and
#   writes the int8 output tensor on stdout
# engine.input_scale / engine.input_zero_point: override the model's input quantization

`

// WriteDefault writes the default config to DefaultConfigPath with a
// commented header. It returns the path written, or "" when a config file
// already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultConfigTemplate), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
