package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/chaz8081/gostt-edge/internal/config"
	"github.com/chaz8081/gostt-edge/internal/engine"
	"github.com/chaz8081/gostt-edge/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	logLevel   string
	profile    bool

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	profiler  engine.Profiler = engine.NopProfiler{}
	reader    *sdkmetric.ManualReader
)

var rootCmd = &cobra.Command{
	Use:   "gostt-edge",
	Short: "Offline streaming speech recognition",
	Long: `gostt-edge - offline streaming speech-to-text with a quantized
Wav2Letter model.

Audio is cut into overlapping windows, turned into MFCC features, run
through the model by an external runner process and decoded with greedy CTC.

Configuration is read from ~/.config/gostt-edge/config.yaml when present.

Examples:
  # Download the model and write a default config
  gostt-edge models pull
  gostt-edge config init

  # Transcribe a file and score it against a reference
  gostt-edge transcribe speech.wav --reference "hello world"

  # Live microphone transcription, Ctrl+C to stop
  gostt-edge listen`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		printProfile(cmd.ErrOrStderr())
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ~/.config/gostt-edge/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&profile, "profile", false, "print pipeline timings on exit")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	var opts []logging.Option
	opts = append(opts, logging.WithWriter(cmd.ErrOrStderr()))
	if cfg.LogFile != "" {
		opts = append(opts, logging.WithLogFile(cfg.LogFile))
	}
	logger, logCloser = logging.New(config.ParseLogLevel(cfg.LogLevel), opts...)
	slog.SetDefault(logger)

	if profile {
		reader = sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		p, err := engine.NewMeterProfiler(provider.Meter("gostt-edge"), cfg.Model)
		if err != nil {
			return err
		}
		profiler = p
	}
	return nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		c, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return c, nil
	}

	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(w io.Writer, c *config.Config) {
	fmt.Fprintln(w, "=== gostt-edge ===")
	fmt.Fprintf(w, "  Model:   %s\n", c.Model)
	fmt.Fprintf(w, "  Runner:  %s\n", c.Engine.Command)
	fmt.Fprintf(w, "  Audio:   %dHz, %dch\n", c.Audio.SampleRate, c.Audio.Channels)
	fmt.Fprintf(w, "  Log:     %s\n", c.LogLevel)
	fmt.Fprintln(w, "==================")
}

// printProfile writes one line per recorded pipeline event.
func printProfile(w io.Writer) {
	if reader == nil {
		return
	}
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		fmt.Fprintf(w, "profile: %v\n", err)
		return
	}

	var lines []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			hist, ok := m.Data.(metricdata.Histogram[float64])
			if !ok {
				continue
			}
			for _, dp := range hist.DataPoints {
				event, _ := dp.Attributes.Value(attribute.Key("event"))
				mean := 0.0
				if dp.Count > 0 {
					mean = dp.Sum / float64(dp.Count)
				}
				lines = append(lines, fmt.Sprintf("  %-10s n=%-5d total=%8.1fms mean=%7.2fms",
					event.AsString(), dp.Count, dp.Sum, mean))
			}
		}
	}
	if len(lines) == 0 {
		return
	}
	sort.Strings(lines)
	fmt.Fprintln(w, "=== profile ===")
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}
