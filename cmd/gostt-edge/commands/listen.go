package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-edge/internal/audio"
	"github.com/chaz8081/gostt-edge/internal/transcribe"
)

var savePath string

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Transcribe the default microphone live",
	Long: `Capture the default microphone and print text as each window is
decoded. Ctrl+C stops capture and decodes the remaining audio.

Examples:
  gostt-edge listen
  gostt-edge listen --save session.wav`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVar(&savePath, "save", "", "also write the captured audio to this WAV file")

	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	printBanner(cmd.ErrOrStderr(), cfg)

	stream, err := transcribe.New(cfg, logger, transcribe.WithProfiler(profiler))
	if err != nil {
		return err
	}
	defer stream.Close()
	modelRate := stream.Pipeline().Geometry().SampleRate

	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels)
	if err != nil {
		return fmt.Errorf("failed to initialize audio recorder: %w", err)
	}
	defer recorder.Close()

	chunks, err := recorder.StartStream(64)
	if err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Listening. Ctrl+C to stop.")
	out := cmd.OutOrStdout()
	var captured []float32

loop:
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				break loop
			}
			if int(cfg.Audio.SampleRate) != modelRate {
				// TODO: keep one resampler across chunks to avoid filter edges at chunk boundaries.
				if chunk, err = audio.Resample(chunk, int(cfg.Audio.SampleRate), modelRate); err != nil {
					return err
				}
			}
			if savePath != "" {
				captured = append(captured, chunk...)
			}
			text, err := stream.Feed(chunk)
			if err != nil {
				return err
			}
			fmt.Fprint(out, text)

		case <-ctx.Done():
			break loop
		}
	}

	recorder.Stop()
	if n := recorder.Dropped(); n > 0 {
		logger.Warn("audio blocks dropped", "count", n)
	}

	text, err := stream.Flush()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, text)

	if savePath != "" {
		if err := audio.WriteWAV(savePath, captured, modelRate); err != nil {
			return err
		}
		logger.Info("audio saved", "file", savePath)
	}
	return nil
}
