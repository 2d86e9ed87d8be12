package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-edge/internal/audio"
	"github.com/chaz8081/gostt-edge/internal/decode"
	"github.com/chaz8081/gostt-edge/internal/transcribe"
)

var (
	reference     string
	referenceFile string
	streamChunkMS int
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file.wav>",
	Short: "Transcribe a WAV file",
	Long: `Transcribe a PCM WAV file. Multi-channel audio is downmixed and any
sample rate is resampled to the model's rate.

With --reference or --reference-file the transcript is scored and the word
and character error rates are printed.

Examples:
  gostt-edge transcribe speech.wav
  gostt-edge transcribe speech.wav --stream-chunk-ms 100
  gostt-edge transcribe speech.wav --reference "ask not what your country"`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	transcribeCmd.Flags().StringVar(&reference, "reference", "", "reference transcript to score against")
	transcribeCmd.Flags().StringVar(&referenceFile, "reference-file", "", "file holding the reference transcript")
	transcribeCmd.Flags().IntVar(&streamChunkMS, "stream-chunk-ms", 0, "feed audio in chunks of this many milliseconds, printing text as it is decoded")

	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	ref := reference
	if referenceFile != "" {
		data, err := os.ReadFile(referenceFile)
		if err != nil {
			return fmt.Errorf("reading reference: %w", err)
		}
		ref = strings.TrimSpace(string(data))
	}

	stream, err := transcribe.New(cfg, logger, transcribe.WithProfiler(profiler))
	if err != nil {
		return err
	}
	defer stream.Close()

	samples, rate, err := audio.LoadWAV(args[0])
	if err != nil {
		return err
	}
	modelRate := stream.Pipeline().Geometry().SampleRate
	if rate != modelRate {
		logger.Debug("resampling", "from", rate, "to", modelRate)
		if samples, err = audio.Resample(samples, rate, modelRate); err != nil {
			return err
		}
	}
	logger.Info("audio loaded", "file", args[0], "seconds", float64(len(samples))/float64(modelRate))

	out := cmd.OutOrStdout()
	start := time.Now()
	var text string
	if streamChunkMS > 0 {
		text, err = feedChunks(stream, samples, streamChunkMS*modelRate/1000, func(s string) {
			fmt.Fprint(out, s)
		})
		fmt.Fprintln(out)
	} else {
		text, err = stream.Process(samples)
		fmt.Fprintln(out, text)
	}
	if err != nil {
		return err
	}
	logger.Info("transcribed", "elapsed", time.Since(start).Round(time.Millisecond), "chars", len(text))

	if ref != "" {
		wer := decode.ComputeWER(ref, text)
		cer := decode.ComputeCER(ref, text)
		fmt.Fprintf(out, "WER: %.2f%% (S=%d I=%d D=%d, %d words)\n",
			wer.Rate*100, wer.Substitutions, wer.Insertions, wer.Deletions, wer.Reference)
		fmt.Fprintf(out, "CER: %.2f%%\n", cer.Rate*100)
	}
	return nil
}

// feedChunks streams samples through s in chunks of n samples, calling emit
// with each piece of text as soon as it is decoded.
func feedChunks(s *transcribe.Stream, samples []float32, n int, emit func(string)) (string, error) {
	if n <= 0 {
		n = len(samples)
	}
	var b strings.Builder
	for len(samples) > 0 {
		chunk := samples[:min(n, len(samples))]
		samples = samples[len(chunk):]
		text, err := s.Feed(chunk)
		if err != nil {
			return b.String(), err
		}
		if text != "" {
			emit(text)
			b.WriteString(text)
		}
	}
	text, err := s.Flush()
	if text != "" {
		emit(text)
		b.WriteString(text)
	}
	return b.String(), err
}
