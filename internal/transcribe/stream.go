package transcribe

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chaz8081/gostt-edge/internal/asr"
	"github.com/chaz8081/gostt-edge/internal/decode"
)

// ErrClosed is returned by a Stream after Close.
var ErrClosed = errors.New("transcribe: stream closed")

// Stream feeds audio through a pipeline one window at a time. Each window is
// RequiredInputSamples long and starts AdvanceOffset samples after the
// previous one. Stream is safe for concurrent use; calls are serialised.
type Stream struct {
	logger       *slog.Logger
	emitPartials bool

	mu       sync.Mutex
	pipeline *asr.Pipeline
	decoder  *decode.Stream
	window   []float32
	fill     int
	fed      bool
	windows  int
	closed   bool
}

var _ Transcriber = (*Stream)(nil)

// NewStream wraps p. With emitPartials, the text of every decoded window is
// logged at info level.
func NewStream(p *asr.Pipeline, logger *slog.Logger, emitPartials bool) (*Stream, error) {
	dec, err := p.NewStream()
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		logger:       logger,
		emitPartials: emitPartials,
		pipeline:     p,
		decoder:      dec,
		window:       make([]float32, p.RequiredInputSamples()),
	}, nil
}

// Pipeline returns the underlying pipeline.
func (s *Stream) Pipeline() *asr.Pipeline { return s.pipeline }

// Feed appends samples and decodes every window they complete. It returns
// the text those windows add.
func (s *Stream) Feed(samples []float32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	return s.feed(samples)
}

// Flush decodes the buffered tail as the last window of the utterance,
// padded with silence, and resets the stream. It returns "" when nothing
// was fed since the last flush.
func (s *Stream) Flush() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	return s.flush()
}

// Process transcribes one complete utterance, discarding any partially fed
// audio first.
func (s *Stream) Process(samples []float32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	s.reset()

	var b strings.Builder
	text, err := s.feed(samples)
	b.WriteString(text)
	if err != nil {
		s.reset()
		return b.String(), err
	}
	text, err = s.flush()
	b.WriteString(text)
	return b.String(), err
}

// Reset discards buffered audio and decoder state.
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// Close stops the stream. Later calls return ErrClosed.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.window = nil
	return nil
}

func (s *Stream) feed(samples []float32) (string, error) {
	var b strings.Builder
	for len(samples) > 0 {
		n := copy(s.window[s.fill:], samples)
		s.fill += n
		samples = samples[n:]
		s.fed = true
		if s.fill < len(s.window) {
			break
		}

		text, err := s.run(false)
		if err != nil {
			return b.String(), err
		}
		b.WriteString(text)

		advance := s.pipeline.AdvanceOffset()
		s.fill = copy(s.window, s.window[advance:])
	}
	return b.String(), nil
}

func (s *Stream) flush() (string, error) {
	if !s.fed {
		return "", nil
	}
	clear(s.window[s.fill:])
	text, err := s.run(true)
	s.reset()
	return text, err
}

func (s *Stream) run(last bool) (string, error) {
	out, err := s.pipeline.Infer(s.window)
	if err != nil {
		return "", fmt.Errorf("transcribe: window %d: %w", s.windows, err)
	}
	text, err := s.decoder.Decode(out.Int8(), last)
	if err != nil {
		return "", fmt.Errorf("transcribe: window %d: %w", s.windows, err)
	}
	if s.emitPartials && text != "" {
		s.logger.Info("partial transcript", "window", s.windows, "text", text, "last", last)
	} else {
		s.logger.Debug("window decoded", "window", s.windows, "last", last)
	}
	s.windows++
	return text, nil
}

func (s *Stream) reset() {
	s.fill = 0
	s.fed = false
	s.windows = 0
	s.decoder.Reset()
}
