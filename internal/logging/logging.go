// Package logging builds the process slog logger: colourised console output
// through tint, optionally mirrored to a size-rotated log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

type options struct {
	w       io.Writer
	file    string
	noColor bool
}

// Option configures New.
type Option func(*options)

// WithWriter sets the console writer. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.w = w }
}

// WithLogFile mirrors log output to path, rotated at 10 MB with three old
// files kept for 28 days. An empty path disables file logging.
func WithLogFile(path string) Option {
	return func(o *options) { o.file = path }
}

// WithNoColor disables ANSI colours.
func WithNoColor() Option {
	return func(o *options) { o.noColor = true }
}

// New returns a logger at level. The returned closer releases the log file,
// if any.
func New(level slog.Level, opts ...Option) (*slog.Logger, io.Closer) {
	o := options{w: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	w := o.w
	var closer io.Closer = nopCloser{}
	noColor := o.noColor
	if o.file != "" {
		rotator := &lumberjack.Logger{
			Filename:   o.file,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		w = io.MultiWriter(o.w, rotator)
		closer = rotator
		// Escape codes would end up in the file.
		noColor = true
	}

	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	})
	return slog.New(handler), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
