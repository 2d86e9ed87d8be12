package decode

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidLayout = errors.New("invalid output layout")

// OutputLayout describes which rows of a window's score matrix belong to the
// left context, inner context and right context.
type OutputLayout struct {
	Rows      int
	Cols      int
	LeftRows  int
	InnerRows int
	RightRows int
}

// NewOutputLayout derives the score layout of a model whose output is
// downsampled in time by stride relative to its numVectors input vectors.
func NewOutputLayout(numVectors, leftContext, rightContext, stride, cols int) (OutputLayout, error) {
	if stride <= 0 || cols <= 0 {
		return OutputLayout{}, fmt.Errorf("decode: stride %d, cols %d: %w", stride, cols, ErrInvalidLayout)
	}
	l := OutputLayout{
		Rows:      numVectors / stride,
		Cols:      cols,
		LeftRows:  leftContext / stride,
		RightRows: rightContext / stride,
	}
	l.InnerRows = l.Rows - l.LeftRows - l.RightRows
	if l.InnerRows <= 0 {
		return OutputLayout{}, fmt.Errorf("decode: %d rows leave no inner context after %d+%d: %w",
			l.Rows, l.LeftRows, l.RightRows, ErrInvalidLayout)
	}
	return l, nil
}

// Size returns the number of scores in one window.
func (l OutputLayout) Size() int { return l.Rows * l.Cols }

// Span returns the [start, end) row range to decode for a window. The first
// window contributes its left context, the last its right context, and every
// window its inner context.
func (l OutputLayout) Span(first, last bool) (start, end int) {
	start = l.LeftRows
	end = l.LeftRows + l.InnerRows
	if first {
		start = 0
	}
	if last {
		end = l.Rows
	}
	return start, end
}

// Stream decodes consecutive overlapping windows into one transcript,
// collapsing repeats across window boundaries.
type Stream struct {
	dec     *Decoder
	layout  OutputLayout
	prev    int
	started bool
	b       strings.Builder
}

// NewStream returns a stream decoder for windows shaped by layout.
func (d *Decoder) NewStream(layout OutputLayout) (*Stream, error) {
	if layout.Cols != d.labels.Len() {
		return nil, fmt.Errorf("decode: layout has %d columns, labels have %d: %w",
			layout.Cols, d.labels.Len(), ErrScoreShape)
	}
	return &Stream{dec: d, layout: layout, prev: -1}, nil
}

// Layout returns the stream's output layout.
func (s *Stream) Layout() OutputLayout { return s.layout }

// Decode consumes one window of scores and returns the text it adds. last
// marks the final window of the utterance.
func (s *Stream) Decode(scores []int8, last bool) (string, error) {
	if len(scores) != s.layout.Size() {
		return "", fmt.Errorf("decode: window has %d scores, want %d: %w", len(scores), s.layout.Size(), ErrScoreShape)
	}
	start, end := s.layout.Span(!s.started, last)
	cols := s.layout.Cols

	s.b.Reset()
	if err := s.dec.decodeInto(&s.b, scores[start*cols:end*cols], &s.prev); err != nil {
		return "", err
	}
	s.started = true
	if last {
		s.prev = -1
		s.started = false
	}
	return s.b.String(), nil
}

// Reset forgets all state so the next window is treated as the first.
func (s *Stream) Reset() {
	s.prev = -1
	s.started = false
}
