package decode

import (
	"errors"
	"fmt"
	"strings"
)

var ErrScoreShape = errors.New("score buffer does not match label count")

// Decoder performs greedy CTC decoding over int8 class scores. Quantized
// scores keep their order under dequantization, so argmax over the raw int8
// values equals argmax over the probabilities.
type Decoder struct {
	labels Labels
}

// NewDecoder returns a decoder for labels.
func NewDecoder(labels Labels) *Decoder {
	return &Decoder{labels: labels}
}

// Labels returns the decoder's label set.
func (d *Decoder) Labels() Labels { return d.labels }

// Decode decodes a row-major [rows x Labels.Len()] score matrix: take the
// best class per row, collapse repeats and drop blanks.
func (d *Decoder) Decode(scores []int8) (string, error) {
	var b strings.Builder
	prev := -1
	if err := d.decodeInto(&b, scores, &prev); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (d *Decoder) decodeInto(b *strings.Builder, scores []int8, prev *int) error {
	cols := d.labels.Len()
	if cols == 0 || len(scores)%cols != 0 {
		return fmt.Errorf("decode: %d scores for %d classes: %w", len(scores), cols, ErrScoreShape)
	}
	for off := 0; off < len(scores); off += cols {
		idx := argmax(scores[off : off+cols])
		if idx != *prev && idx != d.labels.blank {
			b.WriteString(d.labels.tokens[idx])
		}
		*prev = idx
	}
	return nil
}

// argmax returns the first index of the largest value.
func argmax(row []int8) int {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best
}
