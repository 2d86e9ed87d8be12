// Package decode turns per-frame class scores from the acoustic model into
// text using greedy CTC decoding.
package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// BlankToken is the CTC blank symbol in the Wav2Letter label set.
const BlankToken = "$"

var (
	ErrNoBlank     = errors.New("label set has no blank token")
	ErrEmptyLabels = errors.New("label set is empty")
	ErrLabelGap    = errors.New("label set has missing indices")
)

// Labels maps a model output class index to its token.
type Labels struct {
	tokens []string
	blank  int
}

// DefaultLabels returns the 29-class Wav2Letter label set: a-z, apostrophe,
// space and the blank "$".
func DefaultLabels() Labels {
	tokens := make([]string, 0, 29)
	for c := 'a'; c <= 'z'; c++ {
		tokens = append(tokens, string(c))
	}
	tokens = append(tokens, "'", " ", BlankToken)
	return Labels{tokens: tokens, blank: len(tokens) - 1}
}

// NewLabels builds a label set from tokens in class order. blank names the
// CTC blank token and must be present exactly once.
func NewLabels(tokens []string, blank string) (Labels, error) {
	if len(tokens) == 0 {
		return Labels{}, ErrEmptyLabels
	}
	idx := -1
	for i, tok := range tokens {
		if tok == blank {
			if idx >= 0 {
				return Labels{}, fmt.Errorf("decode: blank %q at %d and %d", blank, idx, i)
			}
			idx = i
		}
	}
	if idx < 0 {
		return Labels{}, fmt.Errorf("decode: blank %q: %w", blank, ErrNoBlank)
	}
	return Labels{tokens: append([]string(nil), tokens...), blank: idx}, nil
}

// FromMap builds a label set from an index -> token map. Indices must be
// contiguous from zero.
func FromMap(m map[int]string, blank string) (Labels, error) {
	if len(m) == 0 {
		return Labels{}, ErrEmptyLabels
	}
	tokens := make([]string, len(m))
	for i := range tokens {
		tok, ok := m[i]
		if !ok {
			return Labels{}, fmt.Errorf("decode: index %d: %w", i, ErrLabelGap)
		}
		tokens[i] = tok
	}
	return NewLabels(tokens, blank)
}

// LoadLabels reads a label file. JSON files use {"0": "a", "1": "b", ...};
// YAML files (.yaml, .yml) use the same index -> token mapping.
func LoadLabels(path string) (Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Labels{}, fmt.Errorf("decode: reading labels: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var m map[int]string
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Labels{}, fmt.Errorf("decode: parsing labels YAML: %w", err)
		}
		return FromMap(m, BlankToken)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return Labels{}, fmt.Errorf("decode: parsing labels JSON: %w", err)
	}
	m := make(map[int]string, len(raw))
	for k, v := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return Labels{}, fmt.Errorf("decode: invalid label index %q: %w", k, err)
		}
		m[id] = v
	}
	return FromMap(m, BlankToken)
}

// Len returns the number of classes.
func (l Labels) Len() int { return len(l.tokens) }

// Blank returns the blank class index.
func (l Labels) Blank() int { return l.blank }

// Token returns the token for class i, or "" when out of range.
func (l Labels) Token(i int) string {
	if i < 0 || i >= len(l.tokens) {
		return ""
	}
	return l.tokens[i]
}

// Map returns the labels as an index -> token map.
func (l Labels) Map() map[int]string {
	m := make(map[int]string, len(l.tokens))
	for i, tok := range l.tokens {
		m[i] = tok
	}
	return m
}
