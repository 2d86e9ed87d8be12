package decode

import (
	"strings"
	"unicode"
)

// ErrorRate holds edit-distance error rate results.
type ErrorRate struct {
	Rate          float64 // (Substitutions + Insertions + Deletions) / Reference
	Substitutions int
	Insertions    int
	Deletions     int
	Reference     int // units in the reference
}

// ComputeWER calculates the word error rate between reference and hypothesis.
// Both are lowercased, stripped of punctuation (apostrophes kept) and split
// on whitespace.
func ComputeWER(reference, hypothesis string) ErrorRate {
	return editRate(normalizeWords(reference), normalizeWords(hypothesis))
}

// ComputeCER calculates the character error rate. Words are normalized as
// for ComputeWER and rejoined with single spaces.
func ComputeCER(reference, hypothesis string) ErrorRate {
	ref := []rune(strings.Join(normalizeWords(reference), " "))
	hyp := []rune(strings.Join(normalizeWords(hypothesis), " "))
	return editRate(ref, hyp)
}

func editRate[T comparable](ref, hyp []T) ErrorRate {
	n := len(ref)
	if n == 0 {
		return ErrorRate{}
	}
	m := len(hyp)

	d := make([][]int, n+1)
	for i := range d {
		d[i] = make([]int, m+1)
		d[i][0] = i
	}
	for j := 0; j <= m; j++ {
		d[0][j] = j
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if ref[i-1] == hyp[j-1] {
				d[i][j] = d[i-1][j-1]
			} else {
				d[i][j] = min(d[i-1][j-1], d[i-1][j], d[i][j-1]) + 1
			}
		}
	}

	var subs, ins, dels int
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && ref[i-1] == hyp[j-1]:
			i--
			j--
		case i > 0 && j > 0 && d[i][j] == d[i-1][j-1]+1:
			subs++
			i--
			j--
		case i > 0 && d[i][j] == d[i-1][j]+1:
			dels++
			i--
		default:
			ins++
			j--
		}
	}

	return ErrorRate{
		Rate:          float64(subs+ins+dels) / float64(n),
		Substitutions: subs,
		Insertions:    ins,
		Deletions:     dels,
		Reference:     n,
	}
}

func normalizeWords(s string) []string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if r != '\'' && unicode.IsPunct(r) {
			return -1
		}
		return r
	}, s)
	return strings.Fields(s)
}
