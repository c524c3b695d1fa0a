// Package similarity scores how alike two request texts are.
//
// Scores come from the Ratcliff/Obershelp "gestalt pattern matching"
// ratio computed over runes, the same measure difflib's SequenceMatcher
// uses, so a threshold of 0.6 behaves like get_close_matches' default.
package similarity

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// Normalize lowercases s and collapses runs of whitespace and punctuation
// at the edges so cosmetic differences do not affect scoring.
func Normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace)
	out := strings.Join(fields, " ")
	return strings.TrimFunc(out, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

// Ratio returns a score in [0,1]; 1 means identical after normalisation.
func Ratio(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}
	return difflib.NewMatcher(runes(na), runes(nb)).Ratio()
}

// Best returns the index of the candidate scoring highest against query,
// provided the score is at least threshold. On equal scores the later
// candidate wins.
func Best(query string, candidates []string, threshold float64) (int, float64, bool) {
	best, bestScore := -1, 0.0
	for i, candidate := range candidates {
		score := Ratio(query, candidate)
		if score < threshold {
			continue
		}
		if best == -1 || score >= bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore, best >= 0
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
