package matcher

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Ratio returns the Ratcliff/Obershelp similarity of two strings in [0, 1],
// computed over their characters. Two empty strings are identical (1.0);
// an empty string against a non-empty one scores 0.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}

// FoldRatio is Ratio over lower-cased inputs
func FoldRatio(a, b string) float64 {
	return Ratio(strings.ToLower(a), strings.ToLower(b))
}

// lineItemSimilarity averages FoldRatio over every pairing of the two
// sequences. Either side being empty yields 0.
func lineItemSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	total := 0.0
	for _, x := range a {
		for _, y := range b {
			total += FoldRatio(x, y)
		}
	}
	return total / float64(len(a)*len(b))
}

// fieldSimilarity is FoldRatio gated on both values being present
func fieldSimilarity(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0.0
	}
	return FoldRatio(a, b)
}

// sameReference reports a case-insensitive match of two non-empty references
func sameReference(a, b string) bool {
	return a != "" && b != "" && strings.EqualFold(a, b)
}
