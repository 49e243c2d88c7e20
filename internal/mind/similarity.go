package mind

import (
	"strings"
	"unicode"
)

// Similarity scores the word overlap of a and b as a Jaccard index in [0, 1].
// Both inputs are lowercased and stripped of punctuation and symbols first.
// Identical inputs score 1, an input that normalizes to nothing scores 0.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	wa, wb := wordSet(na), wordSet(nb)
	shared := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			shared++
		}
	}
	union := len(wa) + len(wb) - shared
	return float64(shared) / float64(union)
}

func normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
