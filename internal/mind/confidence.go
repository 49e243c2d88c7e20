package mind

import "strings"

const (
	FallbackConfidence = 0.1

	minConfidence = 0.1
	maxConfidence = 1.0

	hedgePenalty = 0.2
	shortPenalty = 0.1
	helpBonus    = 0.1
	shortLength  = 50
)

var hedgingMarkers = []string{"creo que", "no estoy seguro", "tal vez", "quizás", "puede ser"}


// Confidence estimates how sure the assistant sounds in text, starting at
// baseline and clamped to [0.1, 1.0].
func Confidence(baseline float64, text string) float64 {
	c := baseline
	lower := strings.ToLower(text)

	if containsAny(lower, hedgingMarkers) {
		c -= hedgePenalty
	}
	if len([]rune(text)) < shortLength {
		c -= shortPenalty
	}
	if strings.ContainsRune(text, '¿') && strings.Contains(lower, "ayuda") {
		c += helpBonus
	}
	return min(maxConfidence, max(minConfidence, c))
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
