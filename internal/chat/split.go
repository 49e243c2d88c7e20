package chat

import (
	"strings"
	"unicode"
)

// MessageLimit is the platform's per-message size in characters.
const MessageLimit = 2000

// SplitMessage cuts text into chunks of at most limit runes. Each cut is
// made at the last sentence end inside the limit, else at the last
// whitespace, else exactly at the limit. Whitespace around cuts is dropped.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MessageLimit
	}
	r := []rune(strings.TrimSpace(text))
	if len(r) == 0 {
		return nil
	}

	var chunks []string
	for len(r) > limit {
		cut := sentenceCut(r, limit)
		if cut == 0 {
			cut = spaceCut(r, limit)
		}
		if cut == 0 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimRightFunc(string(r[:cut]), unicode.IsSpace))
		r = trimLeftSpace(r[cut:])
	}
	if len(r) > 0 {
		chunks = append(chunks, string(r))
	}
	return chunks
}

// sentenceCut returns the largest chunk length ending a sentence, or 0.
func sentenceCut(r []rune, limit int) int {
	for p := limit; p > 0; p-- {
		switch prev := r[p-1]; {
		case prev == '\n':
			return p
		case strings.ContainsRune(".!?", prev) && unicode.IsSpace(r[p]):
			return p
		}
	}
	return 0
}

// spaceCut returns the largest chunk length followed by whitespace, or 0.
func spaceCut(r []rune, limit int) int {
	for p := limit; p > 0; p-- {
		if unicode.IsSpace(r[p]) {
			return p
		}
	}
	return 0
}

func trimLeftSpace(r []rune) []rune {
	i := 0
	for i < len(r) && unicode.IsSpace(r[i]) {
		i++
	}
	return r[i:]
}
