package memory

import (
	"strings"
	"unicode/utf8"
)

// EstimateTokens gives a rough token count for a block of text, taking
// the larger of a character-based and a word-based estimate
func EstimateTokens(text string) int {
	charCount := utf8.RuneCountInString(text)
	wordCount := len(strings.Fields(text))

	estimate := charCount / 3
	if wordEstimate := wordCount * 2; wordEstimate > estimate {
		estimate = wordEstimate
	}

	return estimate
}
