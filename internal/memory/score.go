package memory

import (
	"strings"
	"unicode"
)

// baseScores seeds importance by event kind before content boosts
var baseScores = map[Kind]float64{
	KindChat:        0.9,
	KindVision:      0.6,
	KindAppActivity: 0.3,
	KindLocation:    0.5,
	KindInventory:   0.4,
	KindSkill:       0.8,
	KindPreference:  0.9,
}

// defaultBaseScore applies to kinds without a seeded base
const defaultBaseScore = 0.4

// emphaticKeywords mark chat lines the user wants kept
var emphaticKeywords = []string{
	"remember", "important", "forever", "always", "never",
	"hate", "love", "favorite", "rule", "must",
}

// salientVisionKeywords mark screen observations worth keeping
var salientVisionKeywords = []string{"item", "change", "new", "danger", "threat"}

// Score rates an event's importance in [0, 1] from its kind and fields.
// Chat and vision content can boost the base score; the result is capped at 1.
// The same kind and fields always produce the same score.
func Score(kind Kind, fields map[string]string) float64 {
	score, ok := baseScores[kind]
	if !ok {
		score = defaultBaseScore
	}

	switch kind {
	case KindChat:
		score += chatBoost(fields["text"])
	case KindVision:
		score += visionBoost(fields["summary"])
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func chatBoost(text string) float64 {
	boost := 0.0

	lower := strings.ToLower(text)
	for _, kw := range emphaticKeywords {
		if strings.Contains(lower, kw) {
			boost += 0.2
			break
		}
	}

	// Capitalized words hint at names the companion should hold on to
	if hasCapitalizedWord(text) {
		boost += 0.15
	}
	if hasDigit(text) {
		boost += 0.1
	}
	if strings.Contains(text, "?") {
		boost += 0.15
	}
	return boost
}

func visionBoost(summary string) float64 {
	lower := strings.ToLower(summary)
	for _, kw := range salientVisionKeywords {
		if strings.Contains(lower, kw) {
			return 0.2
		}
	}
	return 0
}

// hasCapitalizedWord reports whether any word longer than two runes
// starts with an uppercase letter
func hasCapitalizedWord(text string) bool {
	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		if len(runes) > 2 && unicode.IsUpper(runes[0]) {
			return true
		}
	}
	return false
}

func hasDigit(text string) bool {
	for _, r := range text {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
