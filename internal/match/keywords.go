package match

import "strings"

// stopwords are dropped from event descriptions before matching.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true,
	"at": true, "will": true, "be": true, "to": true, "of": true,
}

// ExtractKeywords lowercases the text and returns its significant terms:
// stopwords and tokens of two characters or fewer are dropped.
func ExtractKeywords(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if stopwords[w] || len(w) <= 2 {
			continue
		}
		out = append(out, w)
	}
	return out
}

// positiveWords and negativeWords drive the yes/no polarity heuristic when an
// event outcome has no direct textual overlap with a binary market's labels.
var (
	positiveWords = []string{"win", "pass", "yes", "true", "happen"}
	negativeWords = []string{"lose", "fail", "no", "false", "not"}
)

// matchOutcome resolves which market outcome label corresponds to the event
// outcome. Direct substring containment wins; for binary yes/no markets a
// polarity heuristic maps winning/losing language onto the labels. Returns
// the matched label and whether a match was found.
func matchOutcome(eventOutcome string, labels []string) (string, bool) {
	outcome := strings.ToLower(eventOutcome)

	for _, label := range labels {
		l := strings.ToLower(label)
		if strings.Contains(l, outcome) || strings.Contains(outcome, l) {
			return label, true
		}
		if strings.Contains(l, "yes") && containsAny(outcome, positiveWords) {
			return label, true
		}
		if strings.Contains(l, "no") && containsAny(outcome, negativeWords) {
			return label, true
		}
	}
	return "", false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
