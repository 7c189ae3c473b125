package logparse

import "strings"

// Terms splits a free-text query into lower-case search terms. Very short
// words are dropped and a plural "s" is trimmed so "errors" finds "error".
func Terms(query string) []string {
	var terms []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, `"'.,;:!?()[]`)
		if len(word) < 3 {
			continue
		}
		if len(word) > 3 && strings.HasSuffix(word, "s") {
			word = strings.TrimSuffix(word, "s")
		}
		terms = append(terms, word)
	}
	return terms
}

// Matches reports whether text contains any of terms. No terms matches
// everything.
func Matches(text string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
