package catalog

import (
	"regexp"
	"strings"
)

// tokenRegex matches alphanumeric sequences (including underscores).
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// Tokenize splits text into lowercase terms for a text index.
// Tokens shorter than 2 characters are dropped.
func Tokenize(text string) []string {
	words := tokenRegex.FindAllString(text, -1)

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if len(lower) >= 2 {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

// normalizeTerm lowercases a query term the same way Tokenize does.
func normalizeTerm(s string) string {
	return strings.ToLower(s)
}
