// Package tokenizer splits raw text into lowercase terms on non-alphanumeric
// boundaries. Speech text arrives already normalised (stop words removed,
// stemmed), so queries and fallback speech text only need their casing and
// word boundaries aligned with it.
package tokenizer

import (
	"strings"
	"unicode"
)

// Token is a single term and its position in the original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into lowercased Tokens.
func Tokenize(text string) []Token {
	words := split(text)
	tokens := make([]Token, len(words))
	for i, w := range words {
		tokens[i] = Token{Term: w, Position: i}
	}
	return tokens
}

// Terms returns the lowercased words of text.
func Terms(text string) []string {
	return split(text)
}

func split(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
