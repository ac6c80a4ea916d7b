package shipping

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// Normalizer turns link text into the form the keyword list is written in:
// lower-case tokens, stop-words of every supported language removed, stemmed.
type Normalizer struct {
	stopwords map[string]struct{}
}

// NewNormalizer builds a normalizer with the built-in stop-word lists.
func NewNormalizer() *Normalizer {
	return &Normalizer{stopwords: stopwordSet()}
}

// Normalize returns the stemmed tokens of text joined by single spaces.
func (n *Normalizer) Normalize(text string) string {
	tokens := tokenize(strings.ToLower(strings.TrimSpace(text)))

	stems := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, stop := n.stopwords[tok]; stop {
			continue
		}
		stems = append(stems, english.Stem(tok, false))
	}
	return strings.Join(stems, " ")
}

// IsStopword reports whether word is dropped by Normalize.
func (n *Normalizer) IsStopword(word string) bool {
	_, ok := n.stopwords[strings.ToLower(word)]
	return ok
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
