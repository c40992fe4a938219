package utils

import (
	"regexp"
	"strings"
)

// DefaultTokenPattern matches ASCII letters, digits and German umlauts.
// Everything else, including other accented letters, acts as a separator.
var DefaultTokenPattern = regexp.MustCompile(`[A-Za-z0-9ÄÖÜäöüß]+`)

// Tokenizer splits text into word tokens.
type Tokenizer struct {
	pattern   *regexp.Regexp
	lowercase bool
}

type TokenizerOption func(*Tokenizer)

// WithTokenPattern replaces the token pattern.
func WithTokenPattern(re *regexp.Regexp) TokenizerOption {
	return func(t *Tokenizer) {
		if re != nil {
			t.pattern = re
		}
	}
}

// WithCaseSensitive keeps tokens in their original case.
func WithCaseSensitive() TokenizerOption {
	return func(t *Tokenizer) { t.lowercase = false }
}

func NewTokenizer(opts ...TokenizerOption) *Tokenizer {
	t := &Tokenizer{pattern: DefaultTokenPattern, lowercase: true}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tokenize returns the maximal runs of the token pattern in order of appearance.
// It never returns nil.
func (t *Tokenizer) Tokenize(text string) []string {
	if text == "" {
		return []string{}
	}

	tokens := t.pattern.FindAllString(text, -1)
	if tokens == nil {
		return []string{}
	}
	if t.lowercase {
		for i, tok := range tokens {
			tokens[i] = strings.ToLower(tok)
		}
	}
	return tokens
}

var defaultTokenizer = NewTokenizer()

// Tokenize splits text with the default pattern, lowercased.
func Tokenize(text string) []string {
	return defaultTokenizer.Tokenize(text)
}

func CountTokens(text string) int {
	return len(Tokenize(text))
}
