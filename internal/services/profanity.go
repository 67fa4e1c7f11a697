package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// ContentFilter decides whether message text may be stored.
type ContentFilter interface {
	Clean(text string) bool
}

// defaultSwearWords seeds WordFilter. Deployments extend it through
// PROFANITY_WORDS.
var defaultSwearWords = []string{
	"asshole", "bastard", "bitch", "bullshit", "cunt", "dick",
	"fuck", "fucker", "fucking", "motherfucker", "shit", "slut", "whore",
}

// WordFilter rejects text containing any listed word as a whole token.
// Matching uses full case folding, so upper-case and title-case spellings
// hit the same entry.
type WordFilter struct {
	words map[string]struct{}
}

// NewWordFilter builds a filter from the default list plus extra.
func NewWordFilter(extra ...string) *WordFilter {
	f := &WordFilter{words: make(map[string]struct{})}
	for _, w := range append(append([]string{}, defaultSwearWords...), extra...) {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		f.words[cases.Fold().String(w)] = struct{}{}
	}
	return f
}

// Clean reports whether text contains none of the listed words.
func (f *WordFilter) Clean(text string) bool {
	if len(f.words) == 0 {
		return true
	}
	tokens := strings.FieldsFunc(cases.Fold().String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, t := range tokens {
		if _, bad := f.words[t]; bad {
			return false
		}
	}
	return true
}

var _ ContentFilter = (*WordFilter)(nil)
