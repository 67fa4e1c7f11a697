// Package search ranks short texts, such as public group names, against a
// free-text query.
//
// Texts and queries are split into Unicode letter/digit runs and case
// folded with golang.org/x/text/cases. A document scores the Jaccard
// similarity of the two token sets, |Q ∩ D| / |Q ∪ D|, where a query token
// long enough may also match a document token it prefixes ("dev" finds
// "developers"). Ties break on shorter text, then text, then ID, so the
// ranking is deterministic.
package search

import (
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// DefaultLimit applies when Rank is called with k <= 0.
const DefaultLimit = 10

// Document is one candidate.
type Document struct {
	ID   string
	Text string
}

// Result is a matched document.
type Result struct {
	ID      string
	Snippet string
	Score   float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithMinPrefixRunes sets the shortest query token allowed to match as a
// prefix. Zero turns prefix matching off; negative values are ignored.
func WithMinPrefixRunes(n int) Option {
	return func(m *Matcher) {
		if n >= 0 {
			m.minPrefix = n
		}
	}
}

// WithStopwords drops the given words from queries and documents.
func WithStopwords(words ...string) Option {
	return func(m *Matcher) {
		for _, w := range words {
			if w = fold(strings.TrimSpace(w)); w != "" {
				if m.stop == nil {
					m.stop = make(map[string]struct{})
				}
				m.stop[w] = struct{}{}
			}
		}
	}
}

// WithMaxDocs caps how many candidates are considered per Rank call.
func WithMaxDocs(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.maxDocs = n
		}
	}
}

// Matcher holds ranking settings. It has no mutable state after New and is
// safe for concurrent use.
type Matcher struct {
	minPrefix int
	stop      map[string]struct{}
	maxDocs   int
}

// New returns a Matcher with prefix matching from two runes.
func New(opts ...Option) *Matcher {
	m := &Matcher{minPrefix: 2}
	for _, o := range opts {
		o(m)
	}
	return m
}

type candidate struct {
	Result
	runes int
}

// Rank returns up to k documents matching query, best first. Documents
// without tokens never match. k <= 0 means DefaultLimit.
func (m *Matcher) Rank(query string, docs []Document, k int) []Result {
	q := m.tokens(query)
	if len(q) == 0 {
		return nil
	}
	if k <= 0 {
		k = DefaultLimit
	}
	if m.maxDocs > 0 && len(docs) > m.maxDocs {
		docs = docs[:m.maxDocs]
	}

	var hits []candidate
	for _, d := range docs {
		text := strings.Join(strings.Fields(d.Text), " ")
		dt := m.tokens(text)
		if len(dt) == 0 {
			continue
		}
		shared := m.matched(q, dt)
		if shared == 0 {
			continue
		}
		hits = append(hits, candidate{
			Result: Result{
				ID:      d.ID,
				Snippet: text,
				Score:   float64(shared) / float64(len(q)+len(dt)-shared),
			},
			runes: utf8.RuneCountInString(text),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		switch {
		case a.Score != b.Score:
			return a.Score > b.Score
		case a.runes != b.runes:
			return a.runes < b.runes
		case a.Snippet != b.Snippet:
			return a.Snippet < b.Snippet
		}
		return a.ID < b.ID
	})

	out := make([]Result, 0, min(k, len(hits)))
	for _, h := range hits[:min(k, len(hits))] {
		out = append(out, h.Result)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// fold applies full Unicode case folding. A Caser is stateful, so each
// call builds its own.
func fold(s string) string { return cases.Fold().String(s) }

// tokens returns the distinct folded tokens of s in sorted order, minus
// stopwords.
func (m *Matcher) tokens(s string) []string {
	words := wordRE.FindAllString(fold(s), -1)
	out := words[:0]
	for _, w := range words {
		if _, skip := m.stop[w]; !skip {
			out = append(out, w)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// matched counts query tokens found in doc, exactly or as a prefix. Both
// slices are sorted.
func (m *Matcher) matched(query, doc []string) int {
	n := 0
	for _, t := range query {
		i, found := slices.BinarySearch(doc, t)
		if found {
			n++
			continue
		}
		// Tokens prefixed by t sort directly after it.
		if m.minPrefix > 0 && utf8.RuneCountInString(t) >= m.minPrefix &&
			i < len(doc) && strings.HasPrefix(doc[i], t) {
			n++
		}
	}
	return n
}
