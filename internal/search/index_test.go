package search

import (
	"slices"
	"testing"
)

func ids(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestNew_Options(t *testing.T) {
	m := New()
	if m.minPrefix != 2 || m.maxDocs != 0 || m.stop != nil {
		t.Fatalf("defaults = %+v", m)
	}

	m = New(
		WithMinPrefixRunes(3),
		WithMinPrefixRunes(-1),
		WithMaxDocs(5),
		WithMaxDocs(0),
		WithStopwords("  The ", "", "GROUP"),
	)
	if m.minPrefix != 3 || m.maxDocs != 5 {
		t.Fatalf("minPrefix=%d maxDocs=%d", m.minPrefix, m.maxDocs)
	}
	if _, ok := m.stop["the"]; !ok {
		t.Fatalf("stopwords not folded and trimmed: %v", m.stop)
	}
	if _, ok := m.stop["group"]; !ok || len(m.stop) != 2 {
		t.Fatalf("stopwords = %v", m.stop)
	}
	if New(WithStopwords()).stop != nil {
		t.Fatal("empty stopword list allocated a set")
	}
}

func TestRank_Ordering(t *testing.T) {
	docs := []Document{
		{ID: "d1", Text: "alpha beta"},
		{ID: "d2", Text: "alpha beta gamma"},
		{ID: "d3", Text: "beta  alpha"},
		{ID: "d4", Text: "delta epsilon"},
		{ID: "d5", Text: "!!!"},
	}
	got := New().Rank("Alpha BETA", docs, 0)

	if want := []string{"d1", "d3", "d2"}; !slices.Equal(ids(got), want) {
		t.Fatalf("order = %v, want %v", ids(got), want)
	}
	if got[0].Score != 1 || got[2].Score <= 0.6 || got[2].Score >= 0.7 {
		t.Fatalf("scores = %v, %v", got[0].Score, got[2].Score)
	}
	if got[1].Snippet != "beta alpha" {
		t.Fatalf("whitespace not collapsed: %q", got[1].Snippet)
	}
	if got := New().Rank("alpha beta", docs, 1); len(got) != 1 || got[0].ID != "d1" {
		t.Fatalf("k=1 -> %v", ids(got))
	}
}

func TestRank_NoMatch(t *testing.T) {
	docs := []Document{{ID: "x", Text: "alpha beta"}}
	cases := map[string]*Matcher{
		"blank query":       New(),
		"punctuation query": New(),
		"only stopwords":    New(WithStopwords("alpha", "beta")),
	}
	queries := map[string]string{
		"blank query":       "   ",
		"punctuation query": "?!",
		"only stopwords":    "alpha beta",
	}
	for name, m := range cases {
		if got := m.Rank(queries[name], docs, 5); got != nil {
			t.Errorf("%s: got %v", name, ids(got))
		}
	}
	if got := New().Rank("alpha", nil, 5); got != nil {
		t.Fatalf("no documents: %v", got)
	}
}

func TestRank_PrefixAndFolding(t *testing.T) {
	docs := []Document{
		{ID: "g1", Text: "Gophers of Berlin"},
		{ID: "g2", Text: "STRASSE Runners"},
		{ID: "g3", Text: "Cooking"},
	}
	if got := New().Rank("goph", docs, 5); !slices.Equal(ids(got), []string{"g1"}) {
		t.Fatalf("prefix: %v", ids(got))
	}
	if got := New().Rank("straße", docs, 5); !slices.Equal(ids(got), []string{"g2"}) {
		t.Fatalf("case folding: %v", ids(got))
	}
	if got := New(WithMinPrefixRunes(0)).Rank("goph", docs, 5); got != nil {
		t.Fatalf("prefix matching off: %v", ids(got))
	}
	if got := New().Rank("g", docs, 5); got != nil {
		t.Fatalf("single rune prefix matched: %v", ids(got))
	}
}

func TestRank_MaxDocs(t *testing.T) {
	docs := []Document{
		{ID: "a", Text: "chess club"},
		{ID: "b", Text: "chess"},
	}
	if got := New(WithMaxDocs(1)).Rank("chess", docs, 5); !slices.Equal(ids(got), []string{"a"}) {
		t.Fatalf("got %v", ids(got))
	}
}

func TestMatcher_tokens(t *testing.T) {
	m := New(WithStopwords("the"))
	if got := m.tokens("The Go go GO 2024 fans"); !slices.Equal(got, []string{"2024", "fans", "go"}) {
		t.Fatalf("tokens = %v", got)
	}
	if got := m.tokens("..."); len(got) != 0 {
		t.Fatalf("tokens = %v", got)
	}
}

func TestMatcher_matched(t *testing.T) {
	doc := []string{"developers", "golang", "meetup"}
	if n := New().matched([]string{"dev", "go", "zzz"}, doc); n != 2 {
		t.Fatalf("prefix matches = %d, want 2", n)
	}
	if n := New(WithMinPrefixRunes(4)).matched([]string{"dev", "meetup"}, doc); n != 1 {
		t.Fatalf("matches with min prefix 4 = %d, want 1", n)
	}
}
