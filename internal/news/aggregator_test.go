package news

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProvider struct {
	name     string
	articles []Article
	err      error
	calls    []string // query override per call
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchNews(ctx context.Context, category Category, limit int, queryOverride string) ([]Article, error) {
	f.calls = append(f.calls, queryOverride)
	return f.articles, f.err
}

func art(title string, age time.Duration, now time.Time) Article {
	return Article{Title: title, PublishedAt: now.Add(-age), Source: "src"}
}

func newTestAggregator(now time.Time, providers ...Provider) *Aggregator {
	a := NewAggregator(providers, nil)
	a.now = func() time.Time { return now }
	a.sleep = func(ctx context.Context, d time.Duration) bool { return true }
	return a
}

func TestDeduplicate_NormalizedTitle(t *testing.T) {
	now := time.Now()
	in := []Article{
		art("OpenAI Releases New Model!", time.Hour, now),
		art("openai releases new model", 2*time.Hour, now),
		art("short", time.Hour, now), // under min title length
	}
	got := Deduplicate(in)
	if len(got) != 1 {
		t.Fatalf("expected 1 article after dedupe, got %d", len(got))
	}
	if got[0].Title != "OpenAI Releases New Model!" {
		t.Fatalf("expected first occurrence kept, got %q", got[0].Title)
	}

	// Idempotence: feeding the result back in changes nothing.
	again := Deduplicate(got)
	if len(again) != 1 || again[0].Title != got[0].Title {
		t.Fatalf("dedupe not idempotent: %#v", again)
	}
}

func TestFetch_MergesTwoProvidersWithSameStory(t *testing.T) {
	now := time.Now()
	p1 := &fakeProvider{name: "A", articles: []Article{art("Markets Rally After Rate Cut", time.Hour, now)}}
	p2 := &fakeProvider{name: "B", articles: []Article{art("markets rally, after rate-cut", 2*time.Hour, now)}}

	a := newTestAggregator(now, p1, p2)
	got, err := a.Fetch(context.Background(), CategoryBusiness, 10)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 merged article, got %d", len(got))
	}
}

func TestFetch_FreshnessWindow(t *testing.T) {
	now := time.Now()
	p := &fakeProvider{name: "A", articles: []Article{
		art("Too old story gets dropped here", 25*time.Hour, now),
		art("Still fresh story stays in list", 23*time.Hour, now),
	}}

	a := newTestAggregator(now, p)
	got, err := a.Fetch(context.Background(), CategoryTech, 10)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Still fresh story stays in list" {
		t.Fatalf("unexpected freshness result: %#v", got)
	}
}

func TestFetch_AllStaleIsDistinguishable(t *testing.T) {
	now := time.Now()
	p := &fakeProvider{name: "A", articles: []Article{
		art("Everything here is ancient news", 30*time.Hour, now),
	}}

	a := newTestAggregator(now, p)
	got, err := a.Fetch(context.Background(), CategoryTech, 10)
	if !errors.Is(err, ErrAllStale) {
		t.Fatalf("expected ErrAllStale, got %v (%d articles)", err, len(got))
	}

	empty := &fakeProvider{name: "B"}
	a2 := newTestAggregator(now, empty)
	got, err = a2.Fetch(context.Background(), CategoryTech, 10)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected nil error for truly empty source, got %v", err)
	}
}

func TestFreshnessStats(t *testing.T) {
	now := time.Now()
	cutoff := now.Add(-24 * time.Hour)
	articles := []Article{
		art("Fresh enough to survive the cut", time.Hour, now),
		art("Stale by six hours and dropped", 30*time.Hour, now),
		art("Stale by two hours and dropped", 26*time.Hour, now),
	}

	fresh, gap := freshnessStats(articles, cutoff)
	if fresh != 1 {
		t.Fatalf("expected 1 fresh article, got %d", fresh)
	}
	if gap != 2*time.Hour {
		t.Fatalf("gap must track the freshest rejected article, got %s", gap)
	}

	if fresh, gap = freshnessStats(nil, cutoff); fresh != 0 || gap != 0 {
		t.Fatalf("empty batch must report zeros, got fresh=%d gap=%s", fresh, gap)
	}
}

func TestSortByRecency_VeryFreshTierFirst(t *testing.T) {
	now := time.Now()
	articles := []Article{
		art("Published three hours ago story", 3*time.Hour, now),
		art("Published thirty minutes ago one", 30*time.Minute, now),
	}
	SortByRecency(articles, now)
	if articles[0].Title != "Published thirty minutes ago one" {
		t.Fatalf("expected very fresh article first, got %q", articles[0].Title)
	}
}

func TestSortByRecency_NewestFirstWithinTier(t *testing.T) {
	now := time.Now()
	articles := []Article{
		art("Story from five hours ago here", 5*time.Hour, now),
		art("Story from two hours ago right", 2*time.Hour, now),
		art("Story from nine hours ago gone", 9*time.Hour, now),
	}
	SortByRecency(articles, now)
	want := []string{
		"Story from two hours ago right",
		"Story from five hours ago here",
		"Story from nine hours ago gone",
	}
	for i, w := range want {
		if articles[i].Title != w {
			t.Fatalf("position %d: want %q got %q", i, w, articles[i].Title)
		}
	}
}

type fakeOptimizer struct{ query string }

func (f *fakeOptimizer) GenerateSearchQuery(ctx context.Context, topic string) (string, error) {
	return f.query, nil
}

func TestFetch_RetriesRawCategoryWhenOptimizedQueryEmpty(t *testing.T) {
	now := time.Now()
	p := &fakeProvider{name: "A"} // always empty
	a := newTestAggregator(now, p)
	a.optimizer = &fakeOptimizer{query: "hyper specific phrase"}

	if _, err := a.Fetch(context.Background(), CategoryTech, 10); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(p.calls) != 2 {
		t.Fatalf("expected optimized + raw retry, got calls %v", p.calls)
	}
	if p.calls[0] != "hyper specific phrase" || p.calls[1] != "" {
		t.Fatalf("unexpected query sequence: %v", p.calls)
	}
}

func TestNormalizeTitle(t *testing.T) {
	got := NormalizeTitle("  Breaking: AI Beats Humans?!  ")
	if got != "breaking ai beats humans" {
		t.Fatalf("unexpected normalization: %q", got)
	}

	long := NormalizeTitle("aaaaaaaaaa aaaaaaaaaa aaaaaaaaaa aaaaaaaaaa aaaaaaaaaa aaaaaaaaaa")
	if len(long) != 50 {
		t.Fatalf("expected 50-char cap, got %d", len(long))
	}
}
