package news

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"
)

const aggLogPrefix = "[news]"

// ErrAllStale reports that providers returned articles but every one of them
// fell outside the freshness window. Callers can distinguish this from
// "providers had nothing at all".
var ErrAllStale = errors.New("all articles older than freshness window")

// Provider is the contract every news source adapter satisfies.
type Provider interface {
	Name() string
	FetchNews(ctx context.Context, category Category, limit int, queryOverride string) ([]Article, error)
}

// QueryOptimizer turns a category into a sharper search phrase. Optional;
// failures silently fall back to the raw category term.
type QueryOptimizer interface {
	GenerateSearchQuery(ctx context.Context, topic string) (string, error)
}

const (
	// DefaultFreshnessWindow is the maximum article age.
	DefaultFreshnessWindow = 24 * time.Hour
	// veryFreshWindow is the tie-break tier: articles this recent sort before
	// all older ones.
	veryFreshWindow = time.Hour
	// interCategoryDelay keeps FetchAll under aggregate provider rate limits.
	interCategoryDelay = 500 * time.Millisecond
)

// Aggregator fans a fetch out to all providers in parallel, then merges,
// dedupes, freshness-filters and orders the results.
type Aggregator struct {
	providers []Provider
	optimizer QueryOptimizer

	freshWindow time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) bool
}

func NewAggregator(providers []Provider, optimizer QueryOptimizer) *Aggregator {
	return &Aggregator{
		providers:   providers,
		optimizer:   optimizer,
		freshWindow: DefaultFreshnessWindow,
		now:         time.Now,
		sleep:       sleepWithContext,
	}
}

// Fetch returns fresh, deduplicated articles for one category, newest first
// with a very-fresh tier on top. An ErrAllStale error means sources had data
// but nothing within the freshness window.
func (a *Aggregator) Fetch(ctx context.Context, category Category, limit int) ([]Article, error) {
	query := ""
	if a.optimizer != nil && category != CategoryCustom {
		if q, err := a.optimizer.GenerateSearchQuery(ctx, category.DisplayName()); err == nil {
			query = strings.TrimSpace(q)
		}
	}

	merged := a.fetchAllProviders(ctx, category, limit, query)
	if len(merged) == 0 && query != "" {
		// An AI-optimized query can be too narrow; retry once with the raw
		// category rule.
		log.Printf("%s optimized query %q found nothing, retrying raw category=%s", aggLogPrefix, query, category)
		merged = a.fetchAllProviders(ctx, category, limit, "")
	}

	deduped := Deduplicate(merged)
	fresh, staleGap := a.filterFresh(deduped)
	if len(fresh) == 0 {
		if len(deduped) > 0 {
			log.Printf("%s category=%s had %d articles, all stale (freshest %.1fh past cutoff)",
				aggLogPrefix, category, len(deduped), staleGap.Hours())
			return nil, ErrAllStale
		}
		return nil, nil
	}

	SortByRecency(fresh, a.now())
	if limit > 0 && len(fresh) > limit {
		fresh = fresh[:limit]
	}
	return fresh, nil
}

// FetchAll iterates categories sequentially with a fixed delay between them
// to respect aggregate provider rate limits.
func (a *Aggregator) FetchAll(ctx context.Context, categories []Category, limit int) map[Category][]Article {
	out := make(map[Category][]Article, len(categories))
	for i, cat := range categories {
		if i > 0 {
			if !a.sleep(ctx, interCategoryDelay) {
				return out
			}
		}
		articles, err := a.Fetch(ctx, cat, limit)
		if err != nil {
			log.Printf("%s fetch category=%s failed: %v", aggLogPrefix, cat, err)
			continue
		}
		out[cat] = articles
	}
	return out
}

// fetchAllProviders issues both provider calls concurrently and concatenates
// whatever succeeds.
func (a *Aggregator) fetchAllProviders(ctx context.Context, category Category, limit int, query string) []Article {
	type result struct {
		name     string
		articles []Article
		err      error
	}

	ch := make(chan result, len(a.providers))
	for _, p := range a.providers {
		go func(p Provider) {
			articles, err := p.FetchNews(ctx, category, limit, query)
			ch <- result{name: p.Name(), articles: articles, err: err}
		}(p)
	}

	cutoff := a.now().Add(-a.freshWindow)
	var merged []Article
	for range a.providers {
		r := <-ch
		if r.err != nil {
			log.Printf("%s provider=%s category=%s error: %v", aggLogPrefix, r.name, category, r.err)
			continue
		}
		if fresh, gap := freshnessStats(r.articles, cutoff); fresh == 0 && len(r.articles) > 0 {
			log.Printf("%s provider=%s category=%s returned %d articles, all stale (freshest %.1fh past cutoff)",
				aggLogPrefix, r.name, category, len(r.articles), gap.Hours())
		}
		merged = append(merged, r.articles...)
	}
	return merged
}

// Deduplicate keeps the first occurrence of each normalized title and drops
// junk titles below the minimum length.
func Deduplicate(articles []Article) []Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		if len(strings.TrimSpace(a.Title)) < MinTitleLen {
			continue
		}
		key := NormalizeTitle(a.Title)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

// filterFresh drops articles older than the freshness window. When
// everything is dropped it reports how far past the cutoff the freshest
// rejected item was.
func (a *Aggregator) filterFresh(articles []Article) ([]Article, time.Duration) {
	cutoff := a.now().Add(-a.freshWindow)
	fresh := make([]Article, 0, len(articles))
	for _, art := range articles {
		if art.PublishedAt.After(cutoff) {
			fresh = append(fresh, art)
		}
	}
	_, gap := freshnessStats(articles, cutoff)
	return fresh, gap
}

// freshnessStats counts articles inside the cutoff and, over the rejected
// ones, reports how far past the cutoff the freshest of them was. Usable on a
// single provider's batch as well as on the merged set.
func freshnessStats(articles []Article, cutoff time.Time) (fresh int, gap time.Duration) {
	for _, art := range articles {
		if art.PublishedAt.After(cutoff) {
			fresh++
			continue
		}
		g := cutoff.Sub(art.PublishedAt)
		if gap == 0 || g < gap {
			gap = g
		}
	}
	return fresh, gap
}

// SortByRecency orders very-fresh articles (published within the last hour)
// before all older ones; within each tier, newest first.
func SortByRecency(articles []Article, now time.Time) {
	veryFresh := now.Add(-veryFreshWindow)
	sort.SliceStable(articles, func(i, j int) bool {
		fi := articles[i].PublishedAt.After(veryFresh)
		fj := articles[j].PublishedAt.After(veryFresh)
		if fi != fj {
			return fi
		}
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
