package quality

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/imhkr/hourlysignal/internal/ai"
	"github.com/imhkr/hourlysignal/internal/memory"
	"github.com/imhkr/hourlysignal/internal/news"
)

const logPrefix = "[quality]"

// AIOps is the slice of gateway operations the quality loop consumes.
type AIOps interface {
	Summarize(ctx context.Context, articles []news.Article, charBudget int) (string, error)
	Refine(ctx context.Context, summary, feedback string, articles []news.Article, recentFeedback []string) (string, error)
	Evaluate(ctx context.Context, summary string, articles []news.Article) ai.EvalResult
	RewriteForOriginality(ctx context.Context, text string, titles []string) (string, error)
	CheckVirality(ctx context.Context, text string) float64
	EnhanceForVirality(ctx context.Context, text string) (string, error)
}

// Summary is the per-category output of the quality loop.
type Summary struct {
	Category news.Category
	Text     string
	Sources  []string
	Articles []news.Article
}

// Config bounds every sub-stage of the loop.
type Config struct {
	// MaxRefineIters bounds the generate-score-refine cycle.
	MaxRefineIters int
	// CharBudget is the target summary length.
	CharBudget int
	// ViralThreshold is the score below which enhancement is attempted.
	ViralThreshold float64
	// EnhancedMin is the minimum post-enhancement score required to adopt
	// the enhanced text.
	EnhancedMin float64

	Originality OriginalityConfig
}

func DefaultConfig() Config {
	return Config{
		MaxRefineIters: 3,
		CharBudget:     200,
		ViralThreshold: 7,
		EnhancedMin:    6,
		Originality:    DefaultOriginalityConfig(),
	}
}

// Engine runs the bounded generate -> score -> refine -> originality cycle.
type Engine struct {
	ai  AIOps
	mem *memory.Log
	cfg Config

	now func() time.Time
}

func NewEngine(ops AIOps, mem *memory.Log, cfg Config) *Engine {
	return &Engine{ai: ops, mem: mem, cfg: cfg, now: time.Now}
}

// Produce turns fresh articles into an original, quality-checked summary.
// It degrades rather than fails: a dead gateway yields the lead title
// truncated to the character budget.
func (e *Engine) Produce(ctx context.Context, category news.Category, articles []news.Article) Summary {
	text, err := e.ai.Summarize(ctx, articles, e.cfg.CharBudget)
	if err != nil || strings.TrimSpace(text) == "" {
		text = truncate(articles[0].Title, e.cfg.CharBudget)
		log.Printf("%s summarize failed for category=%s, using lead title", logPrefix, category)
	}

	text = e.refineLoop(ctx, category, text, articles)
	text = e.EnsureOriginal(ctx, text, titlesOf(articles))

	return Summary{
		Category: category,
		Text:     text,
		Sources:  sourcesOf(articles),
		Articles: articles,
	}
}

// refineLoop iterates evaluate -> record -> refine until the evaluator
// passes or the iteration cap is hit. Failing evaluations are appended to
// the memory log before each refine so the refine prompt can surface recent
// feedback.
func (e *Engine) refineLoop(ctx context.Context, category news.Category, text string, articles []news.Article) string {
	var recent []string
	if e.mem != nil {
		recent = e.mem.RecentFeedback(category.String(), 3)
	}

	eval := e.ai.Evaluate(ctx, text, articles)
	for iter := 1; iter <= e.cfg.MaxRefineIters; iter++ {
		if eval.Passed {
			if iter > 1 {
				log.Printf("%s category=%s passed on iteration %d (score=%.1f)", logPrefix, category, iter, eval.Score)
			}
			return text
		}

		refined, err := e.ai.Refine(ctx, text, eval.Feedback, articles, recent)
		if err != nil || strings.TrimSpace(refined) == "" {
			log.Printf("%s refine failed for category=%s, keeping current text", logPrefix, category)
			return text
		}

		// One evaluation per refine: it supplies the memory delta and carries
		// over as the next iteration's verdict.
		next := e.ai.Evaluate(ctx, refined, articles)
		if e.mem != nil {
			e.mem.Append(memory.Entry{
				Timestamp: e.now(),
				Category:  category.String(),
				Original:  text,
				Feedback:  eval.Feedback,
				Refined:   refined,
				Delta:     next.Score - eval.Score,
			})
		}
		text, eval = refined, next
	}
	return text
}

// ImprovePost is the late-stage virality gate: it adopts the enhanced text
// only when the original scores below the viral threshold and enhancement
// materially improves it. Freshness and accuracy outrank engagement, so ties
// keep the original.
func (e *Engine) ImprovePost(ctx context.Context, text string) string {
	score := e.ai.CheckVirality(ctx, text)
	if score >= e.cfg.ViralThreshold {
		return text
	}

	enhanced, err := e.ai.EnhanceForVirality(ctx, text)
	if err != nil || strings.TrimSpace(enhanced) == "" {
		return text
	}
	if e.ai.CheckVirality(ctx, enhanced) >= e.cfg.EnhancedMin {
		log.Printf("%s adopted enhanced post (original score=%.1f)", logPrefix, score)
		return enhanced
	}
	return text
}

func titlesOf(articles []news.Article) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.Title)
	}
	return out
}

func sourcesOf(articles []news.Article) []string {
	seen := make(map[string]struct{}, len(articles))
	var out []string
	for _, a := range articles {
		s := strings.TrimSpace(a.Source)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func truncate(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max-1]) + "…"
}
