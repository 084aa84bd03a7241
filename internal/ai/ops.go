package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/imhkr/hourlysignal/internal/news"
)

// Documented defaults applied when structured model output cannot be parsed.
// The loop must never deadlock on a malformed response, so parsing failures
// resolve optimistically.
const (
	DefaultEvalScore  = 7.0
	DefaultEvalPassed = true
	DefaultViralScore = 7.0
)

// EvalResult is one iteration's verdict from the evaluator.
type EvalResult struct {
	Passed   bool
	Score    float64
	Feedback string
}

func formatArticles(articles []news.Article, max int) string {
	var b strings.Builder
	for i, a := range articles {
		if i >= max {
			break
		}
		fmt.Fprintf(&b, "%d. %s", i+1, a.Title)
		if d := strings.TrimSpace(a.Description); d != "" {
			fmt.Fprintf(&b, " — %s", d)
		}
		if a.Source != "" {
			fmt.Fprintf(&b, " (%s)", a.Source)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Summarize asks for a single-sentence summary within the character budget.
// It returns an error only when every provider is down, so the quality loop
// can apply its own title-based fallback.
func (g *Gateway) Summarize(ctx context.Context, articles []news.Article, charBudget int) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize the following news items into ONE engaging sentence of at most %d characters. "+
			"Plain text only, no hashtags, no emoji.\n\n%s",
		charBudget, formatArticles(articles, 5),
	)
	out, err := g.tryGenerate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return CleanResponse(out), nil
}

// Refine rewrites a summary that failed evaluation, steering with the
// evaluator's feedback and any recent feedback context.
func (g *Gateway) Refine(ctx context.Context, summary, feedback string, articles []news.Article, recentFeedback []string) (string, error) {
	var memo string
	if len(recentFeedback) > 0 {
		memo = "Recent feedback on similar summaries:\n- " + strings.Join(recentFeedback, "\n- ") + "\n\n"
	}
	prompt := fmt.Sprintf(
		"Improve this news summary. Keep it a single sentence, plain text.\n\n"+
			"Current summary: %s\n\nEvaluator feedback: %s\n\n%sSource items:\n%s",
		summary, feedback, memo, formatArticles(articles, 5),
	)
	out, err := g.tryGenerate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return CleanResponse(out), nil
}

// Evaluate scores a candidate summary 0-10 against its sources. Never fails:
// unparseable output yields the documented optimistic default.
func (g *Gateway) Evaluate(ctx context.Context, summary string, articles []news.Article) EvalResult {
	prompt := fmt.Sprintf(
		"Evaluate this news summary against its sources. Score accuracy, clarity and interest 0-10. "+
			`Reply with JSON only: {"score": <number>, "feedback": "<one sentence>"}`+
			"\n\nSummary: %s\n\nSources:\n%s",
		summary, formatArticles(articles, 5),
	)
	raw := g.Generate(ctx, prompt)

	obj := FirstJSONObject(raw)
	if obj == "" || !gjson.Valid(obj) {
		return EvalResult{Passed: DefaultEvalPassed, Score: DefaultEvalScore, Feedback: "unparseable evaluator output"}
	}
	score := gjson.Get(obj, "score")
	if !score.Exists() {
		return EvalResult{Passed: DefaultEvalPassed, Score: DefaultEvalScore, Feedback: "unparseable evaluator output"}
	}
	return EvalResult{
		Passed:   score.Float() >= EvalPassThreshold,
		Score:    score.Float(),
		Feedback: gjson.Get(obj, "feedback").String(),
	}
}

// EvalPassThreshold is the passing score for the refine loop.
const EvalPassThreshold = 7.0

// RewriteForOriginality rewrites text that overlaps its source titles too
// closely.
func (g *Gateway) RewriteForOriginality(ctx context.Context, text string, titles []string) (string, error) {
	prompt := fmt.Sprintf(
		"Rewrite this sentence with completely different wording while keeping the facts. "+
			"Do not reuse phrases from the original headlines.\n\nSentence: %s\n\nHeadlines:\n- %s",
		text, strings.Join(titles, "\n- "),
	)
	out, err := g.tryGenerate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return CleanResponse(out), nil
}

// GenerateHeadline produces a short cross-category headline.
func (g *Gateway) GenerateHeadline(ctx context.Context, summaries map[string]string) string {
	var b strings.Builder
	for cat, s := range summaries {
		fmt.Fprintf(&b, "%s: %s\n", cat, s)
	}
	prompt := fmt.Sprintf(
		"Write a punchy headline (max 60 characters, plain text, no quotes) covering these stories:\n\n%s",
		b.String(),
	)
	return CleanResponse(g.Generate(ctx, prompt))
}

// CheckVirality scores engagement potential 0-10. Parsing failure yields the
// documented default so the virality gate can always decide.
func (g *Gateway) CheckVirality(ctx context.Context, text string) float64 {
	prompt := fmt.Sprintf(
		`Rate this social post's engagement potential. Evaluate hook, clarity and shareability, then reply with JSON only: {"score": <0-10>}`+
			"\n\nPost: %s", text,
	)
	raw := g.Generate(ctx, prompt)
	obj := FirstJSONObject(raw)
	if obj == "" || !gjson.Valid(obj) {
		return DefaultViralScore
	}
	score := gjson.Get(obj, "score")
	if !score.Exists() {
		return DefaultViralScore
	}
	return score.Float()
}

// EnhanceForVirality rewrites a post for engagement without changing facts.
func (g *Gateway) EnhanceForVirality(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(
		"Rewrite this social post to be more engaging. Keep every fact, keep it under 250 characters, plain text.\n\nPost: %s",
		text,
	)
	out, err := g.tryGenerate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return CleanResponse(out), nil
}

// ModerateTopic reports whether a custom topic is safe to post about.
// Unparseable output defaults to safe; the degenerate-output guard further
// down the pipeline still applies.
func (g *Gateway) ModerateTopic(ctx context.Context, topic string) bool {
	prompt := fmt.Sprintf(
		"Moderate this topic for a public news account. Reply with exactly SAFE or UNSAFE (safe or unsafe content for a general audience).\n\nTopic: %s",
		topic,
	)
	out := strings.ToUpper(CleanResponse(g.Generate(ctx, prompt)))
	return !strings.Contains(out, "UNSAFE")
}

// GenerateTopicPost writes a post about a custom topic.
func (g *Gateway) GenerateTopicPost(ctx context.Context, topic, displayName string) (string, error) {
	prompt := fmt.Sprintf(
		"Write an informative, engaging social post (max 220 characters, plain text, no hashtags) about: %s. "+
			"Publisher voice: %s.",
		topic, displayName,
	)
	out, err := g.tryGenerate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return CleanResponse(out), nil
}

// GenerateSearchQuery turns a category or topic into a sharper provider
// search query.
func (g *Gateway) GenerateSearchQuery(ctx context.Context, topic string) (string, error) {
	prompt := fmt.Sprintf(
		"Produce one short news search query (2-4 words, plain text, no quotes) for the most newsworthy current angle on: %s",
		topic,
	)
	out, err := g.tryGenerate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return CleanResponse(out), nil
}

// GenerateImagePrompt turns post text into an image-generation prompt.
func (g *Gateway) GenerateImagePrompt(ctx context.Context, text string) string {
	prompt := fmt.Sprintf(
		"Write a short image prompt (one sentence) for an illustration matching this post. No text in the image.\n\nPost: %s",
		text,
	)
	return CleanResponse(g.Generate(ctx, prompt))
}

// GenerateOpinion produces a one-line editorial take on the lead summary.
func (g *Gateway) GenerateOpinion(ctx context.Context, summary string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a one-line opinion (max 80 characters, plain text, first person plural) reacting to: %s",
		summary,
	)
	out, err := g.tryGenerate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return CleanResponse(out), nil
}
