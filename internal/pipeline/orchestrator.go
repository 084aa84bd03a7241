// Package pipeline runs one full publish cycle: remote config, news fetch,
// quality loop, composition, image and posting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/imhkr/hourlysignal/internal/config"
	"github.com/imhkr/hourlysignal/internal/news"
	"github.com/imhkr/hourlysignal/internal/quality"
)

const logPrefix = "[pipeline]"

var (
	// ErrRunInProgress rejects overlapping cycles; a slow run must never
	// stack a second one on top.
	ErrRunInProgress = errors.New("pipeline run already in progress")
	// ErrBotInactive reports that the remote config disabled posting.
	ErrBotInactive = errors.New("bot is inactive")
	// ErrUnsafeTopic reports that moderation rejected the custom topic.
	ErrUnsafeTopic = errors.New("custom topic failed moderation")
	// ErrDegeneratePost reports that generated content was filler and was
	// withheld instead of posted.
	ErrDegeneratePost = errors.New("generated content is degenerate")
	// ErrNothingToPost reports that no category produced any fresh articles.
	ErrNothingToPost = errors.New("no fresh articles in any category")
)

// minPostLen is the degenerate-output floor: anything shorter is filler.
const minPostLen = 20

// articlesPerCategory bounds how many articles feed each summary.
const articlesPerCategory = 5

// ConfigSource provides the per-cycle remote snapshot.
type ConfigSource interface {
	Fetch(ctx context.Context) config.Snapshot
}

// NewsSource provides fresh articles per category.
type NewsSource interface {
	FetchAll(ctx context.Context, categories []news.Category, limit int) map[news.Category][]news.Article
}

// ContentEngine is the quality loop.
type ContentEngine interface {
	Produce(ctx context.Context, category news.Category, articles []news.Article) quality.Summary
	ImprovePost(ctx context.Context, text string) string
}

// GatewayOps is the slice of AI operations the orchestrator itself calls.
type GatewayOps interface {
	GenerateHeadline(ctx context.Context, summaries map[string]string) string
	GenerateOpinion(ctx context.Context, summary string) (string, error)
	ModerateTopic(ctx context.Context, topic string) bool
	GenerateTopicPost(ctx context.Context, topic, displayName string) (string, error)
	GenerateImagePrompt(ctx context.Context, text string) string
}

// Poster publishes composed content.
type Poster interface {
	PostSingle(ctx context.Context, text string) (string, error)
	PostWithMedia(ctx context.Context, text, imagePath string) (string, error)
	PostThread(ctx context.Context, texts []string) ([]string, error)
	PostThreadWithMedia(ctx context.Context, texts []string, imagePath string) ([]string, error)
}

// ImageMaker returns a local image path or "" when generation failed.
type ImageMaker interface {
	Generate(ctx context.Context, prompt, categoryHint string) string
}

// PostCounter records successful publish cycles for the daily quota.
type PostCounter interface {
	IncrementPosts()
}

// RunReport is the outcome of one cycle.
type RunReport struct {
	Success  bool
	Mode     string
	TweetIDs []string
	Reason   string
}

// Deps collects everything one cycle needs. Images may be nil (text-only
// deployment); everything else is required.
type Deps struct {
	Config  ConfigSource
	News    NewsSource
	Content ContentEngine
	AI      GatewayOps
	Poster  Poster
	Images  ImageMaker
	Counter PostCounter
}

// Orchestrator runs publish cycles, at most one at a time.
type Orchestrator struct {
	deps   Deps
	dryRun bool

	mu      sync.Mutex
	running bool

	now func() time.Time
}

func NewOrchestrator(deps Deps, dryRun bool) *Orchestrator {
	return &Orchestrator{deps: deps, dryRun: dryRun, now: time.Now}
}

func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	return true
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

// Run executes one cycle. Overlapping calls are rejected, and a panic inside
// the cycle is contained so the scheduler loop survives it.
func (o *Orchestrator) Run(ctx context.Context) (report RunReport, err error) {
	if !o.begin() {
		return RunReport{Reason: "previous run still in progress"}, ErrRunInProgress
	}
	defer o.end()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("%s recovered from panic: %v", logPrefix, r)
			report = RunReport{Reason: fmt.Sprintf("panic: %v", r)}
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	start := o.now()
	snap := o.deps.Config.Fetch(ctx)
	if !snap.Active {
		log.Printf("%s bot inactive, skipping cycle", logPrefix)
		return RunReport{Reason: "inactive"}, ErrBotInactive
	}

	if snap.Mode == config.ModeTopic && strings.TrimSpace(snap.CustomTopic) != "" {
		report, err = o.runTopic(ctx, snap)
	} else {
		report, err = o.runNews(ctx, snap)
	}
	log.Printf("%s cycle finished in %s (success=%v, reason=%q)", logPrefix, o.now().Sub(start).Round(time.Millisecond), report.Success, report.Reason)
	return report, err
}

// runNews is the digest cycle: fetch every configured category, summarize
// whatever produced articles, and post the composed digest.
func (o *Orchestrator) runNews(ctx context.Context, snap config.Snapshot) (RunReport, error) {
	cats := parseCategories(snap.Categories)
	digest := o.deps.News.FetchAll(ctx, cats, articlesPerCategory)

	var summaries []quality.Summary
	for _, cat := range cats {
		articles := digest[cat]
		if len(articles) == 0 {
			log.Printf("%s category=%s produced no fresh articles, skipping", logPrefix, cat)
			continue
		}
		summaries = append(summaries, o.deps.Content.Produce(ctx, cat, articles))
	}
	if len(summaries) == 0 {
		return RunReport{Mode: config.ModeNews, Reason: "no fresh articles"}, ErrNothingToPost
	}

	lead, rest := splitLead(summaries)

	byName := make(map[string]string, len(summaries))
	for _, s := range summaries {
		byName[s.Category.DisplayName()] = s.Text
	}
	headline := o.deps.AI.GenerateHeadline(ctx, byName)

	opinion := strings.TrimSpace(snap.Opinion)
	if opinion == "" {
		if generated, err := o.deps.AI.GenerateOpinion(ctx, lead.Text); err == nil {
			opinion = generated
		}
	}

	// Improve the head post as it will actually appear, headline and tags
	// included, so the pass sees what readers see.
	post := composeDigest(snap, headline, lead.Text, rest, opinion)
	post.Bodies[0] = o.deps.Content.ImprovePost(ctx, post.Bodies[0])
	if isDegenerate(post.Bodies[0]) {
		return RunReport{Mode: config.ModeNews, Reason: "degenerate head post"}, ErrDegeneratePost
	}
	return o.publish(ctx, snap, post, config.ModeNews, lead.Category.String())
}

// runTopic is the custom-topic cycle: moderate, generate, improve, post.
func (o *Orchestrator) runTopic(ctx context.Context, snap config.Snapshot) (RunReport, error) {
	topic := strings.TrimSpace(snap.CustomTopic)
	if !o.deps.AI.ModerateTopic(ctx, topic) {
		log.Printf("%s topic %q rejected by moderation", logPrefix, topic)
		return RunReport{Mode: config.ModeTopic, Reason: "topic failed moderation"}, ErrUnsafeTopic
	}

	text, err := o.deps.AI.GenerateTopicPost(ctx, topic, snap.DisplayName)
	if err != nil {
		return RunReport{Mode: config.ModeTopic, Reason: "topic generation failed"}, fmt.Errorf("topic post: %w", err)
	}
	text = o.deps.Content.ImprovePost(ctx, text)
	if isDegenerate(text) {
		return RunReport{Mode: config.ModeTopic, Reason: "degenerate topic post"}, ErrDegeneratePost
	}

	post := composeTopic(text, BuildHashtags(snap.Hashtags, topic))
	return o.publish(ctx, snap, post, config.ModeTopic, topic)
}

// publish posts the composed content, attaching an image when one can be
// generated. Image failure is never fatal: the post goes out text-only.
func (o *Orchestrator) publish(ctx context.Context, snap config.Snapshot, post ComposedPost, mode, imageHint string) (RunReport, error) {
	log.Printf("%s publishing headline=%q (%d chars over %d bodies)", logPrefix, post.Headline, post.CharCount(), len(post.Bodies))
	if o.dryRun {
		for i, body := range post.Bodies {
			log.Printf("%s dry-run post %d/%d:\n%s", logPrefix, i+1, len(post.Bodies), body)
		}
		return RunReport{Success: true, Mode: mode, Reason: "dry run"}, nil
	}

	imagePath := ""
	if o.deps.Images != nil {
		prompt := o.deps.AI.GenerateImagePrompt(ctx, post.Bodies[0])
		imagePath = o.deps.Images.Generate(ctx, prompt, imageHint)
	}

	var (
		ids []string
		err error
	)
	switch {
	case post.IsThread() && imagePath != "":
		ids, err = o.deps.Poster.PostThreadWithMedia(ctx, post.Bodies, imagePath)
	case post.IsThread():
		ids, err = o.deps.Poster.PostThread(ctx, post.Bodies)
	case imagePath != "":
		var id string
		id, err = o.deps.Poster.PostWithMedia(ctx, post.Bodies[0], imagePath)
		if err != nil {
			// Media posting can fail where plain text succeeds; retry once
			// without the image before giving up.
			log.Printf("%s media post failed (%v), retrying text-only", logPrefix, err)
			id, err = o.deps.Poster.PostSingle(ctx, post.Bodies[0])
		}
		if id != "" {
			ids = []string{id}
		}
	default:
		var id string
		id, err = o.deps.Poster.PostSingle(ctx, post.Bodies[0])
		if id != "" {
			ids = []string{id}
		}
	}

	if len(ids) == 0 && err != nil {
		return RunReport{Mode: mode, TweetIDs: ids, Reason: "posting failed"}, fmt.Errorf("post: %w", err)
	}

	if o.deps.Counter != nil {
		o.deps.Counter.IncrementPosts()
	}
	report := RunReport{Success: true, Mode: mode, TweetIDs: ids}
	if err != nil {
		// A partial thread still counts as a post for quota purposes.
		report.Reason = "partial thread"
		log.Printf("%s thread partially posted (%d/%d): %v", logPrefix, len(ids), len(post.Bodies), err)
	}
	log.Printf("%s posted %d item(s), ids=%v", logPrefix, len(ids), ids)
	return report, nil
}

// splitLead picks the longest summary as the head post and returns the rest
// in their original order.
func splitLead(summaries []quality.Summary) (quality.Summary, []quality.Summary) {
	leadIdx := 0
	for i, s := range summaries {
		if len(s.Text) > len(summaries[leadIdx].Text) {
			leadIdx = i
		}
	}
	rest := make([]quality.Summary, 0, len(summaries)-1)
	for i, s := range summaries {
		if i != leadIdx {
			rest = append(rest, s)
		}
	}
	return summaries[leadIdx], rest
}

// parseCategories maps remote config names onto the closed category set,
// dropping duplicates and unknown names.
func parseCategories(names []string) []news.Category {
	seen := make(map[news.Category]struct{}, len(names))
	var out []news.Category
	for _, name := range names {
		cat := news.ParseCategory(name)
		if cat == news.CategoryCustom {
			log.Printf("%s unknown category %q in remote config, skipping", logPrefix, name)
			continue
		}
		if _, dup := seen[cat]; dup {
			continue
		}
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	if len(out) == 0 {
		out = []news.Category{news.CategoryTech}
	}
	return out
}

// isDegenerate catches filler the models emit when they have nothing to say.
func isDegenerate(text string) bool {
	t := strings.TrimSpace(text)
	if len([]rune(t)) < minPostLen {
		return true
	}
	return strings.Contains(strings.ToLower(t), "no major updates")
}
