package quality

import (
	"context"
	"log"
	"strings"
	"unicode"
)

// OriginalityConfig holds the similarity heuristics. The defaults were tuned
// empirically; they are fields rather than constants so deployments can
// adjust them.
type OriginalityConfig struct {
	// PhraseLen is the length of a verbatim word run that marks a candidate
	// as too similar to a source title.
	PhraseLen int
	// OverlapRatio is the significant-word overlap share that trips the
	// second test.
	OverlapRatio float64
	// MinSignificantWords gates the overlap test: titles with fewer
	// significant words are too short to judge.
	MinSignificantWords int
	// MaxRewriteAttempts bounds gateway rewrites before the templated
	// fallback is used.
	MaxRewriteAttempts int
}

func DefaultOriginalityConfig() OriginalityConfig {
	return OriginalityConfig{
		PhraseLen:           5,
		OverlapRatio:        0.5,
		MinSignificantWords: 5,
		MaxRewriteAttempts:  2,
	}
}

// stopwords are common or domain words excluded from the significant-word
// overlap test.
var stopwords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "been": {},
	"will": {}, "after": {}, "over": {}, "into": {}, "amid": {}, "says": {},
	"said": {}, "news": {}, "report": {}, "reports": {}, "update": {},
	"updates": {}, "today": {}, "breaking": {}, "latest": {}, "more": {},
	"than": {}, "about": {}, "their": {}, "they": {}, "were": {}, "your": {},
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func significantWords(s string) []string {
	var out []string
	for _, w := range words(s) {
		if len(w) <= 3 {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		out = append(out, w)
	}
	return out
}

// hasVerbatimPhrase reports whether any run of n consecutive words from the
// title appears verbatim in the candidate.
func hasVerbatimPhrase(candidate, title string, n int) bool {
	tw := words(title)
	if len(tw) < n {
		return false
	}
	cand := " " + strings.Join(words(candidate), " ") + " "
	for i := 0; i+n <= len(tw); i++ {
		phrase := " " + strings.Join(tw[i:i+n], " ") + " "
		if strings.Contains(cand, phrase) {
			return true
		}
	}
	return false
}

// hasWordOverlap reports whether more than ratio of the candidate's
// significant words appear in the title, for titles with enough significant
// words to judge.
func hasWordOverlap(candidate, title string, ratio float64, minSig int) bool {
	tw := significantWords(title)
	if len(tw) <= minSig {
		return false
	}
	titleSet := make(map[string]struct{}, len(tw))
	for _, w := range tw {
		titleSet[w] = struct{}{}
	}

	cw := significantWords(candidate)
	if len(cw) == 0 {
		return false
	}
	matched := 0
	for _, w := range cw {
		if _, ok := titleSet[w]; ok {
			matched++
		}
	}
	return float64(matched)/float64(len(cw)) > ratio
}

// TooSimilar runs both overlap tests against every source title.
func TooSimilar(candidate string, titles []string, cfg OriginalityConfig) bool {
	for _, title := range titles {
		if hasVerbatimPhrase(candidate, title, cfg.PhraseLen) {
			return true
		}
		if hasWordOverlap(candidate, title, cfg.OverlapRatio, cfg.MinSignificantWords) {
			return true
		}
	}
	return false
}

// ExtractKeyword pulls the first capitalized word or number from a title for
// the templated originality fallback.
func ExtractKeyword(title string) string {
	for _, w := range strings.Fields(title) {
		trimmed := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if trimmed == "" {
			continue
		}
		r := []rune(trimmed)
		if unicode.IsUpper(r[0]) || unicode.IsNumber(r[0]) {
			return trimmed
		}
	}
	return "This story"
}

// FallbackSentence synthesizes a safe templated sentence from a source title
// keyword, used when every rewrite attempt stayed too similar.
func FallbackSentence(title string) string {
	return ExtractKeyword(title) + " is in the headlines as the story develops."
}

// EnsureOriginal returns text guaranteed to pass the similarity tests,
// rewriting through the gateway up to the attempt cap and falling back to a
// templated sentence rather than posting a near-duplicate.
func (e *Engine) EnsureOriginal(ctx context.Context, text string, titles []string) string {
	if !TooSimilar(text, titles, e.cfg.Originality) {
		return text
	}

	current := text
	for attempt := 1; attempt <= e.cfg.Originality.MaxRewriteAttempts; attempt++ {
		rewritten, err := e.ai.RewriteForOriginality(ctx, current, titles)
		if err != nil {
			log.Printf("%s originality rewrite attempt %d failed: %v", logPrefix, attempt, err)
			break
		}
		if rewritten != "" && !TooSimilar(rewritten, titles, e.cfg.Originality) {
			return rewritten
		}
		current = rewritten
	}

	if len(titles) == 0 {
		return text
	}
	fallback := FallbackSentence(titles[0])
	log.Printf("%s rewrites stayed too similar, using templated fallback", logPrefix)
	return fallback
}
