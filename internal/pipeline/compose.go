package pipeline

import (
	"fmt"
	"strings"

	"github.com/imhkr/hourlysignal/internal/config"
	"github.com/imhkr/hourlysignal/internal/quality"
)

// ComposedPost is the assembled digest ready for posting: the first body is
// the head post, the rest become replies in a thread.
type ComposedPost struct {
	Headline string
	Bodies   []string
}

// IsThread reports whether posting requires reply chaining.
func (p ComposedPost) IsThread() bool { return len(p.Bodies) > 1 }

// CharCount is the total character count over all bodies.
func (p ComposedPost) CharCount() int {
	n := 0
	for _, b := range p.Bodies {
		n += len([]rune(b))
	}
	return n
}

// composeDigest lays out the multi-category digest. The lead summary rides in
// the head post under the headline; the remaining categories and an optional
// opinion line become replies.
func composeDigest(snap config.Snapshot, headline, lead string, rest []quality.Summary, opinion string) ComposedPost {
	head := strings.TrimSpace(snap.Emoji + " " + headline)
	body := head + "\n\n" + lead
	if tags := tagLine(capTags(snap.Hashtags)); tags != "" {
		body += "\n\n" + tags
	}

	bodies := []string{body}
	for _, s := range rest {
		line := fmt.Sprintf("%s: %s", s.Category.DisplayName(), s.Text)
		if len(s.Sources) > 0 {
			line += "\n\nvia " + strings.Join(s.Sources, ", ")
		}
		bodies = append(bodies, line)
	}
	if o := strings.TrimSpace(opinion); o != "" {
		bodies = append(bodies, "\U0001F4AD "+o)
	}

	return ComposedPost{Headline: headline, Bodies: bodies}
}

// composeTopic lays out the single topic-mode post.
func composeTopic(text string, tags []string) ComposedPost {
	body := strings.TrimSpace(text)
	if t := tagLine(tags); t != "" {
		body += "\n\n" + t
	}
	return ComposedPost{Bodies: []string{body}}
}
