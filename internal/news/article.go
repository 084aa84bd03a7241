package news

import (
	"regexp"
	"strings"
	"time"
)

// Article is the canonical shape every provider adapter maps onto. Immutable
// once constructed.
type Article struct {
	Title       string
	Description string
	Content     string
	Source      string
	SourceURL   string
	URL         string
	ImageURL    string
	PublishedAt time.Time
	Category    Category
}

const (
	// MinTitleLen drops junk items whose raw title is too short to be a story.
	MinTitleLen = 10
	// normalizedTitleLen bounds the dedupe key.
	normalizedTitleLen = 50
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9 ]+`)
var multiSpace = regexp.MustCompile(`\s+`)

// NormalizeTitle produces the dedupe key: lowercase, alphanumerics and
// spaces only, collapsed whitespace, first 50 characters.
func NormalizeTitle(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonAlnum.ReplaceAllString(s, "")
	s = strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
	if len(s) > normalizedTitleLen {
		s = s[:normalizedTitleLen]
	}
	return s
}
