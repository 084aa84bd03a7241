package pipeline

import (
	"strings"
	"unicode"

	"github.com/imhkr/hourlysignal/internal/config"
)

// MaxHashtags caps the tag line on any post.
const MaxHashtags = 4

// BuildHashtags chooses the tag set for a topic post. Operator-chosen remote
// tags win; when the remote document still carries the hardcoded defaults the
// tags are derived from the topic itself instead.
func BuildHashtags(remote []string, topic string) []string {
	if len(remote) > 0 && !isDefaultTags(remote) {
		return capTags(remote)
	}
	if derived := DeriveHashtags(topic); len(derived) > 0 {
		return derived
	}
	return capTags(remote)
}

// DeriveHashtags turns the topic's significant words into CamelCase tags.
func DeriveHashtags(topic string) []string {
	var out []string
	for _, word := range strings.FieldsFunc(topic, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(word)) <= 3 {
			continue
		}
		r := []rune(strings.ToLower(word))
		r[0] = unicode.ToUpper(r[0])
		out = append(out, "#"+string(r))
		if len(out) >= MaxHashtags {
			break
		}
	}
	return out
}

func isDefaultTags(tags []string) bool {
	if len(tags) != len(config.DefaultHashtags) {
		return false
	}
	for i, t := range tags {
		if !strings.EqualFold(strings.TrimSpace(t), config.DefaultHashtags[i]) {
			return false
		}
	}
	return true
}

func capTags(tags []string) []string {
	out := make([]string, 0, MaxHashtags)
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		out = append(out, t)
		if len(out) >= MaxHashtags {
			break
		}
	}
	return out
}

func tagLine(tags []string) string {
	return strings.Join(tags, " ")
}
