package ai

import (
	"regexp"
	"strings"
)

var (
	labelPrefix = regexp.MustCompile(`(?i)^(summary|headline|tweet|post|opinion|answer|query|rewrite|output)\s*[:\-]\s*`)
	emphasis    = regexp.MustCompile(`(\*\*|__|\*|_)`)
	whitespace  = regexp.MustCompile(`\s+`)
	codeFence   = regexp.MustCompile("(?s)```[a-zA-Z]*\n?(.*?)```")
)

// strippedEmoji is the fixed set removed from model output; category emoji
// are added back deliberately at composition time.
var strippedEmoji = strings.NewReplacer(
	"\U0001F525", "", // fire
	"\U0001F680", "", // rocket
	"\U0001F4A5", "", // collision
	"\U0001F6A8", "", // rotating light
	"\U0001F4E2", "", // loudspeaker
	"\U0001F4F0", "", // newspaper
	"⚡", "", // high voltage
	"❗", "", // exclamation
)

// CleanResponse applies the deterministic text-cleaning step every helper
// operation runs before returning model output.
func CleanResponse(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	// Wrapping quotes, straight or curly.
	for _, pair := range [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}} {
		if strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) && len(s) > len(pair[0])+len(pair[1]) {
			s = strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}

	s = labelPrefix.ReplaceAllString(s, "")
	s = emphasis.ReplaceAllString(s, "")
	s = strippedEmoji.Replace(s)
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// FirstJSONObject extracts the first balanced JSON object from free-form
// model output, or "" when there is none.
func FirstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
