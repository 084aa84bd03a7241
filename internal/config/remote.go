package config

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Snapshot is the per-cycle remote configuration. It is refetched on every
// pipeline run; there is deliberately no TTL cache.
type Snapshot struct {
	Active          bool
	Mode            string // ModeNews or ModeTopic
	Categories      []string
	DisplayName     string
	Emoji           string
	Hashtags        []string
	IntervalMinutes int
	MaxDailyPosts   int
	CustomTopic     string
	Opinion         string
}

const (
	ModeNews  = "news"
	ModeTopic = "topic"
)

// DefaultHashtags is the hardcoded hashtag set. When the remote document
// carries exactly these, topic mode derives hashtags from the topic instead.
var DefaultHashtags = []string{"#News", "#AI"}

// DefaultSnapshot is used when the remote document has never been fetched
// successfully.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Active:          true,
		Mode:            ModeNews,
		Categories:      []string{"tech"},
		DisplayName:     "Hourly Signal",
		Emoji:           "\U0001F4E1",
		Hashtags:        append([]string(nil), DefaultHashtags...),
		IntervalMinutes: 60,
		MaxDailyPosts:   24,
	}
}

// RemoteFetcher fetches the two-column remote config document and falls back
// to the last known good snapshot (or hardcoded defaults) when the document
// is unreachable or malformed.
type RemoteFetcher struct {
	url        string
	httpClient *http.Client

	mu       sync.Mutex
	lastGood *Snapshot
}

func NewRemoteFetcher(url string, httpClient *http.Client) *RemoteFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &RemoteFetcher{url: url, httpClient: httpClient}
}

// Fetch never fails: any error path degrades to last-known-good or defaults.
func (f *RemoteFetcher) Fetch(ctx context.Context) Snapshot {
	if strings.TrimSpace(f.url) == "" {
		return f.fallback("no remote config url configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return f.fallback(fmt.Sprintf("bad request: %v", err))
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return f.fallback(fmt.Sprintf("fetch failed: %v", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return f.fallback(fmt.Sprintf("fetch failed: status=%d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return f.fallback(fmt.Sprintf("read failed: %v", err))
	}

	snap := ParseSnapshot(string(body))
	f.mu.Lock()
	f.lastGood = &snap
	f.mu.Unlock()
	return snap
}

func (f *RemoteFetcher) fallback(reason string) Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastGood != nil {
		log.Printf("%s remote config unavailable (%s), using last known good", logPrefix, reason)
		return *f.lastGood
	}
	log.Printf("%s remote config unavailable (%s), using defaults", logPrefix, reason)
	return DefaultSnapshot()
}

// ParseSnapshot parses the key/value document. Each non-empty line holds a
// key and a value separated by a tab or the first comma. Unknown keys are
// ignored; missing keys keep their defaults.
func ParseSnapshot(doc string) Snapshot {
	snap := DefaultSnapshot()

	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var key, value string
		if i := strings.IndexByte(line, '\t'); i >= 0 {
			key, value = line[:i], line[i+1:]
		} else if i := strings.IndexByte(line, ','); i >= 0 {
			key, value = line[:i], line[i+1:]
		} else {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "isactive", "active":
			snap.Active = parseBool(value, snap.Active)
		case "mode":
			if v := strings.ToLower(value); v == ModeTopic || v == ModeNews {
				snap.Mode = v
			}
		case "categories", "category":
			if cats := splitList(value); len(cats) > 0 {
				snap.Categories = cats
			}
		case "displayname":
			if value != "" {
				snap.DisplayName = value
			}
		case "emoji":
			if value != "" {
				snap.Emoji = value
			}
		case "hashtags":
			if tags := splitList(value); len(tags) > 0 {
				snap.Hashtags = tags
			}
		case "intervalminutes", "interval":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				snap.IntervalMinutes = n
			}
		case "maxdailyposts", "maxposts":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				snap.MaxDailyPosts = n
			}
		case "customtopic", "topic":
			snap.CustomTopic = value
		case "opinion", "useropinion":
			snap.Opinion = value
		}
	}
	return snap
}

func parseBool(v string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return fallback
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool {
		return r == '|' || r == ';'
	}) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
