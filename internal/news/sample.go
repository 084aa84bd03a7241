package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// HeadlineSampler pulls a small headline sample from a keyless RSS surface.
// The scheduler uses it for urgency assessment so the sample never burns
// keyed-provider quota.
type HeadlineSampler struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	baseURL    string
}

const googleNewsRSSBase = "https://news.google.com/rss/headlines/section/topic"

func NewHeadlineSampler(httpClient *http.Client) *HeadlineSampler {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HeadlineSampler{
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		baseURL:    googleNewsRSSBase,
	}
}

func (s *HeadlineSampler) SetBaseURL(u string) { s.baseURL = strings.TrimRight(u, "/") }

func rssTopic(c Category) string {
	switch c {
	case CategoryTech:
		return "TECHNOLOGY"
	case CategoryWorld:
		return "WORLD"
	case CategoryBusiness:
		return "BUSINESS"
	case CategoryScience:
		return "SCIENCE"
	case CategorySports:
		return "SPORTS"
	case CategoryEntertainment:
		return "ENTERTAINMENT"
	default:
		return "WORLD"
	}
}

// Sample returns up to n current headlines for the category. Best-effort:
// any failure returns an empty slice and the error for the caller to log.
func (s *HeadlineSampler) Sample(ctx context.Context, category Category, n int) ([]string, error) {
	if n <= 0 {
		n = 5
	}
	feedURL := fmt.Sprintf("%s/%s?hl=en-US&gl=US&ceid=US:en", s.baseURL, rssTopic(category))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("headline sample status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, err
	}
	feed, err := s.parser.ParseString(string(body))
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, n)
	for _, item := range feed.Items {
		title := stripHTML(item.Title)
		if title == "" {
			continue
		}
		out = append(out, title)
		if len(out) >= n {
			break
		}
	}
	return out, nil
}
