package news

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imhkr/hourlysignal/internal/rotate"
)

// GNewsClient fetches top headlines from the GNews JSON API through a
// rotating credential pool.
type GNewsClient struct {
	client  *rotate.Client
	baseURL string
}

const (
	gnewsDefaultBase = "https://gnews.io/api/v4"
	// GNewsMaxPerCall is the provider's hard per-request cap.
	GNewsMaxPerCall = 10
)

func NewGNewsClient(pool *rotate.Pool, httpClient *http.Client) *GNewsClient {
	return &GNewsClient{
		client:  rotate.NewClient(pool, httpClient, classifyGNews, "[gnews]"),
		baseURL: gnewsDefaultBase,
	}
}

func (c *GNewsClient) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

func (c *GNewsClient) Name() string { return "GNews" }

func classifyGNews(status int, body []byte) rotate.Verdict {
	switch status {
	case http.StatusOK:
		return rotate.VerdictOK
	case http.StatusTooManyRequests:
		if bytes.Contains(body, []byte("request limit")) || bytes.Contains(body, []byte("daily")) {
			return rotate.VerdictExhausted
		}
		return rotate.VerdictThrottled
	case http.StatusUnauthorized, http.StatusForbidden:
		return rotate.VerdictExhausted
	default:
		if status >= 500 {
			return rotate.VerdictThrottled
		}
		return rotate.VerdictFatal
	}
}

func gnewsTopic(c Category) string {
	switch c {
	case CategoryTech:
		return "technology"
	case CategoryWorld:
		return "world"
	case CategoryBusiness:
		return "business"
	case CategoryScience:
		return "science"
	case CategorySports:
		return "sports"
	case CategoryEntertainment:
		return "entertainment"
	default:
		return "breaking-news"
	}
}

type gnewsResponse struct {
	Articles []struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Content     string    `json:"content"`
		URL         string    `json:"url"`
		Image       string    `json:"image"`
		PublishedAt time.Time `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"source"`
	} `json:"articles"`
}

func (c *GNewsClient) FetchNews(ctx context.Context, category Category, limit int, queryOverride string) ([]Article, error) {
	if limit <= 0 || limit > GNewsMaxPerCall {
		limit = GNewsMaxPerCall
	}

	q := url.Values{}
	q.Set("max", fmt.Sprintf("%d", limit))
	q.Set("lang", "en")

	var path string
	if s := strings.TrimSpace(queryOverride); s != "" {
		path = "/search"
		q.Set("q", s)
	} else {
		path = "/top-headlines"
		q.Set("topic", gnewsTopic(category))
	}

	body, err := c.client.Do(ctx, rotate.Request{
		Build: func(ctx context.Context, key string) (*http.Request, error) {
			qq := url.Values{}
			for k, v := range q {
				qq[k] = v
			}
			qq.Set("apikey", key)
			return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+qq.Encode(), nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gnews fetch: %w", err)
	}

	var resp gnewsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("gnews decode: %w", err)
	}

	out := make([]Article, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		title := strings.TrimSpace(a.Title)
		if title == "" {
			continue
		}
		out = append(out, Article{
			Title:       title,
			Description: stripHTML(a.Description),
			Content:     stripHTML(a.Content),
			Source:      strings.TrimSpace(a.Source.Name),
			SourceURL:   strings.TrimSpace(a.Source.URL),
			URL:         strings.TrimSpace(a.URL),
			ImageURL:    strings.TrimSpace(a.Image),
			PublishedAt: a.PublishedAt,
			Category:    category,
		})
	}
	return out, nil
}
