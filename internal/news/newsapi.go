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

// NewsAPIClient fetches top headlines from the NewsAPI-compatible JSON API
// through a rotating credential pool.
type NewsAPIClient struct {
	client  *rotate.Client
	baseURL string
}

const (
	newsAPIDefaultBase = "https://newsapi.org/v2"
	// NewsAPIMaxPageSize is the provider-side per-call maximum we respect.
	NewsAPIMaxPageSize = 50
)

func NewNewsAPIClient(pool *rotate.Pool, httpClient *http.Client) *NewsAPIClient {
	return &NewsAPIClient{
		client:  rotate.NewClient(pool, httpClient, classifyNewsAPI, "[newsapi]"),
		baseURL: newsAPIDefaultBase,
	}
}

// SetBaseURL points the adapter at a test server.
func (c *NewsAPIClient) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

func (c *NewsAPIClient) Name() string { return "NewsAPI" }

func classifyNewsAPI(status int, body []byte) rotate.Verdict {
	switch status {
	case http.StatusOK:
		return rotate.VerdictOK
	case http.StatusTooManyRequests:
		// NewsAPI uses 429 both for burst throttling and for the daily cap;
		// the body code disambiguates.
		if bytes.Contains(body, []byte("rateLimited")) || bytes.Contains(body, []byte("maximumResultsReached")) {
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

// newsAPICategory maps the closed category set onto provider query params.
func newsAPICategory(c Category) string {
	switch c {
	case CategoryTech:
		return "technology"
	case CategoryWorld:
		return "general"
	case CategoryBusiness:
		return "business"
	case CategoryScience:
		return "science"
	case CategorySports:
		return "sports"
	case CategoryEntertainment:
		return "entertainment"
	default:
		return "general"
	}
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Content     string    `json:"content"`
		URL         string    `json:"url"`
		URLToImage  string    `json:"urlToImage"`
		PublishedAt time.Time `json:"publishedAt"`
	} `json:"articles"`
}

// FetchNews queries top headlines for the category. A non-empty
// queryOverride switches to a keyword search instead of the category rule.
func (c *NewsAPIClient) FetchNews(ctx context.Context, category Category, limit int, queryOverride string) ([]Article, error) {
	if limit <= 0 || limit > NewsAPIMaxPageSize {
		limit = NewsAPIMaxPageSize
	}

	q := url.Values{}
	q.Set("pageSize", fmt.Sprintf("%d", limit))
	q.Set("language", "en")
	if s := strings.TrimSpace(queryOverride); s != "" {
		q.Set("q", s)
	} else {
		q.Set("category", newsAPICategory(category))
	}
	endpoint := c.baseURL + "/top-headlines?" + q.Encode()

	body, err := c.client.Do(ctx, rotate.Request{
		Build: func(ctx context.Context, key string) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("X-Api-Key", key)
			return req, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("newsapi fetch: %w", err)
	}

	var resp newsAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("newsapi decode: %w", err)
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
			URL:         strings.TrimSpace(a.URL),
			ImageURL:    strings.TrimSpace(a.URLToImage),
			PublishedAt: a.PublishedAt,
			Category:    category,
		})
	}
	return out, nil
}
