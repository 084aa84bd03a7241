package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Provider is one LLM backend behind the gateway.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

const (
	DefaultRequestTimeout    = 60 * time.Second
	DefaultHTTPClientTimeout = 60 * time.Second
	defaultSDKMaxRetries     = 2
)

// ProviderConfig configures one OpenAI-compatible chat-completions endpoint.
type ProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string

	// MinInterval is the self-imposed delay between consecutive calls,
	// independent of the gateway's circuit breaker.
	MinInterval time.Duration
}

// OpenAIProvider calls any OpenAI-compatible chat-completions endpoint and
// rate-limits itself to one request per MinInterval.
type OpenAIProvider struct {
	cfg        ProviderConfig
	httpClient *http.Client

	mu       sync.Mutex
	lastCall time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

func NewOpenAIProvider(cfg ProviderConfig, httpClient *http.Client) *OpenAIProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPClientTimeout}
	}
	return &OpenAIProvider{
		cfg:        cfg,
		httpClient: httpClient,
		now:        time.Now,
		sleep:      sleepWithContext,
	}
}

func (p *OpenAIProvider) Name() string { return p.cfg.Name }

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return "", fmt.Errorf("%s: api key is required", p.cfg.Name)
	}
	if err := p.waitMinInterval(ctx); err != nil {
		return "", err
	}

	client := openaigo.NewClient(
		option.WithBaseURL(strings.TrimRight(strings.TrimSpace(p.cfg.BaseURL), "/")),
		option.WithAPIKey(strings.TrimSpace(p.cfg.APIKey)),
		option.WithHTTPClient(p.httpClient),
		option.WithMaxRetries(defaultSDKMaxRetries),
		option.WithRequestTimeout(DefaultRequestTimeout),
	)

	resp, err := client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model:    openaigo.ChatModel(strings.TrimSpace(p.cfg.Model)),
		Messages: []openaigo.ChatCompletionMessageParamUnion{openaigo.UserMessage(prompt)},
	})
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices", p.cfg.Name)
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("%s: empty completion", p.cfg.Name)
	}
	return out, nil
}

// waitMinInterval enforces the per-provider minimum spacing between calls.
func (p *OpenAIProvider) waitMinInterval(ctx context.Context) error {
	p.mu.Lock()
	wait := time.Duration(0)
	if p.cfg.MinInterval > 0 && !p.lastCall.IsZero() {
		if since := p.now().Sub(p.lastCall); since < p.cfg.MinInterval {
			wait = p.cfg.MinInterval - since
		}
	}
	p.lastCall = p.now().Add(wait)
	p.mu.Unlock()

	if wait > 0 && !p.sleep(ctx, wait) {
		return ctx.Err()
	}
	return nil
}

// IsRateLimitErr reports whether the provider error looks like throttling.
func IsRateLimitErr(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openaigo.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
