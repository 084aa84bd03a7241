package rotate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Verdict classifies a provider response for rotation purposes.
type Verdict int

const (
	// VerdictOK means the response is usable.
	VerdictOK Verdict = iota
	// VerdictThrottled means a transient throttle: wait and retry the same key.
	VerdictThrottled
	// VerdictExhausted means the key hit a hard quota or auth limit: mark it
	// dead for the cycle and rotate to the next key.
	VerdictExhausted
	// VerdictFatal means the request itself is broken; rotating will not help.
	VerdictFatal
)

// Classifier maps a provider-specific response onto a Verdict.
type Classifier func(status int, body []byte) Verdict

const (
	DefaultThrottleWait    = 2 * time.Second
	DefaultThrottleRetries = 3
	maxResponseBytes       = 5 * 1024 * 1024
)

// Client issues HTTP calls against a quota-limited API, rotating through a
// credential pool on exhaustion and retrying the same credential on
// transient throttling.
type Client struct {
	pool       *Pool
	httpClient *http.Client
	classify   Classifier
	logPrefix  string

	throttleWait    time.Duration
	throttleRetries int

	sleep func(ctx context.Context, d time.Duration) bool
}

func NewClient(pool *Pool, httpClient *http.Client, classify Classifier, logPrefix string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		pool:            pool,
		httpClient:      httpClient,
		classify:        classify,
		logPrefix:       logPrefix,
		throttleWait:    DefaultThrottleWait,
		throttleRetries: DefaultThrottleRetries,
		sleep:           sleepWithContext,
	}
}

// Request describes one call. Build attaches the current credential; it is
// invoked again with a different key after rotation.
type Request struct {
	Build func(ctx context.Context, key string) (*http.Request, error)
}

// ErrAllKeysThrottled reports that every usable credential was throttled for
// the duration of one call. Unlike exhaustion it carries no cycle-wide state:
// the next call starts with the full pool again.
var ErrAllKeysThrottled = errors.New("all api keys throttled")

// Do runs the request, rotating credentials as needed. It fails only when
// the request is fatal, every credential is exhausted for the cycle, or every
// usable credential stayed throttled for this call.
func (c *Client) Do(ctx context.Context, r Request) ([]byte, error) {
	// Throttling is transient, so throttled keys are only skipped for the
	// remainder of this call; exhaustion marks on the pool are reserved for
	// hard quota/auth failures.
	throttled := make(map[int]struct{})

	for {
		key, idx, ok := c.pool.NextExcluding(throttled)
		if !ok {
			if len(throttled) > 0 {
				return nil, ErrAllKeysThrottled
			}
			return nil, ErrAllKeysExhausted
		}

		body, verdict, err := c.attemptKey(ctx, r, key)
		switch {
		case err != nil:
			return nil, err
		case verdict == VerdictOK:
			return body, nil
		case verdict == VerdictExhausted:
			c.pool.MarkExhausted(idx)
			log.Printf("%s key #%d exhausted, rotating (remaining=%d)", c.logPrefix, idx, c.pool.Remaining())
		case verdict == VerdictThrottled:
			throttled[idx] = struct{}{}
			log.Printf("%s key #%d still throttled after %d retries, trying next key", c.logPrefix, idx, c.throttleRetries)
		case verdict == VerdictFatal:
			return nil, fmt.Errorf("request rejected by provider: %s", truncateForLog(body))
		}
	}
}

// attemptKey issues the call with one credential, retrying in place on
// throttle verdicts up to the retry ceiling.
func (c *Client) attemptKey(ctx context.Context, r Request, key string) ([]byte, Verdict, error) {
	var body []byte
	verdict := VerdictThrottled

	for attempt := 0; attempt <= c.throttleRetries; attempt++ {
		if attempt > 0 {
			log.Printf("%s throttled, retrying same key in %s (attempt %d/%d)", c.logPrefix, c.throttleWait, attempt, c.throttleRetries)
			if !c.sleep(ctx, c.throttleWait) {
				return nil, VerdictFatal, ctx.Err()
			}
		}

		req, err := r.Build(ctx, key)
		if err != nil {
			return nil, VerdictFatal, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, VerdictFatal, ctx.Err()
			}
			// Network errors are transient; reuse the throttle ladder.
			log.Printf("%s request error: %v", c.logPrefix, err)
			verdict = VerdictThrottled
			continue
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if err != nil {
			verdict = VerdictThrottled
			continue
		}

		verdict = c.classify(resp.StatusCode, body)
		if verdict != VerdictThrottled {
			return body, verdict, nil
		}
	}
	return body, verdict, nil
}

func truncateForLog(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
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
