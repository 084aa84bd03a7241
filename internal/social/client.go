package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const logPrefix = "[social]"

const (
	// MaxPostLen is the hard per-post character limit; longer text is
	// truncated before sending.
	MaxPostLen = 280
	// threadCooldown spaces consecutive posts of a thread.
	threadCooldown = 60 * time.Second
	// rateLimitMaxAttempts bounds the retry ladder on 429 responses.
	rateLimitMaxAttempts = 3
)

// rateLimitWaits is the fixed backoff ladder applied between 429 retries.
var rateLimitWaits = []time.Duration{time.Minute, 2 * time.Minute, 3 * time.Minute}

// QuotaRecorder receives provider-reported quota from response headers.
type QuotaRecorder interface {
	SetQuota(remaining int, resetAt time.Time)
}

// Client posts to an X-style v2 API with OAuth1 user context.
type Client struct {
	creds      Credentials
	httpClient *http.Client
	quota      QuotaRecorder

	apiBase    string
	uploadBase string

	sleep func(ctx context.Context, d time.Duration) bool
}

const (
	defaultAPIBase    = "https://api.twitter.com"
	defaultUploadBase = "https://upload.twitter.com"
)

func NewClient(creds Credentials, httpClient *http.Client, quota QuotaRecorder) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		creds:      creds,
		httpClient: httpClient,
		quota:      quota,
		apiBase:    defaultAPIBase,
		uploadBase: defaultUploadBase,
		sleep:      sleepWithContext,
	}
}

// SetBaseURLs points the client at test servers.
func (c *Client) SetBaseURLs(api, upload string) {
	c.apiBase = strings.TrimRight(api, "/")
	c.uploadBase = strings.TrimRight(upload, "/")
}

// Truncate enforces the per-post character limit.
func Truncate(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) <= MaxPostLen {
		return string(r)
	}
	return string(r[:MaxPostLen-1]) + "…"
}

// PostSingle posts one text-only tweet and returns its id.
func (c *Client) PostSingle(ctx context.Context, text string) (string, error) {
	return c.createTweet(ctx, map[string]any{"text": Truncate(text)})
}

// PostWithMedia uploads the local image then posts the tweet referencing it.
func (c *Client) PostWithMedia(ctx context.Context, text, imagePath string) (string, error) {
	mediaID, err := c.uploadMedia(ctx, imagePath)
	if err != nil {
		return "", fmt.Errorf("media upload: %w", err)
	}
	return c.createTweet(ctx, map[string]any{
		"text":  Truncate(text),
		"media": map[string]any{"media_ids": []string{mediaID}},
	})
}

// PostThread posts each text as a reply to the previous one. On a partway
// failure it returns the ids already posted together with the error.
func (c *Client) PostThread(ctx context.Context, texts []string) ([]string, error) {
	return c.postChain(ctx, texts, "")
}

// PostThreadWithMedia posts a thread whose first post carries the image. A
// failed upload degrades to a text-only thread rather than failing the run.
func (c *Client) PostThreadWithMedia(ctx context.Context, texts []string, imagePath string) ([]string, error) {
	mediaID, err := c.uploadMedia(ctx, imagePath)
	if err != nil {
		log.Printf("%s media upload failed, posting text-only thread: %v", logPrefix, err)
		mediaID = ""
	}
	return c.postChain(ctx, texts, mediaID)
}

func (c *Client) postChain(ctx context.Context, texts []string, headMediaID string) ([]string, error) {
	var ids []string
	for i, text := range texts {
		if i > 0 {
			if !c.sleep(ctx, threadCooldown) {
				return ids, ctx.Err()
			}
		}

		payload := map[string]any{"text": Truncate(text)}
		if i == 0 && headMediaID != "" {
			payload["media"] = map[string]any{"media_ids": []string{headMediaID}}
		}
		if len(ids) > 0 {
			payload["reply"] = map[string]any{"in_reply_to_tweet_id": ids[len(ids)-1]}
		}

		id, err := c.createTweet(ctx, payload)
		if err != nil {
			if len(ids) > 0 {
				log.Printf("%s thread failed at post %d/%d, keeping partial result", logPrefix, i+1, len(texts))
			}
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// VerifyCredentials confirms the OAuth1 user context works and returns the
// authenticated username.
func (c *Client) VerifyCredentials(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/2/users/me", nil)
	if err != nil {
		return "", err
	}
	if err := signRequest(req, c.creds, nil); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("verify failed: status=%d body=%s", resp.StatusCode, body)
	}

	var out struct {
		Data struct {
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	return out.Data.Username, nil
}

// createTweet posts the payload, retrying on 429 with the fixed backoff
// ladder and recording quota headers when present.
func (c *Client) createTweet(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt < rateLimitMaxAttempts; attempt++ {
		if attempt > 0 {
			wait := rateLimitWaits[attempt-1]
			log.Printf("%s rate limited, retrying in %s (attempt %d/%d)", logPrefix, wait, attempt+1, rateLimitMaxAttempts)
			if !c.sleep(ctx, wait) {
				return "", ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/2/tweets", bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if err := signRequest(req, c.creds, nil); err != nil {
			return "", err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		c.recordQuota(resp.Header)

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited: %s", respBody)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("post failed: status=%d body=%s", resp.StatusCode, respBody)
		}

		var out struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(respBody, &out); err != nil {
			return "", fmt.Errorf("post decode: %w", err)
		}
		if out.Data.ID == "" {
			return "", fmt.Errorf("post response missing id: %s", respBody)
		}
		return out.Data.ID, nil
	}
	return "", lastErr
}

// recordQuota captures remaining-quota headers when the provider sends them.
func (c *Client) recordQuota(h http.Header) {
	if c.quota == nil {
		return
	}
	remaining := h.Get("x-rate-limit-remaining")
	if remaining == "" {
		return
	}
	n, err := strconv.Atoi(remaining)
	if err != nil {
		return
	}

	var resetAt time.Time
	if reset := h.Get("x-rate-limit-reset"); reset != "" {
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
			resetAt = time.Unix(epoch, 0)
		}
	}
	c.quota.SetQuota(n, resetAt)
}

// uploadMedia sends the image through the v1.1 multipart upload endpoint and
// returns the media id.
func (c *Client) uploadMedia(ctx context.Context, imagePath string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("media", filepath.Base(imagePath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadBase+"/1.1/media/upload.json", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := signRequest(req, c.creds, nil); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload failed: status=%d body=%s", resp.StatusCode, body)
	}

	var out struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.MediaIDString == "" {
		return "", fmt.Errorf("upload response missing media id: %s", body)
	}
	return out.MediaIDString, nil
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
