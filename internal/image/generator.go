// Package image generates an illustrative picture for a post. Every failure
// path returns an empty path rather than an error: callers treat "" as
// "proceed without image".
package image

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const logPrefix = "[image]"

// Config selects the OpenAI-compatible images endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// OutDir receives the generated files; defaults to the OS temp dir.
	OutDir string
}

// Generator calls the images endpoint, downloads the result and normalizes
// it to a PNG on local disk.
type Generator struct {
	cfg        Config
	httpClient *http.Client
}

func NewGenerator(cfg Config, httpClient *http.Client) *Generator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	if strings.TrimSpace(cfg.OutDir) == "" {
		cfg.OutDir = os.TempDir()
	}
	return &Generator{cfg: cfg, httpClient: httpClient}
}

// styleFor appends illustration style keywords for the category.
func styleFor(categoryHint string) string {
	base := "modern flat illustration, clean composition, no text"
	switch strings.ToLower(categoryHint) {
	case "tech", "technology", "science":
		return base + ", futuristic, blue tones"
	case "sports", "sport":
		return base + ", dynamic motion, stadium atmosphere"
	case "business", "finance":
		return base + ", charts and skyline, professional"
	case "entertainment":
		return base + ", vibrant colors, spotlight"
	default:
		return base
	}
}

// Generate returns the local path of a normalized PNG for the prompt, or ""
// when generation failed for any reason.
func (g *Generator) Generate(ctx context.Context, promptText, categoryHint string) string {
	if strings.TrimSpace(g.cfg.APIKey) == "" || strings.TrimSpace(promptText) == "" {
		return ""
	}
	prompt := strings.TrimSpace(promptText) + ". Style: " + styleFor(categoryHint)

	client := openaigo.NewClient(
		option.WithBaseURL(strings.TrimRight(strings.TrimSpace(g.cfg.BaseURL), "/")),
		option.WithAPIKey(strings.TrimSpace(g.cfg.APIKey)),
		option.WithHTTPClient(g.httpClient),
	)

	resp, err := client.Images.Generate(ctx, openaigo.ImageGenerateParams{
		Prompt: prompt,
		Model:  openaigo.ImageModel(strings.TrimSpace(g.cfg.Model)),
		N:      openaigo.Int(1),
	})
	if err != nil {
		log.Printf("%s generation failed: %v", logPrefix, err)
		return ""
	}
	if resp == nil || len(resp.Data) == 0 {
		log.Printf("%s generation returned no data", logPrefix)
		return ""
	}

	raw, err := g.fetchImageBytes(ctx, resp.Data[0].URL, resp.Data[0].B64JSON)
	if err != nil {
		log.Printf("%s download failed: %v", logPrefix, err)
		return ""
	}

	normalized, err := normalizePNG(raw, maxImageDim)
	if err != nil {
		log.Printf("%s normalize failed: %v", logPrefix, err)
		return ""
	}

	path, err := g.writeTemp(normalized)
	if err != nil {
		log.Printf("%s write failed: %v", logPrefix, err)
		return ""
	}
	return path
}

func (g *Generator) fetchImageBytes(ctx context.Context, url, b64 string) ([]byte, error) {
	if strings.TrimSpace(b64) != "" {
		return base64.StdEncoding.DecodeString(b64)
	}
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("response carried neither url nor b64 payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status=%d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 20*1024*1024))
}

func (g *Generator) writeTemp(data []byte) (string, error) {
	if err := os.MkdirAll(g.cfg.OutDir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(g.cfg.OutDir, "hourlysignal-*.png")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
