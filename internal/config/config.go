package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const logPrefix = "[config]"

const (
	DefaultPrimaryAIBaseURL   = "https://api.openai.com/v1"
	DefaultPrimaryAIModel     = "gpt-4o-mini"
	DefaultSecondaryAIBaseURL = "https://api.groq.com/openai/v1"
	DefaultSecondaryAIModel   = "llama-3.3-70b-versatile"
	DefaultImageModel         = "dall-e-3"
	DefaultStateDir           = "state"

	DefaultPrimaryMinInterval   = 3 * time.Second
	DefaultSecondaryMinInterval = 5 * time.Second
)

// Config is the local (environment) configuration. Remote per-cycle settings
// live in Snapshot and are refetched every run.
type Config struct {
	NewsAPIKeys []string
	GNewsKeys   []string

	PrimaryAIBaseURL string
	PrimaryAIModel   string
	PrimaryAIKey     string

	SecondaryAIBaseURL string
	SecondaryAIModel   string
	SecondaryAIKey     string

	ImageAIBaseURL string
	ImageAIModel   string
	ImageAIKey     string

	TwitterAPIKey       string
	TwitterAPISecret    string
	TwitterAccessToken  string
	TwitterAccessSecret string

	RemoteConfigURL string
	StateDir        string
}

// Load reads configuration from the environment. Missing mandatory keys are
// the only fatal startup condition in the whole system, so this is the one
// place that returns a hard error the caller should not try to recover from.
func Load() (Config, error) {
	cfg := Config{
		NewsAPIKeys: splitKeys(os.Getenv("NEWSAPI_KEYS")),
		GNewsKeys:   splitKeys(os.Getenv("GNEWS_KEYS")),

		PrimaryAIBaseURL: envOr("PRIMARY_AI_BASE_URL", DefaultPrimaryAIBaseURL),
		PrimaryAIModel:   envOr("PRIMARY_AI_MODEL", DefaultPrimaryAIModel),
		PrimaryAIKey:     strings.TrimSpace(os.Getenv("PRIMARY_AI_KEY")),

		SecondaryAIBaseURL: envOr("SECONDARY_AI_BASE_URL", DefaultSecondaryAIBaseURL),
		SecondaryAIModel:   envOr("SECONDARY_AI_MODEL", DefaultSecondaryAIModel),
		SecondaryAIKey:     strings.TrimSpace(os.Getenv("SECONDARY_AI_KEY")),

		ImageAIBaseURL: envOr("IMAGE_AI_BASE_URL", DefaultPrimaryAIBaseURL),
		ImageAIModel:   envOr("IMAGE_AI_MODEL", DefaultImageModel),
		ImageAIKey:     strings.TrimSpace(os.Getenv("IMAGE_AI_KEY")),

		TwitterAPIKey:       strings.TrimSpace(os.Getenv("TWITTER_API_KEY")),
		TwitterAPISecret:    strings.TrimSpace(os.Getenv("TWITTER_API_SECRET")),
		TwitterAccessToken:  strings.TrimSpace(os.Getenv("TWITTER_ACCESS_TOKEN")),
		TwitterAccessSecret: strings.TrimSpace(os.Getenv("TWITTER_ACCESS_SECRET")),

		RemoteConfigURL: strings.TrimSpace(os.Getenv("REMOTE_CONFIG_URL")),
		StateDir:        envOr("STATE_DIR", DefaultStateDir),
	}

	if cfg.ImageAIKey == "" {
		cfg.ImageAIKey = cfg.PrimaryAIKey
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	if len(c.NewsAPIKeys) == 0 && len(c.GNewsKeys) == 0 {
		missing = append(missing, "NEWSAPI_KEYS or GNEWS_KEYS")
	}
	if c.PrimaryAIKey == "" {
		missing = append(missing, "PRIMARY_AI_KEY")
	}
	if c.TwitterAPIKey == "" || c.TwitterAPISecret == "" ||
		c.TwitterAccessToken == "" || c.TwitterAccessSecret == "" {
		missing = append(missing, "TWITTER_API_KEY/TWITTER_API_SECRET/TWITTER_ACCESS_TOKEN/TWITTER_ACCESS_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing mandatory configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func splitKeys(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if k := strings.TrimSpace(part); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}
