// Package config is the process's flat environment-variable configuration
// contract. This process has exactly one configuration surface, so it is
// a single struct loaded once at startup rather than a registry of
// per-concern config files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort              = "8001"
	defaultSessionTTLSeconds = 86400
	defaultLLMBaseURL        = "https://api.openai.com/v1"
)

// Config is the fully resolved process configuration.
type Config struct {
	Port string

	LLMAPIKey      string
	LLMBaseURL     string
	LLMChatModel   string
	LLMParserModel string
	LLMEmbedModel  string

	SessionTTL time.Duration
	CacheDir   string

	// DocSourceURLs extends the environment-variable contract so the Doc
	// Index has somewhere to fetch from other than the built-in seed
	// corpus. Empty means "use the seed corpus".
	DocSourceURLs []string
}

// Load reads the process environment into a Config, applying its
// defaults. It does not load a .env file itself — call godotenv.Load
// before Load, as cmd/uavchat/main.go does, so real OS environment
// variables always win over .env values.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", defaultPort),
		LLMAPIKey:      os.Getenv("LLM_API_KEY"),
		LLMBaseURL:     getEnv("LLM_BASE_URL", defaultLLMBaseURL),
		LLMChatModel:   getEnv("LLM_CHAT_MODEL", "gpt-4o"),
		LLMParserModel: getEnv("LLM_PARSER_MODEL", "gpt-4o-mini"),
		LLMEmbedModel:  getEnv("LLM_EMBED_MODEL", "text-embedding-3-small"),
		CacheDir:       getEnv("CACHE_DIR", "./data/doc-cache"),
	}

	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}

	ttlSeconds, err := getEnvInt("SESSION_TTL_SECONDS", defaultSessionTTLSeconds)
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = time.Duration(ttlSeconds) * time.Second

	if raw := os.Getenv("DOC_SOURCE_URLS"); raw != "" {
		for _, u := range strings.Split(raw, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.DocSourceURLs = append(cfg.DocSourceURLs, u)
			}
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
