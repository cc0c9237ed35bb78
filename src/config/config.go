// Package config loads runtime settings from an optional .env file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultProvider = "anthropic"
	DefaultModel    = "claude-sonnet-4-20250514"
)

// Config holds every setting the agentflow binaries read from the environment.
type Config struct {
	Provider      string
	Model         string
	MaxTokens     int
	MaxIterations int
	SaveDir       string

	Index IndexConfig

	EmbedProvider string
	EmbedModel    string

	LLMCacheSize int
	LLMCacheTTL  time.Duration
	ToolCacheTTL time.Duration

	UTCPProviders string
	LogLevel      string
}

// IndexConfig selects the vector store backing semantic_search.
type IndexConfig struct {
	Backend    string
	DSN        string
	Database   string
	Collection string
	User       string
	Password   string
	APIKey     string
}

// Load reads .env files (missing files are ignored) and then the process
// environment. Variables already set in the environment win over .env.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	var errs []error
	str := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	num := func(key string, def int) int {
		raw := strings.TrimSpace(getenv(key))
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return n
	}
	seconds := func(key string) time.Duration {
		return time.Duration(num(key, 0)) * time.Second
	}

	cfg := Config{
		Provider:      strings.ToLower(str("AGENTFLOW_PROVIDER", DefaultProvider)),
		Model:         str("AGENTFLOW_MODEL", DefaultModel),
		MaxTokens:     num("AGENTFLOW_MAX_TOKENS", 4096),
		MaxIterations: num("AGENTFLOW_MAX_ITERATIONS", 10),
		SaveDir:       str("AGENTFLOW_SAVE_DIR", "."),
		Index: IndexConfig{
			Backend:    strings.ToLower(str("AGENTFLOW_INDEX_BACKEND", "memory")),
			DSN:        str("AGENTFLOW_INDEX_DSN", ""),
			Database:   str("AGENTFLOW_INDEX_DATABASE", ""),
			Collection: str("AGENTFLOW_INDEX_COLLECTION", ""),
			User:       str("AGENTFLOW_INDEX_USER", ""),
			Password:   str("AGENTFLOW_INDEX_PASSWORD", ""),
			APIKey:     str("AGENTFLOW_INDEX_API_KEY", ""),
		},
		EmbedProvider: str("ADK_EMBED_PROVIDER", ""),
		EmbedModel:    str("ADK_EMBED_MODEL", ""),
		LLMCacheSize:  num("AGENTFLOW_LLM_CACHE_SIZE", 0),
		LLMCacheTTL:   seconds("AGENTFLOW_LLM_CACHE_TTL"),
		ToolCacheTTL:  seconds("AGENTFLOW_TOOL_CACHE_TTL"),
		UTCPProviders: str("AGENTFLOW_UTCP_PROVIDERS", ""),
		LogLevel:      str("AGENTFLOW_LOG_LEVEL", "info"),
	}
	if cfg.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("AGENTFLOW_MAX_ITERATIONS must be at least 1, got %d", cfg.MaxIterations))
	}
	if cfg.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("AGENTFLOW_MAX_TOKENS must be positive, got %d", cfg.MaxTokens))
	}
	if cfg.LLMCacheSize < 0 || cfg.LLMCacheTTL < 0 || cfg.ToolCacheTTL < 0 {
		errs = append(errs, errors.New("cache sizes and TTLs must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
