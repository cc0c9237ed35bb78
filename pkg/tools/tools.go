// Package tools provides the research tools offered to the model: web
// search, encyclopedia lookup, note saving and semantic document search.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	agentflow "github.com/shahintaesheikh/agentflow"
	"github.com/shahintaesheikh/agentflow/src/cache"
	"github.com/shahintaesheikh/agentflow/src/memory/model"
)

const (
	DefaultSearchURL    = "https://html.duckduckgo.com/html/"
	DefaultWikipediaURL = "https://en.wikipedia.org/w/api.php"

	userAgent = "agentflow/1.0 (research assistant)"
)

// Searcher ranks indexed documents against a query.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]model.Match, error)
}

// Capabilities bundles what the built-in tools need from the outside world.
// Zero values fall back to public endpoints, the working directory and the
// wall clock.
type Capabilities struct {
	HTTPClient   *http.Client
	SearchURL    string
	WikipediaURL string
	Index        Searcher
	SaveDir      string
	Now          func() time.Time
	// Cache memoises search and wikipedia lookups when non-nil.
	Cache  *cache.LRUCache
	Logger *slog.Logger
}

func (c Capabilities) withDefaults() Capabilities {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.SearchURL == "" {
		c.SearchURL = DefaultSearchURL
	}
	if c.WikipediaURL == "" {
		c.WikipediaURL = DefaultWikipediaURL
	}
	if c.SaveDir == "" {
		c.SaveDir = "."
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Builtins returns search, wikipedia, save and semantic_search, in that order.
func Builtins(caps Capabilities) []agentflow.Tool {
	caps = caps.withDefaults()
	return []agentflow.Tool{
		&SearchTool{caps: caps},
		&WikipediaTool{caps: caps},
		&SaveTool{caps: caps},
		&SemanticSearchTool{caps: caps},
	}
}

func queryTool(name, description, queryDesc string) agentflow.ToolSpec {
	return agentflow.ToolSpec{
		Name:        name,
		Description: description,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": queryDesc,
				},
			},
			"required": []any{"query"},
		},
	}
}

func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// cached runs lookup unless the cache already holds an answer for key.
func cached(caps Capabilities, tool, query string, lookup func() (string, error)) (string, error) {
	if caps.Cache == nil {
		return lookup()
	}
	key := cache.HashKey(tool + "\x00" + strings.ToLower(query))
	if v, ok := caps.Cache.Get(key); ok {
		if s, ok := v.(string); ok {
			caps.Logger.Debug("tool cache hit", "tool", tool)
			return s, nil
		}
	}
	out, err := lookup()
	if err != nil {
		return "", err
	}
	caps.Cache.Set(key, out)
	return out, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
