package models

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"sync"
)

const defaultMaxTokens = 4096

// MIME type lookup tables for fast access
var (
	mimeExtMap = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
		".webp": "image/webp",
		".bmp":  "image/bmp",
		".txt":  "text/plain",
		".md":   "text/markdown",
		".json": "application/json",
	}

	mimeAliasMap = map[string]string{
		"image/jpg":   "image/jpeg",
		"image/pjpeg": "image/jpeg",
		"image/x-png": "image/png",
	}

	// Cache for normalized MIME types
	mimeCache   = make(map[string]string, 100)
	mimeCacheMu sync.RWMutex
)

// NewProvider returns a concrete Model for the named provider.
func NewProvider(ctx context.Context, provider, model string, maxTokens int) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "anthropic", "claude", "":
		return NewAnthropicModel(model, maxTokens), nil
	case "openai":
		return NewOpenAIModel(model, maxTokens), nil
	case "gemini", "google":
		return NewGeminiModel(ctx, model, maxTokens)
	case "ollama":
		return NewOllamaModel(model)
	case "dummy":
		return NewDummyModel(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// NormalizeMIME fixes messy/alias MIMEs and falls back to the file extension.
func NormalizeMIME(name, m string) string {
	cacheKey := name + "|" + m
	mimeCacheMu.RLock()
	if cached, ok := mimeCache[cacheKey]; ok {
		mimeCacheMu.RUnlock()
		return cached
	}
	mimeCacheMu.RUnlock()

	result := normalizeMIME(name, m)

	mimeCacheMu.Lock()
	if len(mimeCache) < 1000 { // Limit cache size
		mimeCache[cacheKey] = result
	}
	mimeCacheMu.Unlock()
	return result
}

func normalizeMIME(name, m string) string {
	strip := func(s string) string {
		if i := strings.IndexByte(s, ';'); i >= 0 {
			return strings.TrimSpace(s[:i])
		}
		return strings.TrimSpace(s)
	}

	fromExt := func() string {
		ext := strings.ToLower(filepath.Ext(name))
		if ext == "" {
			return ""
		}
		if mt, ok := mimeExtMap[ext]; ok {
			return mt
		}
		if mt := mime.TypeByExtension(ext); mt != "" {
			return strip(mt)
		}
		return ""
	}

	raw := strip(strings.ToLower(strings.TrimSpace(m)))
	if raw == "" {
		return fromExt()
	}
	for strings.HasPrefix(raw, "image/image/") {
		raw = "image/" + strings.TrimPrefix(raw, "image/image/")
	}
	if normalized, ok := mimeAliasMap[raw]; ok {
		return normalized
	}
	// Malformed MIME -> use extension
	if !strings.Contains(raw, "/") || strings.HasSuffix(raw, "/") {
		if via := fromExt(); via != "" {
			return via
		}
	}
	return raw
}

// IsSupportedImageMIME reports whether every provider adapter accepts the type.
func IsSupportedImageMIME(m string) bool {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

// schemaRequired reads the "required" list of a JSON schema, accepting both
// []string and the []any produced by decoding JSON.
func schemaRequired(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return append([]string(nil), req...)
	case []any:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// SchemaRequired is the exported form of schemaRequired.
func SchemaRequired(schema map[string]any) []string {
	return schemaRequired(schema)
}

func schemaProperties(schema map[string]any) map[string]any {
	props, _ := schema["properties"].(map[string]any)
	return props
}
