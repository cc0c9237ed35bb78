package embed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

const (
	defaultOllamaHost  = "http://localhost:11434"
	defaultOllamaModel = "nomic-embed-text"
)

// OllamaConfig points the embedder at a local or remote Ollama server.
type OllamaConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// ollamaConfigFromEnv honours OLLAMA_HOST the same way the ollama CLI does.
func ollamaConfigFromEnv(model string) OllamaConfig {
	return OllamaConfig{Host: os.Getenv("OLLAMA_HOST"), Model: model}
}

// OllamaEmbedder embeds index documents with a locally served model, so
// building an index needs no API key.
type OllamaEmbedder struct {
	api   *ollama.Client
	model string
}

func NewOllamaEmbedder(cfg OllamaConfig) (*OllamaEmbedder, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = defaultOllamaHost
	}
	base, err := url.Parse(host)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("ollama embedder: bad host %q", host)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaEmbedder{
		api:   ollama.NewClient(base, &http.Client{Timeout: timeout}),
		model: model,
	}, nil
}

func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := o.api.Embed(ctx, &ollama.EmbedRequest{Model: o.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed %s: %w", o.model, err)
	}
	return firstVector(res.Embeddings)
}

// firstVector unwraps a single-input batch reply.
func firstVector(batch [][]float32) ([]float32, error) {
	if len(batch) == 0 || len(batch[0]) == 0 {
		return nil, ErrNotSupported
	}
	return batch[0], nil
}
