package embed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIEmbedModel = "text-embedding-3-small"

// OpenAIConfig selects the account and endpoint. BaseURL may point at any
// OpenAI-compatible server.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// openAIConfigFromEnv reads OPENAI_API_KEY (or the older OPENAI_KEY) and
// OPENAI_BASE_URL.
func openAIConfigFromEnv(model string) OpenAIConfig {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		key = os.Getenv("OPENAI_KEY")
	}
	return OpenAIConfig{APIKey: key, BaseURL: os.Getenv("OPENAI_BASE_URL"), Model: model}
}

type OpenAIEmbedder struct {
	api   *openai.Client
	model openai.EmbeddingModel
}

func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai embedder: missing OPENAI_API_KEY")
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIEmbedModel
	}
	return &OpenAIEmbedder{api: openai.NewClientWithConfig(conf), model: openai.EmbeddingModel(model)}, nil
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{Model: o.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("openai embed %s: %w", o.model, err)
	}
	batch := make([][]float32, 0, len(resp.Data))
	for _, d := range resp.Data {
		batch = append(batch, d.Embedding)
	}
	return firstVector(batch)
}
