package embed

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
)

// Embedder is a pluggable text-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNotSupported is returned by providers that do not offer embeddings or
// answered with an empty vector.
var ErrNotSupported = errors.New("embeddings not supported by this provider")

// DummyDimensions is the width of DummyEmbedding vectors.
const DummyDimensions = 768

// ---------- Dummy (fallback) ----------
type DummyEmbedder struct{}

func (DummyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return DummyEmbedding(text), nil
}

// DummyEmbedding folds the bytes of text into a fixed-width vector. It is
// deterministic and needs no network, which makes it the offline default.
func DummyEmbedding(text string) []float32 {
	vec := make([]float32, DummyDimensions)
	for i, ch := range []byte(strings.ToLower(text)) {
		vec[i%DummyDimensions] += float32(ch) / 255.0
	}
	return vec
}

// New returns the embedder for provider, which is one of
// openai|google|gemini|vertex|ollama|voyage|fastembed|dummy.
func New(ctx context.Context, provider, model string) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		e, err = nonNil(NewOpenAIEmbedder(openAIConfigFromEnv(model)))
	case "google", "gemini", "vertex", "vertexai":
		e, err = nonNil(NewGeminiEmbedder(ctx, model))
	case "ollama":
		e, err = nonNil(NewOllamaEmbedder(ollamaConfigFromEnv(model)))
	case "voyage", "claude", "anthropic":
		e, err = nonNil(NewVoyageEmbedder(model))
	case "fastembed":
		e, err = nonNil(NewFastEmbedder(ctx, defaultFastEmbedOptions()))
	case "dummy", "":
		e = DummyEmbedder{}
	default:
		err = errors.New("unknown embedding provider: " + provider)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// nonNil keeps a failed constructor's typed nil pointer out of the interface.
func nonNil[T Embedder](e T, err error) (Embedder, error) {
	if err != nil {
		return nil, err
	}
	return e, nil
}

// AutoEmbedder chooses a provider from env:
// ADK_EMBED_PROVIDER=openai|google|gemini|ollama|voyage|fastembed
// ADK_EMBED_MODEL=<model string>
// Any construction failure falls back to the dummy embedder.
func AutoEmbedder(ctx context.Context, logger *slog.Logger) Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	provider := os.Getenv("ADK_EMBED_PROVIDER")
	model := strings.TrimSpace(os.Getenv("ADK_EMBED_MODEL"))

	e, err := New(ctx, provider, model)
	if err != nil {
		logger.Warn("embedder unavailable, falling back to dummy", "provider", provider, "error", err)
		return DummyEmbedder{}
	}
	return e
}
