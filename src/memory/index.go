package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/shahintaesheikh/agentflow/src/concurrent"
	"github.com/shahintaesheikh/agentflow/src/memory/embed"
	"github.com/shahintaesheikh/agentflow/src/memory/model"
	"github.com/shahintaesheikh/agentflow/src/memory/store"
)

// ErrIndexNotInitialized is returned by Search before the first Build has
// been published.
var ErrIndexNotInitialized = errors.New("semantic index not initialized")

// Generation describes one published build of the index.
type Generation struct {
	ID        string
	Documents int
	BuiltAt   time.Time
}

// Index is a process-wide semantic index. Builds write a complete new
// generation to the store and then publish it with a single atomic swap, so
// concurrent readers see either the old or the new generation in full.
// The generation replaced by a publish stays searchable until the next
// publish, for readers that loaded it just before the swap.
type Index struct {
	store       store.VectorStore
	embedder    embed.Embedder
	logger      *slog.Logger
	concurrency int
	now         func() time.Time

	current  atomic.Pointer[Generation]
	buildMu  sync.Mutex
	previous string
}

// IndexOption customises an Index.
type IndexOption func(*Index)

func WithLogger(l *slog.Logger) IndexOption {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

// WithConcurrency bounds the number of embedding calls in flight during Build.
func WithConcurrency(n int) IndexOption {
	return func(ix *Index) { ix.concurrency = n }
}

func NewIndex(vs store.VectorStore, embedder embed.Embedder, opts ...IndexOption) *Index {
	if embedder == nil {
		embedder = embed.DummyEmbedder{}
	}
	ix := &Index{
		store:       vs,
		embedder:    embedder,
		logger:      slog.Default(),
		concurrency: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Build embeds docs, stores them as a new generation and publishes it.
// Document IDs, contents and metadata are taken from docs; embeddings and
// generation are assigned here. An empty docs slice is rejected so a
// published index is never empty.
func (ix *Index) Build(ctx context.Context, docs []model.Document) (Generation, error) {
	if len(docs) == 0 {
		return Generation{}, errors.New("build index: no documents")
	}
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	gen := uuid.NewString()
	start := ix.now()
	ix.logger.Debug("building index generation", "generation", gen, "documents", len(docs))

	embedded, err := concurrent.ParallelMap(ctx, docs, func(ctx context.Context, i int, doc model.Document) (model.Document, error) {
		if strings.TrimSpace(doc.Content) == "" {
			return model.Document{}, fmt.Errorf("document %d is empty", i)
		}
		vec, err := ix.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return model.Document{}, fmt.Errorf("embed document %s: %w", doc.ID, err)
		}
		doc.Generation = gen
		doc.Embedding = vec
		if doc.ID == "" {
			doc.ID = fmt.Sprintf("doc-%d", i)
		}
		return doc, nil
	}, ix.concurrency)
	if err != nil {
		return Generation{}, fmt.Errorf("build index: %w", err)
	}

	if err := ix.store.StoreDocuments(ctx, embedded); err != nil {
		ix.discard(gen)
		return Generation{}, fmt.Errorf("build index: store: %w", err)
	}

	published := &Generation{ID: gen, Documents: len(embedded), BuiltAt: ix.now()}
	old := ix.current.Swap(published)

	if ix.previous != "" {
		ix.discard(ix.previous)
	}
	ix.previous = ""
	if old != nil {
		ix.previous = old.ID
	}

	ix.logger.Info("index generation published", "generation", gen, "documents", len(embedded), "elapsed", ix.now().Sub(start))
	return *published, nil
}

func (ix *Index) discard(gen string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := ix.store.DropGeneration(ctx, gen); err != nil {
		ix.logger.Warn("failed to drop index generation", "generation", gen, "error", err)
	}
}

// Current reports the published generation, if any.
func (ix *Index) Current() (Generation, bool) {
	g := ix.current.Load()
	if g == nil {
		return Generation{}, false
	}
	return *g, true
}

// Search returns the k nearest documents to query from the published
// generation.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]model.Match, error) {
	g := ix.current.Load()
	if g == nil {
		return nil, ErrIndexNotInitialized
	}
	if k <= 0 {
		return nil, nil
	}
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return ix.store.SearchDocuments(ctx, g.ID, vec, k)
}

// Close releases the underlying store.
func (ix *Index) Close() error {
	return ix.store.Close()
}
