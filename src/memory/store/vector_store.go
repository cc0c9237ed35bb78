package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shahintaesheikh/agentflow/src/memory/model"
)

// VectorStore persists embedded documents partitioned by index generation.
// A generation is written completely before it is searched, and dropped
// once no reader can still be using it.
type VectorStore interface {
	StoreDocuments(ctx context.Context, docs []model.Document) error
	SearchDocuments(ctx context.Context, generation string, query []float32, limit int) ([]model.Match, error)
	DropGeneration(ctx context.Context, generation string) error
	// Count reports stored documents for generation, or all documents when
	// generation is empty.
	Count(ctx context.Context, generation string) (int, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend    string // memory|sqlite|postgres|mongodb|neo4j|qdrant
	DSN        string // file path, connection string or base URL
	Database   string
	Collection string // table, collection, label or vector index name
	User       string
	Password   string
	APIKey     string
}

const defaultCollection = "agentflow_documents"

func (c Config) collection() string {
	if c.Collection != "" {
		return c.Collection
	}
	return defaultCollection
}

var errEmptyGeneration = errors.New("document generation is required")

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (VectorStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return NewInMemoryStore(), nil
	case "sqlite":
		return nonNil(NewSQLiteStore(ctx, cfg.DSN))
	case "postgres", "pgvector":
		return nonNil(NewPostgresStore(ctx, cfg.DSN, cfg.collection()))
	case "mongodb", "mongo":
		return nonNil(NewMongoStore(ctx, cfg.DSN, cfg.Database, cfg.collection()))
	case "neo4j":
		return nonNil(NewNeo4jStore(ctx, cfg.DSN, cfg.User, cfg.Password, cfg.Database))
	case "qdrant":
		return NewQdrantStore(cfg.DSN, cfg.collection(), cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", cfg.Backend)
	}
}

func nonNil[T VectorStore](s T, err error) (VectorStore, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

func validateDocuments(docs []model.Document) error {
	for i, doc := range docs {
		if doc.Generation == "" {
			return fmt.Errorf("document %d: %w", i, errEmptyGeneration)
		}
		if doc.ID == "" {
			return fmt.Errorf("document %d: id is required", i)
		}
	}
	return nil
}
