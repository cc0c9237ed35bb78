package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shahintaesheikh/agentflow/src/memory/model"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	generation TEXT NOT NULL,
	id         TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	embedding  TEXT NOT NULL,
	PRIMARY KEY (generation, id)
);
`

// SQLiteStore keeps the index in a single file. Similarity is computed in
// process over the rows of one generation.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "agentflow_index.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) StoreDocuments(ctx context.Context, docs []model.Document) error {
	if err := validateDocuments(docs); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO documents (generation, id, content, metadata, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, doc := range docs {
		vec, err := json.Marshal(doc.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding %s: %w", doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, doc.Generation, doc.ID, doc.Content, model.EncodeMetadata(doc.Metadata), string(vec)); err != nil {
			return fmt.Errorf("insert document %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SearchDocuments(ctx context.Context, generation string, query []float32, limit int) ([]model.Match, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, metadata, embedding FROM documents WHERE generation = ?`, generation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		var (
			doc       = model.Document{Generation: generation}
			meta, vec string
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta, &vec); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vec), &doc.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding %s: %w", doc.ID, err)
		}
		doc.Metadata = model.DecodeMetadata(meta)
		matches = append(matches, model.Match{Document: doc, Score: model.CosineSimilarity(query, doc.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortMatches(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *SQLiteStore) DropGeneration(ctx context.Context, generation string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE generation = ?`, generation)
	return err
}

func (s *SQLiteStore) Count(ctx context.Context, generation string) (int, error) {
	var n int
	var err error
	if generation == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE generation = ?`, generation).Scan(&n)
	}
	return n, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
