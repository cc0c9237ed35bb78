package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shahintaesheikh/agentflow/src/memory/model"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresStore implements VectorStore using Postgres + pgvector.
type PostgresStore struct {
	DB    *pgxpool.Pool
	table string
}

// NewPostgresStore connects to Postgres and ensures the pgvector extension
// and the documents table exist.
func NewPostgresStore(ctx context.Context, connStr, table string) (*PostgresStore, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	ps := &PostgresStore{DB: db, table: table}
	if err := ps.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return ps, nil
}

func (ps *PostgresStore) createSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			generation TEXT NOT NULL,
			id         TEXT NOT NULL,
			content    TEXT NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding  vector NOT NULL,
			PRIMARY KEY (generation, id)
		)`, ps.table),
	}
	for _, stmt := range stmts {
		if _, err := ps.DB.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}
	return nil
}

func (ps *PostgresStore) StoreDocuments(ctx context.Context, docs []model.Document) error {
	if err := validateDocuments(docs); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	query := fmt.Sprintf(`
		INSERT INTO %s (generation, id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4::jsonb, $5::vector)
		ON CONFLICT (generation, id) DO UPDATE
		SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`, ps.table)
	for _, doc := range docs {
		batch.Queue(query, doc.Generation, doc.ID, doc.Content, model.EncodeMetadata(doc.Metadata), vectorLiteral(doc.Embedding))
	}
	return ps.DB.SendBatch(ctx, batch).Close()
}

// SearchDocuments ranks by cosine distance; the score is 1 - distance.
func (ps *PostgresStore) SearchDocuments(ctx context.Context, generation string, query []float32, limit int) ([]model.Match, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := ps.DB.Query(ctx, fmt.Sprintf(`
		SELECT id, content, metadata::text, 1 - (embedding <=> $1::vector) AS score
		FROM %s
		WHERE generation = $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`, ps.table), vectorLiteral(query), generation, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		var (
			m    = model.Match{Document: model.Document{Generation: generation}}
			meta string
		)
		if err := rows.Scan(&m.ID, &m.Content, &meta, &m.Score); err != nil {
			return nil, err
		}
		m.Metadata = model.DecodeMetadata(meta)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (ps *PostgresStore) DropGeneration(ctx context.Context, generation string) error {
	_, err := ps.DB.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE generation = $1`, ps.table), generation)
	return err
}

func (ps *PostgresStore) Count(ctx context.Context, generation string) (int, error) {
	var n int
	var err error
	if generation == "" {
		err = ps.DB.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, ps.table)).Scan(&n)
	} else {
		err = ps.DB.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE generation = $1`, ps.table), generation).Scan(&n)
	}
	return n, err
}

// Close releases the underlying Postgres connection pool.
func (ps *PostgresStore) Close() error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	ps.DB.Close()
	return nil
}

// vectorLiteral renders a pgvector input literal such as "[0.1,0.2]".
func vectorLiteral(vec []float32) string {
	raw, _ := json.Marshal(vec)
	return fmt.Sprintf("[%s]", trimJSON(string(raw)))
}

func trimJSON(s string) string { return strings.Trim(s, "[]") }
