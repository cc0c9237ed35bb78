package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	neo4j "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/shahintaesheikh/agentflow/src/memory/model"
)

// cypherRunner executes one auto-committed query and returns its rows keyed
// by column. Tests provide lightweight fakes; production wraps the driver.
type cypherRunner interface {
	Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	Close(ctx context.Context) error
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (d *driverRunner) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	res, err := neo4j.ExecuteQuery(ctx, d.driver, query, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(d.database))
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(res.Records))
	for _, rec := range res.Records {
		rows = append(rows, rec.AsMap())
	}
	return rows, nil
}

func (d *driverRunner) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// Neo4jStore keeps chunks as :Chunk nodes and searches them through a
// native vector index created on first write, once the width is known.
type Neo4jStore struct {
	runner    cypherRunner
	index     string
	indexOnce sync.Once
	indexErr  error
}

// ErrNeo4jUnavailable is returned when operations are attempted without a configured driver.
var ErrNeo4jUnavailable = errors.New("neo4j driver not configured")

const neo4jVectorIndex = "agentflow_chunk_embeddings"

// NewNeo4jStore connects with basic auth and verifies connectivity.
func NewNeo4jStore(ctx context.Context, uri, user, password, database string) (*Neo4jStore, error) {
	if uri == "" {
		return nil, errors.New("neo4j uri is required")
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return newNeo4jStore(&driverRunner{driver: driver, database: database}), nil
}

func newNeo4jStore(runner cypherRunner) *Neo4jStore {
	return &Neo4jStore{runner: runner, index: neo4jVectorIndex}
}

func (s *Neo4jStore) ensureIndex(ctx context.Context, dims int) error {
	s.indexOnce.Do(func() {
		query := fmt.Sprintf("CREATE VECTOR INDEX %s IF NOT EXISTS FOR (c:Chunk) ON (c.embedding) "+
			"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}", s.index, dims)
		if _, err := s.runner.Run(ctx, query, nil); err != nil {
			s.indexErr = fmt.Errorf("neo4j vector index: %w", err)
			return
		}
		if _, err := s.runner.Run(ctx, "CREATE INDEX IF NOT EXISTS FOR (c:Chunk) ON (c.generation)", nil); err != nil {
			s.indexErr = fmt.Errorf("neo4j generation index: %w", err)
		}
	})
	return s.indexErr
}

func (s *Neo4jStore) StoreDocuments(ctx context.Context, docs []model.Document) error {
	if s.runner == nil {
		return ErrNeo4jUnavailable
	}
	if err := validateDocuments(docs); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	if err := s.ensureIndex(ctx, len(docs[0].Embedding)); err != nil {
		return err
	}
	rows := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, map[string]any{
			"generation": doc.Generation,
			"id":         doc.ID,
			"content":    doc.Content,
			"metadata":   model.EncodeMetadata(doc.Metadata),
			"embedding":  float64Embedding(doc.Embedding),
		})
	}
	_, err := s.runner.Run(ctx, `
		UNWIND $rows AS row
		MERGE (c:Chunk {generation: row.generation, id: row.id})
		SET c.content = row.content, c.metadata = row.metadata, c.embedding = row.embedding`,
		map[string]any{"rows": rows})
	if err != nil {
		return fmt.Errorf("neo4j store chunks: %w", err)
	}
	return nil
}

// SearchDocuments oversamples the vector index because the generation
// filter is applied after the nearest-neighbour lookup.
func (s *Neo4jStore) SearchDocuments(ctx context.Context, generation string, query []float32, limit int) ([]model.Match, error) {
	if s.runner == nil {
		return nil, ErrNeo4jUnavailable
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.runner.Run(ctx, `
		CALL db.index.vector.queryNodes($index, $candidates, $embedding)
		YIELD node, score
		WHERE node.generation = $generation
		RETURN node.id AS id, node.content AS content, node.metadata AS metadata, score
		ORDER BY score DESC
		LIMIT $limit`,
		map[string]any{
			"index":      s.index,
			"candidates": int64(limit * 10),
			"embedding":  float64Embedding(query),
			"generation": generation,
			"limit":      int64(limit),
		})
	if err != nil {
		return nil, fmt.Errorf("neo4j vector search: %w", err)
	}

	matches := make([]model.Match, 0, len(rows))
	for _, row := range rows {
		m := model.Match{Document: model.Document{
			ID:         model.StringFromAny(row["id"]),
			Generation: generation,
			Content:    model.StringFromAny(row["content"]),
			Metadata:   model.DecodeMetadata(model.StringFromAny(row["metadata"])),
		}}
		if score, ok := row["score"].(float64); ok {
			m.Score = score
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (s *Neo4jStore) DropGeneration(ctx context.Context, generation string) error {
	if s.runner == nil {
		return ErrNeo4jUnavailable
	}
	_, err := s.runner.Run(ctx, `MATCH (c:Chunk {generation: $generation}) DETACH DELETE c`,
		map[string]any{"generation": generation})
	return err
}

func (s *Neo4jStore) Count(ctx context.Context, generation string) (int, error) {
	if s.runner == nil {
		return 0, ErrNeo4jUnavailable
	}
	query := `MATCH (c:Chunk) RETURN count(c) AS n`
	params := map[string]any{}
	if generation != "" {
		query = `MATCH (c:Chunk {generation: $generation}) RETURN count(c) AS n`
		params["generation"] = generation
	}
	rows, err := s.runner.Run(ctx, query, params)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, _ := rows[0]["n"].(int64)
	return int(n), nil
}

func (s *Neo4jStore) Close() error {
	if s.runner == nil {
		return nil
	}
	return s.runner.Close(context.Background())
}
