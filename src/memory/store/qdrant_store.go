package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shahintaesheikh/agentflow/src/memory/model"
)

// qdrantStatus supports both `status: "ok"` and `status: {"error":"..."}`.
type qdrantStatus struct {
	State string
	Error string
}

func (s *qdrantStatus) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.State = strings.ToLower(v)
		return nil
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Error != "" {
		s.State = "error"
		s.Error = obj.Error
	}
	return nil
}

type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Result T            `json:"result"`
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type qdrantScored struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// QdrantStore talks to Qdrant's REST API. The collection is created on the
// first write using the width of the first embedding.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client

	mu      sync.Mutex
	created bool
}

// pointNamespace derives stable point ids from (generation, id), since
// Qdrant only accepts integers and UUIDs.
var pointNamespace = uuid.MustParse("5f1d7c2e-8a0b-4b8e-9a55-2f0c6f3e9d41")

// NewQdrantStore creates a Qdrant-backed VectorStore implementation.
func NewQdrantStore(baseURL, collection, apiKey string) *QdrantStore {
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}
	if collection == "" {
		collection = defaultCollection
	}
	return &QdrantStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		collection: collection,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *QdrantStore) ensureCollection(ctx context.Context, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		return nil
	}
	body := map[string]any{"vectors": map[string]any{"size": dims, "distance": "Cosine"}}
	err := s.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(s.collection), body, nil)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	s.created = true
	return nil
}

func (s *QdrantStore) StoreDocuments(ctx context.Context, docs []model.Document) error {
	if err := validateDocuments(docs); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(docs[0].Embedding)); err != nil {
		return err
	}
	points := make([]qdrantPoint, 0, len(docs))
	for _, doc := range docs {
		points = append(points, qdrantPoint{
			ID:     uuid.NewSHA1(pointNamespace, []byte(doc.Generation+"/"+doc.ID)).String(),
			Vector: doc.Embedding,
			Payload: map[string]any{
				"generation": doc.Generation,
				"doc_id":     doc.ID,
				"content":    doc.Content,
				"metadata":   model.CloneMetadata(doc.Metadata),
			},
		})
	}
	return s.do(ctx, http.MethodPut, s.pointsPath("?wait=true"), map[string]any{"points": points}, nil)
}

func (s *QdrantStore) SearchDocuments(ctx context.Context, generation string, query []float32, limit int) ([]model.Match, error) {
	if limit <= 0 {
		return nil, nil
	}
	body := map[string]any{
		"vector":       query,
		"limit":        limit,
		"with_payload": true,
		"filter":       generationFilter(generation),
	}
	var scored []qdrantScored
	if err := s.do(ctx, http.MethodPost, s.pointsPath("/search"), body, &scored); err != nil {
		return nil, err
	}
	matches := make([]model.Match, 0, len(scored))
	for _, sp := range scored {
		doc := model.Document{
			ID:         model.StringFromAny(sp.Payload["doc_id"]),
			Generation: generation,
			Content:    model.StringFromAny(sp.Payload["content"]),
		}
		if meta, ok := sp.Payload["metadata"].(map[string]any); ok {
			doc.Metadata = meta
		}
		matches = append(matches, model.Match{Document: doc, Score: sp.Score})
	}
	return matches, nil
}

func (s *QdrantStore) DropGeneration(ctx context.Context, generation string) error {
	return s.do(ctx, http.MethodPost, s.pointsPath("/delete?wait=true"),
		map[string]any{"filter": generationFilter(generation)}, nil)
}

func (s *QdrantStore) Count(ctx context.Context, generation string) (int, error) {
	body := map[string]any{"exact": true}
	if generation != "" {
		body["filter"] = generationFilter(generation)
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := s.do(ctx, http.MethodPost, s.pointsPath("/count"), body, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (s *QdrantStore) Close() error { return nil }

func (s *QdrantStore) pointsPath(suffix string) string {
	return "/collections/" + url.PathEscape(s.collection) + "/points" + suffix
}

func generationFilter(generation string) map[string]any {
	return map[string]any{"must": []any{
		map[string]any{"key": "generation", "match": map[string]any{"value": generation}},
	}}
}

func (s *QdrantStore) do(ctx context.Context, method, path string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env qdrantEnvelope[json.RawMessage]
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("qdrant %s %s: decode: %w", method, path, err)
		}
	}
	if resp.StatusCode/100 != 2 || env.Status.State == "error" {
		msg := env.Status.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("qdrant %s %s: decode result: %w", method, path, err)
		}
	}
	return nil
}
