package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shahintaesheikh/agentflow/src/memory/model"
)

// InMemoryStore implements VectorStore for tests and lightweight deployments.
type InMemoryStore struct {
	mu          sync.RWMutex
	generations map[string]map[string]model.Document
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{generations: make(map[string]map[string]model.Document)}
}

func (s *InMemoryStore) StoreDocuments(_ context.Context, docs []model.Document) error {
	if err := validateDocuments(docs); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		gen, ok := s.generations[doc.Generation]
		if !ok {
			gen = make(map[string]model.Document)
			s.generations[doc.Generation] = gen
		}
		doc.Metadata = model.CloneMetadata(doc.Metadata)
		doc.Embedding = append([]float32(nil), doc.Embedding...)
		gen[doc.ID] = doc
	}
	return nil
}

func (s *InMemoryStore) SearchDocuments(_ context.Context, generation string, query []float32, limit int) ([]model.Match, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	gen := s.generations[generation]
	matches := make([]model.Match, 0, len(gen))
	for _, doc := range gen {
		matches = append(matches, model.Match{Document: doc, Score: model.CosineSimilarity(query, doc.Embedding)})
	}
	sortMatches(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *InMemoryStore) DropGeneration(_ context.Context, generation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.generations, generation)
	return nil
}

func (s *InMemoryStore) Count(_ context.Context, generation string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if generation != "" {
		return len(s.generations[generation]), nil
	}
	total := 0
	for _, gen := range s.generations {
		total += len(gen)
	}
	return total, nil
}

func (s *InMemoryStore) Close() error { return nil }

// sortMatches orders by descending score, then id for stable output.
func sortMatches(matches []model.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
}
