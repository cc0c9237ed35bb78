package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shahintaesheikh/agentflow/src/memory/model"
	"github.com/shahintaesheikh/agentflow/src/memory/store"
)

// keywordEmbedder maps text onto three axes so rankings are predictable.
type keywordEmbedder struct{ fail string }

func (k keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if k.fail != "" && strings.Contains(text, k.fail) {
		return nil, errors.New("embedding failed")
	}
	vec := []float32{0.01, 0.01, 0.01}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "ocean") {
		vec[0] = 1
	}
	if strings.Contains(lower, "volcano") {
		vec[1] = 1
	}
	if strings.Contains(lower, "forest") {
		vec[2] = 1
	}
	return vec, nil
}

func docs(texts ...string) []model.Document {
	out := make([]model.Document, len(texts))
	for i, text := range texts {
		out[i] = model.Document{Content: text, Metadata: map[string]any{"n": i}}
	}
	return out
}

func TestSearchBeforeBuild(t *testing.T) {
	ix := NewIndex(store.NewInMemoryStore(), keywordEmbedder{})
	if _, err := ix.Search(context.Background(), "ocean", 3); !errors.Is(err, ErrIndexNotInitialized) {
		t.Fatalf("expected ErrIndexNotInitialized, got %v", err)
	}
	if _, ok := ix.Current(); ok {
		t.Fatalf("no generation should be published")
	}
}

func TestBuildAndSearch(t *testing.T) {
	ix := NewIndex(store.NewInMemoryStore(), keywordEmbedder{})
	gen, err := ix.Build(context.Background(), docs("ocean tides", "volcano eruptions", "forest canopy"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if gen.Documents != 3 || gen.ID == "" {
		t.Fatalf("unexpected generation %+v", gen)
	}
	matches, err := ix.Search(context.Background(), "volcano", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].Content != "volcano eruptions" {
		t.Fatalf("unexpected matches %+v", matches)
	}
	if matches[0].ID != "doc-1" {
		t.Fatalf("expected generated id doc-1, got %q", matches[0].ID)
	}
}

func TestRebuildKeepsOnePreviousGeneration(t *testing.T) {
	vs := store.NewInMemoryStore()
	ix := NewIndex(vs, keywordEmbedder{})
	ctx := context.Background()

	first, _ := ix.Build(ctx, docs("ocean"))
	second, _ := ix.Build(ctx, docs("volcano", "forest"))
	if n, _ := vs.Count(ctx, first.ID); n != 1 {
		t.Fatalf("previous generation should survive one rebuild, has %d docs", n)
	}
	if _, err := ix.Build(ctx, docs("forest")); err != nil {
		t.Fatalf("third build: %v", err)
	}
	if n, _ := vs.Count(ctx, first.ID); n != 0 {
		t.Fatalf("oldest generation should be dropped, has %d docs", n)
	}
	if n, _ := vs.Count(ctx, second.ID); n != 2 {
		t.Fatalf("previous generation should remain, has %d docs", n)
	}
}

func TestFailedBuildKeepsPublishedGeneration(t *testing.T) {
	vs := store.NewInMemoryStore()
	ix := NewIndex(vs, keywordEmbedder{fail: "poison"})
	ctx := context.Background()

	good, err := ix.Build(ctx, docs("ocean"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := ix.Build(ctx, docs("forest", "poison")); err == nil {
		t.Fatalf("expected build failure")
	}
	cur, ok := ix.Current()
	if !ok || cur.ID != good.ID {
		t.Fatalf("failed build must not replace the published generation")
	}
	if n, _ := vs.Count(ctx, ""); n != 1 {
		t.Fatalf("failed build left %d documents behind", n)
	}
	if _, err := ix.Build(ctx, nil); err == nil {
		t.Fatalf("expected error for empty build")
	}
}

func TestConcurrentReadersDuringRebuild(t *testing.T) {
	ix := NewIndex(store.NewInMemoryStore(), keywordEmbedder{})
	ctx := context.Background()
	if _, err := ix.Build(ctx, docs("ocean one", "ocean two")); err != nil {
		t.Fatalf("Build: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				matches, err := ix.Search(ctx, "ocean", 5)
				if err != nil {
					errs <- err
					return
				}
				if n := len(matches); n != 2 && n != 3 {
					errs <- errors.New("reader observed a partial generation")
					return
				}
			}
		}()
	}
	if _, err := ix.Build(ctx, docs("ocean a", "ocean b", "ocean c")); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
