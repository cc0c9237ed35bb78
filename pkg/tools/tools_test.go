package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	agentflow "github.com/shahintaesheikh/agentflow"
	"github.com/shahintaesheikh/agentflow/src/cache"
	"github.com/shahintaesheikh/agentflow/src/memory"
	"github.com/shahintaesheikh/agentflow/src/memory/model"
	utcptools "github.com/universal-tool-calling-protocol/go-utcp/src/tools"
)

func invoke(t *testing.T, tool agentflow.Tool, args map[string]any) (agentflow.ToolResponse, error) {
	t.Helper()
	return tool.Invoke(context.Background(), agentflow.ToolRequest{Arguments: args})
}

func TestBuiltinsOrder(t *testing.T) {
	var names []string
	for _, tool := range Builtins(Capabilities{}) {
		names = append(names, tool.Spec().Name)
	}
	if got := strings.Join(names, ","); got != "search,wikipedia,save,semantic_search" {
		t.Fatalf("unexpected tool order %s", got)
	}
}

func TestBuiltinsRegisterInCatalog(t *testing.T) {
	catalog, err := agentflow.NewToolCatalog(nil, Builtins(Capabilities{})...)
	if err != nil {
		t.Fatalf("NewToolCatalog: %v", err)
	}
	out := catalog.Invoke(context.Background(), "save", map[string]any{"filename": "x.txt"})
	if out != "Error: save data is required" {
		t.Fatalf("unexpected output %q", out)
	}
}

const ddgPage = `<html><body>
<div class="result results_links">
  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.org%2Ftides&amp;rut=abc">Tides <b>explained</b></a></h2>
  <a class="result__snippet" href="#">The moon pulls   the oceans.</a>
</div>
<div class="result">
  <h2><a class="result__a" href="https://example.com/plain">Plain link</a></h2>
</div>
</body></html>`

func TestSearchTool(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("q") != "tides" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		fmt.Fprint(w, ddgPage)
	}))
	defer srv.Close()

	tool := &SearchTool{caps: Capabilities{SearchURL: srv.URL, Cache: cache.NewLRUCache(8, time.Minute)}.withDefaults()}
	resp, err := invoke(t, tool, map[string]any{"query": "tides"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	want := "Tides explained: The moon pulls the oceans. (https://example.org/tides)\nPlain link (https://example.com/plain)"
	if resp.Content != want {
		t.Fatalf("unexpected content:\n%s", resp.Content)
	}
	if _, err := invoke(t, tool, map[string]any{"query": "Tides"}); err != nil {
		t.Fatalf("cached Invoke: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected cached second lookup, got %d requests", hits.Load())
	}
}

func TestSearchToolNoResultsAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "fail" {
			http.Error(w, "blocked", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, "<html><body>nothing</body></html>")
	}))
	defer srv.Close()
	tool := &SearchTool{caps: Capabilities{SearchURL: srv.URL}.withDefaults()}

	resp, err := invoke(t, tool, map[string]any{"query": "obscure"})
	if err != nil || resp.Content != noSearchResults {
		t.Fatalf("unexpected %q %v", resp.Content, err)
	}
	if _, err := invoke(t, tool, map[string]any{"query": "fail"}); err == nil {
		t.Fatal("expected HTTP error")
	}
}

func TestParseSearchResultsLimit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, `<a class="result__a" href="https://e.org/%d">r%d</a><div class="result__snippet">s%d</div>`, i, i, i)
	}
	results, err := parseSearchResults(strings.NewReader(b.String()), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 || results[4].Snippet != "s4" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestWikipediaTool(t *testing.T) {
	long := strings.Repeat("x", 2000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("list") == "search":
			if q.Get("srlimit") != "5" {
				t.Errorf("expected top 5, got %s", q.Get("srlimit"))
			}
			fmt.Fprint(w, `{"query":{"search":[{"title":"Tide"},{"title":"Moon"},{"title":"Gone"}]}}`)
		case q.Get("prop") == "extracts":
			if q.Get("titles") != "Tide|Moon|Gone" {
				t.Errorf("unexpected titles %q", q.Get("titles"))
			}
			fmt.Fprintf(w, `{"query":{"pages":{
				"1":{"title":"Moon","extract":"%s"},
				"2":{"title":"Tide","extract":"Tides are the rise and fall of sea levels."},
				"-1":{"title":"Gone","missing":true}}}}`, long)
		default:
			t.Errorf("unexpected request %s", r.URL.RawQuery)
		}
	}))
	defer srv.Close()

	tool := &WikipediaTool{caps: Capabilities{WikipediaURL: srv.URL}.withDefaults()}
	resp, err := invoke(t, tool, map[string]any{"query": "tides"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	parts := strings.Split(resp.Content, "\n\n")
	if len(parts) != 2 {
		t.Fatalf("expected two excerpts, got %d:\n%s", len(parts), resp.Content)
	}
	if parts[0] != "Page: Tide\nSummary: Tides are the rise and fall of sea levels." {
		t.Fatalf("unexpected first excerpt %q", parts[0])
	}
	if !strings.HasPrefix(parts[1], "Page: Moon\nSummary: xxx") || len([]rune(parts[1])) != maxExcerptChars {
		t.Fatalf("second excerpt not capped: %d runes", len([]rune(parts[1])))
	}
}

func TestWikipediaToolNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{"search":[]}}`)
	}))
	defer srv.Close()
	tool := &WikipediaTool{caps: Capabilities{WikipediaURL: srv.URL}.withDefaults()}
	resp, err := invoke(t, tool, map[string]any{"query": "qwzx"})
	if err != nil || resp.Content != noWikipediaResults {
		t.Fatalf("unexpected %q %v", resp.Content, err)
	}
}

func TestSaveToolAppends(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	tool := &SaveTool{caps: Capabilities{SaveDir: dir, Now: func() time.Time { return now }}.withDefaults()}

	for _, data := range []string{"first", "second"} {
		resp, err := invoke(t, tool, map[string]any{"data": data})
		if err != nil {
			t.Fatalf("Invoke: %v", err)
		}
		if resp.Content != "Data successfully saved to research_output.txt" {
			t.Fatalf("unexpected content %q", resp.Content)
		}
	}
	raw, err := os.ReadFile(filepath.Join(dir, DefaultSaveFile))
	if err != nil {
		t.Fatal(err)
	}
	entry := "-- Research Output -- \nTimestamp: 05/03/2024, 14:07:09\n\n%s\n\n"
	want := fmt.Sprintf(entry, "first") + fmt.Sprintf(entry, "second")
	if string(raw) != want {
		t.Fatalf("unexpected file contents:\n%q", raw)
	}
}

func TestSaveToolCustomFilename(t *testing.T) {
	dir := t.TempDir()
	tool := &SaveTool{caps: Capabilities{SaveDir: dir}.withDefaults()}
	resp, err := invoke(t, tool, map[string]any{"data": "notes", "filename": "topics/tides.txt"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Content != "Data successfully saved to topics/tides.txt" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if _, err := os.Stat(filepath.Join(dir, "topics", "tides.txt")); err != nil {
		t.Fatalf("file not written: %v", err)
	}
}

func TestSaveToolRejectsEscapes(t *testing.T) {
	tool := &SaveTool{caps: Capabilities{SaveDir: t.TempDir()}.withDefaults()}
	for _, name := range []string{"../outside.txt", "/etc/passwd", "a/../../b.txt"} {
		if _, err := invoke(t, tool, map[string]any{"data": "x", "filename": name}); !errors.Is(err, errEscapesSaveDir) {
			t.Fatalf("%s: expected escape error, got %v", name, err)
		}
	}
}

type fakeSearcher struct {
	gotK    int
	matches []model.Match
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, k int) ([]model.Match, error) {
	f.gotK = k
	return f.matches, f.err
}

func TestSemanticSearchTool(t *testing.T) {
	idx := &fakeSearcher{matches: []model.Match{
		{Document: model.Document{ID: "a", Content: " Tides follow the moon. ", Metadata: map[string]any{"source": "notes.txt"}}, Score: 0.912},
		{Document: model.Document{ID: "b", Content: "Spring tides."}, Score: 0.5},
	}}
	tool := &SemanticSearchTool{caps: Capabilities{Index: idx}.withDefaults()}

	resp, err := invoke(t, tool, map[string]any{"query": "tides"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if idx.gotK != defaultSemanticK {
		t.Fatalf("expected default k, got %d", idx.gotK)
	}
	want := "[1] notes.txt (score 0.91)\nTides follow the moon.\n\n[2] b (score 0.50)\nSpring tides."
	if resp.Content != want {
		t.Fatalf("unexpected content:\n%s", resp.Content)
	}
	if _, err := invoke(t, tool, map[string]any{"query": "tides", "k": float64(2)}); err != nil || idx.gotK != 2 {
		t.Fatalf("k not honoured: %d %v", idx.gotK, err)
	}
	if _, err := invoke(t, tool, map[string]any{"query": "tides", "k": "many"}); err == nil {
		t.Fatal("expected invalid k error")
	}
}

func TestSemanticSearchWithoutIndex(t *testing.T) {
	tool := &SemanticSearchTool{caps: Capabilities{}.withDefaults()}
	if _, err := invoke(t, tool, map[string]any{"query": "x"}); !errors.Is(err, memory.ErrIndexNotInitialized) {
		t.Fatalf("expected ErrIndexNotInitialized, got %v", err)
	}
	idx := &fakeSearcher{err: memory.ErrIndexNotInitialized}
	tool = &SemanticSearchTool{caps: Capabilities{Index: idx}.withDefaults()}
	if _, err := invoke(t, tool, map[string]any{"query": "x"}); !errors.Is(err, memory.ErrIndexNotInitialized) {
		t.Fatalf("expected ErrIndexNotInitialized, got %v", err)
	}
}

type fakeUTCP struct {
	tools  []utcptools.Tool
	called string
	args   map[string]any
}

func (f *fakeUTCP) SearchTools(string, int) ([]utcptools.Tool, error) { return f.tools, nil }

func (f *fakeUTCP) CallTool(_ context.Context, name string, args map[string]any) (any, error) {
	f.called, f.args = name, args
	return map[string]any{"ok": true}, nil
}

func TestRemoteTools(t *testing.T) {
	client := &fakeUTCP{tools: []utcptools.Tool{
		{Name: "weather.lookup", Description: "Weather", Inputs: utcptools.ToolInputOutputSchema{
			Type:       "object",
			Properties: map[string]any{"city": map[string]any{"type": "string"}},
			Required:   []string{"city"},
		}},
		{Name: " "},
	}}
	remote, err := RemoteTools(client, 0)
	if err != nil {
		t.Fatalf("RemoteTools: %v", err)
	}
	if len(remote) != 1 {
		t.Fatalf("expected one tool, got %d", len(remote))
	}
	spec := remote[0].Spec()
	if spec.Name != "weather.lookup" || spec.InputSchema["required"].([]any)[0] != "city" {
		t.Fatalf("unexpected spec %+v", spec)
	}
	resp, err := invoke(t, remote[0], map[string]any{"city": "Oslo"})
	if err != nil || resp.Content != `{"ok":true}` || client.called != "weather.lookup" || client.args["city"] != "Oslo" {
		t.Fatalf("unexpected call %q %v", resp.Content, err)
	}
}

func TestMergeRemoteSkipsTakenNames(t *testing.T) {
	client := &fakeUTCP{tools: []utcptools.Tool{
		{Name: "search", Description: "remote search"},
		{Name: "Save"},
		{Name: "weather.lookup"},
		{Name: "WEATHER.lookup"},
	}}
	remote, err := RemoteTools(client, 0)
	if err != nil {
		t.Fatalf("RemoteTools: %v", err)
	}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	merged := MergeRemote(Builtins(Capabilities{}), remote, logger)
	var names []string
	for _, tool := range merged {
		names = append(names, tool.Spec().Name)
	}
	if got := strings.Join(names, ","); got != "search,wikipedia,save,semantic_search,weather.lookup" {
		t.Fatalf("unexpected tools %s", got)
	}
	if _, err := agentflow.NewToolCatalog(logger, merged...); err != nil {
		t.Fatalf("merged tools must register cleanly: %v", err)
	}
	if strings.Count(logs.String(), "remote tool shadows builtin") != 3 {
		t.Fatalf("expected a warning per dropped tool, got:\n%s", logs.String())
	}
	if _, ok := merged[0].(*SearchTool); !ok {
		t.Fatal("builtin search must win over the remote one")
	}
}
