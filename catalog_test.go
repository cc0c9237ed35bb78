package agentflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func newCatalog(t *testing.T, tools ...Tool) *ToolCatalog {
	t.Helper()
	c, err := NewToolCatalog(quietLogger, tools...)
	if err != nil {
		t.Fatalf("NewToolCatalog: %v", err)
	}
	return c
}

func TestCatalogSpecsKeepRegistrationOrder(t *testing.T) {
	c := newCatalog(t,
		&stubTool{name: "search", required: []string{"query"}},
		&stubTool{name: "wikipedia", required: []string{"query"}},
		&stubTool{name: "save", required: []string{"data"}},
	)
	for i := 0; i < 3; i++ {
		if got := strings.Join(c.Names(), ","); got != "search,wikipedia,save" {
			t.Fatalf("unexpected order %q", got)
		}
	}
	defs := c.Definitions()
	if len(defs) != 3 || defs[2].Name != "save" || defs[2].InputSchema["required"] == nil {
		t.Fatalf("unexpected definitions %+v", defs)
	}
}

func TestCatalogRejectsDuplicatesAndBlankNames(t *testing.T) {
	c := newCatalog(t, &stubTool{name: "search"})
	if err := c.Register(&stubTool{name: "SEARCH"}); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if err := c.Register(&stubTool{name: "  "}); err == nil {
		t.Fatalf("expected blank name error")
	}
	if err := c.Register(nil); err == nil {
		t.Fatalf("expected nil tool error")
	}
	if _, _, ok := c.Lookup("Search"); !ok {
		t.Fatalf("lookup should be case-insensitive")
	}
}

func TestCatalogInvokeUnknownTool(t *testing.T) {
	c := newCatalog(t, &stubTool{name: "search"}, &stubTool{name: "wikipedia"}, &stubTool{name: "save"}, &stubTool{name: "semantic_search"})
	got := c.Invoke(context.Background(), "weather", nil)
	want := "Error: Tool 'weather' not found. Available tools: search, wikipedia, save, semantic_search"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestCatalogInvokeMissingRequired(t *testing.T) {
	tool := &stubTool{name: "search", required: []string{"query"}}
	c := newCatalog(t, tool)
	cases := []map[string]any{
		nil,
		{},
		{"query": ""},
		{"query": "   "},
		{"query": nil},
	}
	for _, input := range cases {
		if got := c.Invoke(context.Background(), "search", input); got != "Error: search query is required" {
			t.Fatalf("input %v: got %q", input, got)
		}
	}
	if len(tool.calls) != 0 {
		t.Fatalf("tool must not run when validation fails")
	}
	if got := c.Invoke(context.Background(), "search", map[string]any{"query": "tides"}); got != "search: tides" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestCatalogInvokeProviderError(t *testing.T) {
	c := newCatalog(t, &stubTool{name: "wikipedia", err: errors.New("HTTP 503")})
	got := c.Invoke(context.Background(), "wikipedia", map[string]any{"query": "x"})
	if got != "Error executing tool 'wikipedia': HTTP 503" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestCatalogInvokeRecoversPanics(t *testing.T) {
	c := newCatalog(t, &stubTool{name: "search", panics: true})
	got := c.Invoke(context.Background(), "search", map[string]any{"query": "x"})
	if !strings.HasPrefix(got, "Error executing tool 'search': panic: tool exploded") {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestCatalogTruncatesLongOutput(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   string
	}{
		{"exactly limit", strings.Repeat("a", 1000), strings.Repeat("a", 1000)},
		{"one over", strings.Repeat("b", 1001), strings.Repeat("b", 800) + "\n[...truncated...]"},
		{"multibyte", strings.Repeat("é", 1200), strings.Repeat("é", 800) + "\n[...truncated...]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newCatalog(t, &stubTool{name: "search", output: tc.output})
			got := c.Invoke(context.Background(), "search", map[string]any{"query": "x"})
			if got != tc.want {
				t.Fatalf("got %d runes, want %d", utf8.RuneCountInString(got), utf8.RuneCountInString(tc.want))
			}
		})
	}
}
