package agentflow

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExportResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

	if err := ExportResult(path, StructuredResult{Topic: "Tides", Summary: "s"}, now); err != nil {
		t.Fatalf("ExportResult: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if got["topic"] != "Tides" || got["exported_at"] != "2024-03-05T14:07:09Z" {
		t.Fatalf("unexpected export %v", got)
	}
	if sources, ok := got["sources"].([]any); !ok || len(sources) != 0 {
		t.Fatalf("sources should be an empty array, got %v", got["sources"])
	}
	if tools, ok := got["tools_used"].([]any); !ok || len(tools) != 0 {
		t.Fatalf("tools_used should be an empty array, got %v", got["tools_used"])
	}
}
