package agentflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type exportedResult struct {
	StructuredResult
	ExportedAt string `json:"exported_at"`
}

// ExportResult writes result as indented JSON with an exported_at timestamp.
func ExportResult(path string, result StructuredResult, now time.Time) error {
	if result.Sources == nil {
		result.Sources = []string{}
	}
	if result.ToolsUsed == nil {
		result.ToolsUsed = []string{}
	}
	payload, err := json.MarshalIndent(exportedResult{
		StructuredResult: result,
		ExportedAt:       now.Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}
