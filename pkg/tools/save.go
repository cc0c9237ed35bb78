package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	agentflow "github.com/shahintaesheikh/agentflow"
)

const (
	DefaultSaveFile  = "research_output.txt"
	saveTimestampFmt = "02/01/2006, 15:04:05"
)

var errEscapesSaveDir = errors.New("filename must stay inside the save directory")

// SaveTool appends research notes to a file in the save directory.
type SaveTool struct {
	caps Capabilities
}

func (s *SaveTool) Spec() agentflow.ToolSpec {
	return agentflow.ToolSpec{
		Name:        "save",
		Description: "Save research findings to a text file for later reference.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"data": map[string]any{
					"type":        "string",
					"description": "The research data/summary to save",
				},
				"filename": map[string]any{
					"type":        "string",
					"description": "The filename to save to (default: research_output.txt)",
				},
			},
			"required": []any{"data"},
		},
	}
}

func (s *SaveTool) Invoke(_ context.Context, req agentflow.ToolRequest) (agentflow.ToolResponse, error) {
	data, _ := req.Arguments["data"].(string)
	if data == "" && req.Arguments["data"] != nil {
		data = fmt.Sprint(req.Arguments["data"])
	}
	filename := stringArg(req.Arguments, "filename")
	if filename == "" {
		filename = DefaultSaveFile
	}

	path, err := s.resolve(filename)
	if err != nil {
		return agentflow.ToolResponse{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return agentflow.ToolResponse{}, fmt.Errorf("create save dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return agentflow.ToolResponse{}, fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	entry := fmt.Sprintf("-- Research Output -- \nTimestamp: %s\n\n%s\n\n", s.caps.Now().Format(saveTimestampFmt), data)
	if _, err := f.WriteString(entry); err != nil {
		return agentflow.ToolResponse{}, fmt.Errorf("write %s: %w", filename, err)
	}
	s.caps.Logger.Info("research notes saved", "file", path, "bytes", len(entry))
	return agentflow.ToolResponse{
		Content:  "Data successfully saved to " + filename,
		Metadata: map[string]string{"path": path},
	}, nil
}

func (s *SaveTool) resolve(filename string) (string, error) {
	clean := filepath.Clean(filename)
	if filepath.IsAbs(clean) || !filepath.IsLocal(clean) {
		return "", errEscapesSaveDir
	}
	return filepath.Join(s.caps.SaveDir, clean), nil
}
