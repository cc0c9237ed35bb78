package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	agentflow "github.com/shahintaesheikh/agentflow"
	"github.com/shahintaesheikh/agentflow/src/memory"
	"github.com/shahintaesheikh/agentflow/src/memory/model"
)

const (
	defaultSemanticK = 4
	maxSemanticK     = 20
)

// SemanticSearchTool ranks indexed document chunks by embedding similarity.
type SemanticSearchTool struct {
	caps Capabilities
}

func (s *SemanticSearchTool) Spec() agentflow.ToolSpec {
	return agentflow.ToolSpec{
		Name:        "semantic_search",
		Description: "Search the locally indexed documents for passages related to a query. Use this when the user refers to their own files.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to look for in the indexed documents",
				},
				"k": map[string]any{
					"type":        "integer",
					"description": "How many passages to return (default: 4)",
				},
			},
			"required": []any{"query"},
		},
	}
}

func (s *SemanticSearchTool) Invoke(ctx context.Context, req agentflow.ToolRequest) (agentflow.ToolResponse, error) {
	query := stringArg(req.Arguments, "query")
	if query == "" {
		return agentflow.ToolResponse{}, fmt.Errorf("missing 'query' argument")
	}
	k, err := intArg(req.Arguments, "k", defaultSemanticK)
	if err != nil {
		return agentflow.ToolResponse{}, err
	}
	if s.caps.Index == nil {
		return agentflow.ToolResponse{}, memory.ErrIndexNotInitialized
	}

	matches, err := s.caps.Index.Search(ctx, query, k)
	if err != nil {
		return agentflow.ToolResponse{}, err
	}
	if len(matches) == 0 {
		return agentflow.ToolResponse{Content: "No indexed passages matched the query"}, nil
	}
	return agentflow.ToolResponse{Content: formatMatches(matches)}, nil
}

func formatMatches(matches []model.Match) string {
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		source := model.StringFromAny(m.Metadata["source"])
		if source == "" {
			source = m.ID
		}
		fmt.Fprintf(&b, "[%d] %s (score %.2f)\n%s", i+1, source, m.Score, strings.TrimSpace(m.Content))
	}
	return b.String()
}

func intArg(args map[string]any, key string, def int) (int, error) {
	var n int
	switch v := args[key].(type) {
	case nil:
		return def, nil
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("invalid %s: %v", key, v)
	}
	if n < 1 {
		return def, nil
	}
	if n > maxSemanticK {
		n = maxSemanticK
	}
	return n, nil
}
