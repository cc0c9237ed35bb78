package helpers

import (
	"fmt"
	"strings"

	agentflow "github.com/shahintaesheikh/agentflow"
)

// ToolNames renders the tool names for display.
func ToolNames(tools []agentflow.Tool) string {
	if len(tools) == 0 {
		return "<none>"
	}
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Spec().Name
	}
	return strings.Join(names, ", ")
}

func ParseCSVList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FormatProgress renders one progress update as a CLI line.
func FormatProgress(p agentflow.Progress) string {
	switch {
	case !p.HasPercent:
		return p.Message
	case p.Percent < 0:
		return "[  !!] " + p.Message
	default:
		return fmt.Sprintf("[%3d%%] %s", p.Percent, p.Message)
	}
}
