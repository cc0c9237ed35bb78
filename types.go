package agentflow

import (
	"context"
	"errors"
)

// ToolSpec describes how the agent presents a tool to the model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolRequest captures an invocation request for a tool.
type ToolRequest struct {
	Arguments map[string]any
}

// ToolResponse represents the response returned by a tool.
type ToolResponse struct {
	Content  string
	Metadata map[string]string
}

// Tool exposes structured metadata and an invocation handler.
type Tool interface {
	Spec() ToolSpec
	Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error)
}

// Progress is one status update from a running research task. Percent is
// in [0, 100] for normal updates and -1 for terminal error or cancellation.
// Plain notices such as a skipped image carry no percentage.
type Progress struct {
	Message    string
	Percent    int
	HasPercent bool
}

// ProgressFunc receives progress updates. Implementations must not assume
// they are called from the goroutine that started the task.
type ProgressFunc func(Progress)

func progressAt(msg string, pct int) Progress {
	return Progress{Message: msg, Percent: pct, HasPercent: true}
}

func notice(msg string) Progress {
	return Progress{Message: msg}
}

var (
	ErrEmptyQuery           = errors.New("query is empty")
	ErrInvalidMaxIterations = errors.New("max iterations must be at least 1")
	ErrTaskRunning          = errors.New("a research task is already running")
	ErrNilModel             = errors.New("agent requires a language model")
)
