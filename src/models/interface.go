package models

import (
	"context"
	"fmt"
)

// Model is the language-model boundary used by the agent loop: send the
// whole conversation plus the advertised tools, get back either a final
// answer or a set of requested tool calls.
type Model interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// ToolDefinition advertises one callable tool to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Request is one round trip to the model.
type Request struct {
	System   string           `json:"system"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
	Messages []Message        `json:"messages"`
}

// Response is the decoded model reply.
type Response struct {
	Content    []ContentBlock `json:"content"`
	StopReason StopReason     `json:"stop_reason"`
}

// StopReason reports why the model stopped producing output.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
	StopOther        StopReason = "other"
)

// Validate checks every block of the reply.
func (r Response) Validate() error {
	for i, block := range r.Content {
		if err := block.Validate(); err != nil {
			return fmt.Errorf("content block %d: %w", i, err)
		}
	}
	return nil
}

// FirstText returns the first text block of the reply, or "" when the reply
// carries no text.
func (r Response) FirstText() string {
	for _, block := range r.Content {
		if block.Kind == BlockText {
			return block.Text
		}
	}
	return ""
}

// ToolCalls returns every tool_use block in reply order.
func (r Response) ToolCalls() []ToolUse {
	var calls []ToolUse
	for _, block := range r.Content {
		if block.Kind == BlockToolUse && block.ToolUse != nil {
			calls = append(calls, *block.ToolUse)
		}
	}
	return calls
}
