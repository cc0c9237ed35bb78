package models

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// ---------------------------- Ollama -----------------------------------------

type OllamaModel struct {
	Client *ollama.Client
	Model  string
}

func NewOllamaModel(model string) (*OllamaModel, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}

	httpClient := &http.Client{
		Timeout: 5 * time.Minute,
	}
	return &OllamaModel{Client: ollama.NewClient(u, httpClient), Model: model}, nil
}

// ollamaWireMessage mirrors the JSON shape of ollama's chat message. Requests
// and replies are round-tripped through it so the adapter does not depend on
// the Go field layout of the tool types, which moves between releases.
type ollamaWireMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Images    []string         `json:"images,omitempty"`
	ToolCalls []ollamaWireCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaWireCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

func (o *OllamaModel) Send(ctx context.Context, req Request) (Response, error) {
	messages, err := ollamaMessages(req.System, req.Messages)
	if err != nil {
		return Response{}, err
	}
	tools, err := ollamaTools(req.Tools)
	if err != nil {
		return Response{}, err
	}

	stream := false
	chatReq := &ollama.ChatRequest{
		Model:    o.Model,
		Messages: messages,
		Tools:    tools,
		Stream:   &stream,
	}

	var last ollama.ChatResponse
	if err := o.Client.Chat(ctx, chatReq, func(cr ollama.ChatResponse) error {
		last = cr
		return nil
	}); err != nil {
		return Response{}, fmt.Errorf("ollama chat: %w", err)
	}

	raw, err := json.Marshal(last.Message)
	if err != nil {
		return Response{}, fmt.Errorf("ollama chat: encode reply: %w", err)
	}
	var wire ollamaWireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Response{}, fmt.Errorf("ollama chat: decode reply: %w", err)
	}

	var out Response
	if wire.Content != "" {
		out.Content = append(out.Content, TextBlock(wire.Content))
	}
	for _, call := range wire.ToolCalls {
		out.Content = append(out.Content, ToolUseBlock(newCallID(), call.Function.Name, call.Function.Arguments))
	}
	switch {
	case len(wire.ToolCalls) > 0:
		out.StopReason = StopToolUse
	case last.DoneReason == "length":
		out.StopReason = StopMaxTokens
	default:
		out.StopReason = StopEndTurn
	}
	return out, nil
}

func ollamaMessages(system string, messages []Message) ([]ollama.Message, error) {
	names := toolNamesByCallID(messages)
	wire := make([]ollamaWireMessage, 0, len(messages)+1)
	if system != "" {
		wire = append(wire, ollamaWireMessage{Role: "system", Content: system})
	}
	for _, msg := range messages {
		current := ollamaWireMessage{Role: string(msg.Role)}
		for _, block := range msg.Content {
			switch block.Kind {
			case BlockText:
				if current.Content != "" {
					current.Content += "\n"
				}
				current.Content += block.Text
			case BlockImage:
				if block.Image != nil {
					current.Images = append(current.Images, block.Image.Data)
				}
			case BlockToolUse:
				if block.ToolUse == nil {
					continue
				}
				var call ollamaWireCall
				call.Function.Name = block.ToolUse.Name
				call.Function.Arguments = block.ToolUse.Input
				current.ToolCalls = append(current.ToolCalls, call)
			case BlockToolResult:
				if block.ToolResult == nil {
					continue
				}
				wire = append(wire, ollamaWireMessage{
					Role:     "tool",
					Content:  block.ToolResult.Content,
					ToolName: names[block.ToolResult.CallID],
				})
			}
		}
		if current.Content != "" || len(current.Images) > 0 || len(current.ToolCalls) > 0 {
			wire = append(wire, current)
		}
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("ollama: encode messages: %w", err)
	}
	var out []ollama.Message
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("ollama: decode messages: %w", err)
	}
	return out, nil
}

func ollamaTools(defs []ToolDefinition) (ollama.Tools, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	wire := make([]map[string]any, 0, len(defs))
	for _, def := range defs {
		wire = append(wire, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        def.Name,
				"description": def.Description,
				"parameters":  def.InputSchema,
			},
		})
	}
	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("ollama: encode tools: %w", err)
	}
	var tools ollama.Tools
	if err := json.Unmarshal(raw, &tools); err != nil {
		return nil, fmt.Errorf("ollama: decode tools: %w", err)
	}
	return tools, nil
}
