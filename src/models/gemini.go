package models

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// ---------------------------- Google Gemini ----------------------------------

type GeminiModel struct {
	Client    *genai.Client
	Model     string
	MaxTokens int
}

func NewGeminiModel(ctx context.Context, model string, maxTokens int) (*GeminiModel, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &GeminiModel{Client: client, Model: model, MaxTokens: maxTokens}, nil
}

func (g *GeminiModel) Send(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("gemini: empty conversation")
	}

	model := g.Client.GenerativeModel(g.Model)
	model.SetMaxOutputTokens(int32(g.MaxTokens))
	if system := strings.TrimSpace(req.System); system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: geminiDeclarations(req.Tools)}}
	}

	names := toolNamesByCallID(req.Messages)
	history := make([]*genai.Content, 0, len(req.Messages)-1)
	for _, msg := range req.Messages[:len(req.Messages)-1] {
		if content := geminiContent(msg, names); content != nil {
			history = append(history, content)
		}
	}
	last := geminiContent(req.Messages[len(req.Messages)-1], names)
	if last == nil {
		return Response{}, errors.New("gemini: last turn has no sendable parts")
	}

	cs := model.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return Response{}, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, errors.New("gemini: empty response")
	}

	candidate := resp.Candidates[0]
	var out Response
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			out.Content = append(out.Content, TextBlock(string(p)))
		case genai.FunctionCall:
			out.Content = append(out.Content, ToolUseBlock(newCallID(), p.Name, p.Args))
		case *genai.FunctionCall:
			out.Content = append(out.Content, ToolUseBlock(newCallID(), p.Name, p.Args))
		}
	}

	switch {
	case len(out.ToolCalls()) > 0:
		out.StopReason = StopToolUse
	case candidate.FinishReason == genai.FinishReasonMaxTokens:
		out.StopReason = StopMaxTokens
	case candidate.FinishReason == genai.FinishReasonStop:
		out.StopReason = StopEndTurn
	default:
		out.StopReason = StopOther
	}
	return out, nil
}

// Gemini has no call identifiers; the loop still needs one per request.
func newCallID() string {
	return "call_" + uuid.NewString()
}

func geminiContent(msg Message, names map[string]string) *genai.Content {
	role := "user"
	if msg.Role == RoleAssistant {
		role = "model"
	}
	parts := make([]genai.Part, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Kind {
		case BlockText:
			if block.Text != "" {
				parts = append(parts, genai.Text(block.Text))
			}
		case BlockImage:
			if block.Image == nil {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(block.Image.Data)
			if err != nil {
				continue
			}
			parts = append(parts, genai.Blob{MIMEType: block.Image.MediaType, Data: data})
		case BlockToolUse:
			if block.ToolUse != nil {
				parts = append(parts, genai.FunctionCall{Name: block.ToolUse.Name, Args: block.ToolUse.Input})
			}
		case BlockToolResult:
			if block.ToolResult == nil {
				continue
			}
			parts = append(parts, genai.FunctionResponse{
				Name:     names[block.ToolResult.CallID],
				Response: map[string]any{"content": block.ToolResult.Content},
			})
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return &genai.Content{Role: role, Parts: parts}
}

func geminiDeclarations(defs []ToolDefinition) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		out = append(out, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  geminiSchema(def.InputSchema),
		})
	}
	return out
}

func geminiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	out := &genai.Schema{Type: geminiType(schema["type"])}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props := schemaProperties(schema); len(props) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if prop, ok := raw.(map[string]any); ok {
				out.Properties[name] = geminiSchema(prop)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = geminiSchema(items)
	}
	out.Required = schemaRequired(schema)
	return out
}

func geminiType(v any) genai.Type {
	s, _ := v.(string)
	switch strings.ToLower(s) {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeObject
	}
}
