package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAIModel struct {
	Client    *openai.Client
	Model     string
	MaxTokens int
}

func NewOpenAIModel(model string, maxTokens int) *OpenAIModel {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_KEY") // fallback
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	client := openai.NewClient(apiKey)
	return &OpenAIModel{Client: client, Model: model, MaxTokens: maxTokens}
}

func (o *OpenAIModel) Send(ctx context.Context, req Request) (Response, error) {
	resp, err := o.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.Model,
		MaxTokens: o.MaxTokens,
		Messages:  openAIMessages(req.System, req.Messages),
		Tools:     openAITools(req.Tools),
	})
	if err != nil {
		return Response{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("no response from OpenAI")
	}

	choice := resp.Choices[0]
	var out Response
	if choice.Message.Content != "" {
		out.Content = append(out.Content, TextBlock(choice.Message.Content))
	}
	for _, call := range choice.Message.ToolCalls {
		input := map[string]any{}
		if args := strings.TrimSpace(call.Function.Arguments); args != "" {
			if err := json.Unmarshal([]byte(args), &input); err != nil {
				return Response{}, fmt.Errorf("openai tool call %s: decode arguments: %w", call.Function.Name, err)
			}
		}
		out.Content = append(out.Content, ToolUseBlock(call.ID, call.Function.Name, input))
	}

	switch {
	case choice.FinishReason == openai.FinishReasonToolCalls || len(choice.Message.ToolCalls) > 0:
		out.StopReason = StopToolUse
	case choice.FinishReason == openai.FinishReasonLength:
		out.StopReason = StopMaxTokens
	case choice.FinishReason == openai.FinishReasonStop:
		out.StopReason = StopEndTurn
	default:
		out.StopReason = StopOther
	}
	return out, nil
}

func openAITools(defs []ToolDefinition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.InputSchema,
			},
		})
	}
	return out
}

func openAIMessages(system string, messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, msg := range messages {
		if msg.Role == RoleAssistant {
			out = append(out, openAIAssistantMessage(msg))
			continue
		}

		var (
			parts   []openai.ChatMessagePart
			text    []string
			hasMime bool
		)
		for _, block := range msg.Content {
			switch block.Kind {
			case BlockToolResult:
				if block.ToolResult != nil {
					// Tool results travel as dedicated tool-role messages.
					out = append(out, openai.ChatCompletionMessage{
						Role:       openai.ChatMessageRoleTool,
						Content:    block.ToolResult.Content,
						ToolCallID: block.ToolResult.CallID,
					})
				}
			case BlockText:
				text = append(text, block.Text)
				parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: block.Text})
			case BlockImage:
				if block.Image == nil {
					continue
				}
				hasMime = true
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    fmt.Sprintf("data:%s;base64,%s", block.Image.MediaType, block.Image.Data),
						Detail: openai.ImageURLDetailAuto,
					},
				})
			}
		}
		switch {
		case hasMime:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts})
		case len(text) > 0:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: strings.Join(text, "\n")})
		}
	}
	return out
}

func openAIAssistantMessage(msg Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
	var text []string
	for _, block := range msg.Content {
		switch block.Kind {
		case BlockText:
			text = append(text, block.Text)
		case BlockToolUse:
			if block.ToolUse == nil {
				continue
			}
			args, err := json.Marshal(block.ToolUse.Input)
			if err != nil {
				args = []byte("{}")
			}
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   block.ToolUse.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      block.ToolUse.Name,
					Arguments: string(args),
				},
			})
		}
	}
	out.Content = strings.Join(text, "\n")
	return out
}
