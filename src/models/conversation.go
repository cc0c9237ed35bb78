package models

import "fmt"

// Role attributes a turn to one side of the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind discriminates the ContentBlock union.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockImage      BlockKind = "image"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
)

// ContentBlock is a tagged union. Exactly one payload matches Kind:
// Text for BlockText, Image for BlockImage, ToolUse for BlockToolUse and
// ToolResult for BlockToolResult.
type ContentBlock struct {
	Kind       BlockKind   `json:"type"`
	Text       string      `json:"text,omitempty"`
	Image      *ImageData  `json:"image,omitempty"`
	ToolUse    *ToolUse    `json:"tool_use,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// ImageData is a base64 encoded image with its media type.
type ImageData struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ToolUse is a tool call requested by the model.
type ToolUse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResult answers exactly one ToolUse, matched by CallID.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Message is one turn of the conversation.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockText, Text: text}
}

func ImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{Kind: BlockImage, Image: &ImageData{MediaType: mediaType, Data: data}}
}

func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	if input == nil {
		input = map[string]any{}
	}
	return ContentBlock{Kind: BlockToolUse, ToolUse: &ToolUse{ID: id, Name: name, Input: input}}
}

func ToolResultBlock(callID, content string, isError bool) ContentBlock {
	return ContentBlock{Kind: BlockToolResult, ToolResult: &ToolResult{CallID: callID, Content: content, IsError: isError}}
}

// UserText builds a plain-text user turn.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

// Validate checks the union discriminant against its payload.
func (b ContentBlock) Validate() error {
	switch b.Kind {
	case BlockText:
		return nil
	case BlockImage:
		if b.Image == nil {
			return fmt.Errorf("image block without image payload")
		}
	case BlockToolUse:
		if b.ToolUse == nil || b.ToolUse.ID == "" || b.ToolUse.Name == "" {
			return fmt.Errorf("tool_use block requires id and name")
		}
	case BlockToolResult:
		if b.ToolResult == nil || b.ToolResult.CallID == "" {
			return fmt.Errorf("tool_result block requires call id")
		}
	default:
		return fmt.Errorf("unknown content block kind %q", b.Kind)
	}
	return nil
}

// toolNamesByCallID indexes every tool_use in the conversation. Providers
// whose wire format keys tool results by name (Gemini, Ollama) need it.
func toolNamesByCallID(messages []Message) map[string]string {
	names := make(map[string]string)
	for _, msg := range messages {
		for _, block := range msg.Content {
			if block.Kind == BlockToolUse && block.ToolUse != nil {
				names[block.ToolUse.ID] = block.ToolUse.Name
			}
		}
	}
	return names
}
