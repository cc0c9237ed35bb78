package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DummyModel is a lightweight model implementation useful for local testing
// without API calls. It answers immediately with a structured research
// result built from the latest user text.
type DummyModel struct {
	Prefix string
}

func NewDummyModel() *DummyModel {
	return &DummyModel{Prefix: "Dummy research summary:"}
}

func (d *DummyModel) Send(_ context.Context, req Request) (Response, error) {
	var last string
	for i := len(req.Messages) - 1; i >= 0 && last == ""; i-- {
		msg := req.Messages[i]
		if msg.Role != RoleUser {
			continue
		}
		for _, block := range msg.Content {
			if block.Kind == BlockText && strings.TrimSpace(block.Text) != "" {
				last = strings.TrimSpace(block.Text)
				break
			}
		}
	}
	if last == "" {
		last = "<empty prompt>"
	}

	payload, err := json.Marshal(map[string]any{
		"topic":      last,
		"summary":    fmt.Sprintf("%s %s", d.Prefix, last),
		"sources":    []string{},
		"tools_used": []string{},
	})
	if err != nil {
		return Response{}, err
	}
	return Response{
		Content:    []ContentBlock{TextBlock(string(payload))},
		StopReason: StopEndTurn,
	}, nil
}

var _ Model = (*DummyModel)(nil)
