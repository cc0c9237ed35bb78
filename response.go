package agentflow

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Fallback topics used when the model output cannot be parsed.
const (
	TopicUnknown = "Unknown"
	TopicError   = "Error"
)

// StructuredResult is the validated research answer.
type StructuredResult struct {
	Topic     string   `json:"topic"`
	Summary   string   `json:"summary"`
	Sources   []string `json:"sources"`
	ToolsUsed []string `json:"tools_used"`
}

// Extract turns raw model text into a StructuredResult. It never fails:
// unparseable text becomes a result with topic "Unknown" whose summary is
// the raw text.
func Extract(raw string) StructuredResult {
	return ExtractWithFallback(raw, TopicUnknown)
}

// FailureResult is the result reported for a task that failed outright.
func FailureResult(message string) StructuredResult {
	return fallbackResult(message, TopicError)
}

// ExtractWithFallback tries the whole text, then the outermost brace span,
// and otherwise returns the fallback result with the given topic.
func ExtractWithFallback(raw, fallbackTopic string) StructuredResult {
	if res, ok := parseStructured(raw); ok {
		return res
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if res, ok := parseStructured(raw[start : end+1]); ok {
			return res
		}
	}
	return fallbackResult(raw, fallbackTopic)
}

func fallbackResult(raw, topic string) StructuredResult {
	return StructuredResult{Topic: topic, Summary: raw, Sources: []string{}, ToolsUsed: []string{}}
}

// parseStructured reads the exact lower-case keys; mis-cased keys count as
// missing.
func parseStructured(text string) (StructuredResult, bool) {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return StructuredResult{}, false
	}
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return StructuredResult{}, false
	}

	var res StructuredResult
	if err := json.Unmarshal(orNull(wire["topic"]), &res.Topic); err != nil || strings.TrimSpace(res.Topic) == "" {
		return StructuredResult{}, false
	}
	if err := json.Unmarshal(orNull(wire["summary"]), &res.Summary); err != nil {
		return StructuredResult{}, false
	}
	var ok bool
	if res.Sources, ok = stringList(wire["sources"]); !ok {
		return StructuredResult{}, false
	}
	if res.ToolsUsed, ok = stringList(wire["tools_used"]); !ok {
		return StructuredResult{}, false
	}
	return res, true
}

// stringList decodes a JSON array of strings. Missing or null becomes empty.
func stringList(raw json.RawMessage) ([]string, bool) {
	out := []string{}
	if err := json.Unmarshal(orNull(raw), &out); err != nil {
		return nil, false
	}
	if out == nil {
		out = []string{}
	}
	return out, true
}

func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
