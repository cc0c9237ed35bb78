package agentflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/shahintaesheikh/agentflow/src/models"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// scriptedModel replays responses in order and records every request.
type scriptedModel struct {
	mu        sync.Mutex
	responses []models.Response
	err       error
	requests  []models.Request
}

func (m *scriptedModel) Send(_ context.Context, req models.Request) (models.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return models.Response{}, m.err
	}
	if len(m.responses) == 0 {
		return models.Response{}, errors.New("script exhausted")
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// blockingModel waits for cancellation after signalling that it started.
type blockingModel struct {
	started chan struct{}
	once    sync.Once
}

func newBlockingModel() *blockingModel {
	return &blockingModel{started: make(chan struct{})}
}

func (m *blockingModel) Send(ctx context.Context, _ models.Request) (models.Response, error) {
	m.once.Do(func() { close(m.started) })
	<-ctx.Done()
	return models.Response{}, ctx.Err()
}

type panicModel struct{}

func (panicModel) Send(context.Context, models.Request) (models.Response, error) {
	panic("model exploded")
}

func final(text string) models.Response {
	return models.Response{Content: []models.ContentBlock{models.TextBlock(text)}, StopReason: models.StopEndTurn}
}

func toolUse(calls ...models.ContentBlock) models.Response {
	return models.Response{Content: calls, StopReason: models.StopToolUse}
}

// stubTool echoes its "query" argument, or fails with err.
type stubTool struct {
	name     string
	required []string
	err      error
	output   string
	panics   bool

	mu    sync.Mutex
	calls []map[string]any
}

func (t *stubTool) Spec() ToolSpec {
	props := map[string]any{}
	for _, f := range t.required {
		props[f] = map[string]any{"type": "string"}
	}
	return ToolSpec{
		Name:        t.name,
		Description: "stub " + t.name,
		InputSchema: map[string]any{"type": "object", "properties": props, "required": t.required},
	}
}

func (t *stubTool) Invoke(_ context.Context, req ToolRequest) (ToolResponse, error) {
	t.mu.Lock()
	t.calls = append(t.calls, req.Arguments)
	t.mu.Unlock()
	if t.panics {
		panic("tool exploded")
	}
	if t.err != nil {
		return ToolResponse{}, t.err
	}
	if t.output != "" {
		return ToolResponse{Content: t.output}, nil
	}
	q, _ := req.Arguments["query"].(string)
	return ToolResponse{Content: t.name + ": " + q}, nil
}

// progressLog collects progress events safely.
type progressLog struct {
	mu     sync.Mutex
	events []Progress
}

func (l *progressLog) record(p Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, p)
}

func (l *progressLog) snapshot() []Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Progress(nil), l.events...)
}
