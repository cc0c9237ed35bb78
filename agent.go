package agentflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shahintaesheikh/agentflow/src/models"
)

const defaultSystemPrompt = `You are a research assistant that helps produce a research paper.
Answer the user's query, calling the available tools whenever they help.
When you are finished, reply with exactly one JSON object and no other text, in this shape:
{"topic": "<string>", "summary": "<string>", "sources": ["<string>", ...], "tools_used": ["<string>", ...]}`

// DefaultMaxIterations bounds the request/response rounds of one run.
const DefaultMaxIterations = 10

// ExhaustedText replaces model output when the iteration bound is reached.
const ExhaustedText = "Max iterations reached without completion"

// State is a state of the agent loop.
type State int

const (
	StateAwaitingModel State = iota
	StateExecutingTools
	StateDone
	StateExhausted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTools:
		return "executing_tools"
	case StateDone:
		return "done"
	case StateExhausted:
		return "exhausted"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the loop stops in s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateExhausted || s == StateCancelled
}

// Query is one research request.
type Query struct {
	Text      string
	ImagePath string
	// MaxIterations overrides the agent default when positive.
	MaxIterations int
}

// Outcome is the terminal state of a run. Text is the final model text for
// StateDone and ExhaustedText for StateExhausted.
type Outcome struct {
	State      State
	Text       string
	Iterations int
	ToolsUsed  []string
	Messages   []models.Message
}

// Agent drives the model/tool loop for a single research query.
type Agent struct {
	model         models.Model
	catalog       *ToolCatalog
	systemPrompt  string
	maxIterations int
	logger        *slog.Logger
	loadImage     func(path string) (data, mediaType string, err error)
}

// Options configure a new Agent.
type Options struct {
	Model         models.Model
	Catalog       *ToolCatalog
	Tools         []Tool
	SystemPrompt  string
	MaxIterations int
	Logger        *slog.Logger
}

// New creates an Agent with the provided options.
func New(opts Options) (*Agent, error) {
	if opts.Model == nil {
		return nil, ErrNilModel
	}
	if opts.MaxIterations < 0 {
		return nil, ErrInvalidMaxIterations
	}
	maxIter := opts.MaxIterations
	if maxIter == 0 {
		maxIter = DefaultMaxIterations
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	catalog := opts.Catalog
	if catalog == nil {
		var err error
		if catalog, err = NewToolCatalog(logger); err != nil {
			return nil, err
		}
	}
	for _, tool := range opts.Tools {
		if err := catalog.Register(tool); err != nil {
			return nil, err
		}
	}

	systemPrompt := opts.SystemPrompt
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	return &Agent{
		model:         opts.Model,
		catalog:       catalog,
		systemPrompt:  systemPrompt,
		maxIterations: maxIter,
		logger:        logger,
		loadImage:     LoadImage,
	}, nil
}

// Catalog exposes the agent's tool registry.
func (a *Agent) Catalog() *ToolCatalog { return a.catalog }

// Run executes the loop until the model stops requesting tools or the
// iteration bound is reached. Cancelling ctx yields StateCancelled with a
// nil error. A non-nil error means the model call failed.
func (a *Agent) Run(ctx context.Context, q Query, progress ProgressFunc) (Outcome, error) {
	if strings.TrimSpace(q.Text) == "" {
		return Outcome{}, ErrEmptyQuery
	}
	if q.MaxIterations < 0 {
		return Outcome{}, ErrInvalidMaxIterations
	}
	maxIter := q.MaxIterations
	if maxIter == 0 {
		maxIter = a.maxIterations
	}
	report := func(p Progress) {
		if progress != nil {
			progress(p)
		}
	}

	report(progressAt("Starting research query...", 0))
	messages := []models.Message{a.initialTurn(q, report)}

	var toolsUsed []string
	seen := map[string]bool{}
	out := func(state State, text string, iterations int) Outcome {
		return Outcome{State: state, Text: text, Iterations: iterations, ToolsUsed: toolsUsed, Messages: messages}
	}
	cancelled := func(iterations int) (Outcome, error) {
		a.logger.Info("research run cancelled", "iteration", iterations)
		report(progressAt("Cancelled by user", -1))
		return out(StateCancelled, "", iterations), nil
	}

	for i := 1; i <= maxIter; i++ {
		if ctx.Err() != nil {
			return cancelled(i - 1)
		}
		a.logger.Debug("agent state", "state", StateAwaitingModel, "iteration", i)

		resp, err := a.model.Send(ctx, models.Request{
			System:   a.systemPrompt,
			Tools:    a.catalog.Definitions(),
			Messages: messages,
		})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return cancelled(i - 1)
			}
			a.logger.Error("model call failed", "iteration", i, "error", err)
			return out(StateAwaitingModel, "", i-1), fmt.Errorf("model call: %w", err)
		}
		if err := resp.Validate(); err != nil {
			a.logger.Error("malformed model reply", "iteration", i, "error", err)
			return out(StateAwaitingModel, "", i-1), fmt.Errorf("model reply: %w", err)
		}
		messages = append(messages, models.Message{Role: models.RoleAssistant, Content: resp.Content})

		if resp.StopReason != models.StopToolUse {
			a.logger.Debug("agent state", "state", StateDone, "iteration", i, "stop_reason", resp.StopReason)
			report(progressAt("Complete!", 100))
			return out(StateDone, resp.FirstText(), i), nil
		}

		a.logger.Debug("agent state", "state", StateExecutingTools, "iteration", i)
		calls := resp.ToolCalls()
		if len(calls) > 0 {
			results := make([]models.ContentBlock, 0, len(calls))
			names := make([]string, 0, len(calls))
			for _, call := range calls {
				output := a.catalog.Invoke(ctx, call.Name, call.Input)
				results = append(results, models.ToolResultBlock(call.ID, output, strings.HasPrefix(output, "Error")))
				names = append(names, call.Name)
				if !seen[call.Name] {
					seen[call.Name] = true
					toolsUsed = append(toolsUsed, call.Name)
				}
			}
			messages = append(messages, models.Message{Role: models.RoleUser, Content: results})
			report(progressAt(fmt.Sprintf("[%d/%d] Used %s", i, maxIter, strings.Join(names, ", ")), i*100/maxIter))
		} else {
			report(progressAt(fmt.Sprintf("[%d/%d] No tool calls in reply", i, maxIter), i*100/maxIter))
		}
	}

	a.logger.Warn("iteration bound reached", "max_iterations", maxIter)
	report(progressAt(ExhaustedText, 100))
	return out(StateExhausted, ExhaustedText, maxIter), nil
}

func (a *Agent) initialTurn(q Query, report ProgressFunc) models.Message {
	msg := models.UserText(q.Text)
	if strings.TrimSpace(q.ImagePath) == "" {
		return msg
	}
	data, mediaType, err := a.loadImage(q.ImagePath)
	if err != nil {
		a.logger.Warn("skipping image", "path", q.ImagePath, "error", err)
		report(notice(fmt.Sprintf("Warning: could not load image, continuing without it: %v", err)))
		return msg
	}
	msg.Content = append(msg.Content, models.ImageBlock(mediaType, data))
	return msg
}
