package agentflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/shahintaesheikh/agentflow/src/models"
)

const (
	// MaxToolOutput is the longest tool output passed back to the model
	// unchanged. Longer output is cut to TruncatedToolOutput runes.
	MaxToolOutput       = 1000
	TruncatedToolOutput = 800
	truncationMarker    = "\n[...truncated...]"
)

// ToolCatalog is the registry of tools advertised to the model. Invocation
// never fails: every problem is reported as text the model can react to.
type ToolCatalog struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	specs  map[string]ToolSpec
	order  []string
	logger *slog.Logger
}

// NewToolCatalog constructs a catalog seeded with the provided tools.
func NewToolCatalog(logger *slog.Logger, tools ...Tool) (*ToolCatalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	catalog := &ToolCatalog{
		tools:  make(map[string]Tool),
		specs:  make(map[string]ToolSpec),
		logger: logger,
	}
	for _, tool := range tools {
		if err := catalog.Register(tool); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// Register adds a tool to the catalog using a lower-cased key. Duplicate names return an error.
func (c *ToolCatalog) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	spec := tool.Spec()
	key := strings.ToLower(strings.TrimSpace(spec.Name))
	if key == "" {
		return fmt.Errorf("tool name is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tools[key]; exists {
		return fmt.Errorf("tool %s already registered", spec.Name)
	}
	c.tools[key] = tool
	c.specs[key] = spec
	c.order = append(c.order, key)
	return nil
}

// Lookup returns the tool and its specification if present.
func (c *ToolCatalog) Lookup(name string) (Tool, ToolSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key := strings.ToLower(strings.TrimSpace(name))
	tool, ok := c.tools[key]
	if !ok {
		return nil, ToolSpec{}, false
	}
	return tool, c.specs[key], true
}

// Specs returns a snapshot of the tool specifications in registration order.
func (c *ToolCatalog) Specs() []ToolSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()

	specs := make([]ToolSpec, 0, len(c.order))
	for _, key := range c.order {
		specs = append(specs, c.specs[key])
	}
	return specs
}

// Names returns the registered tool names in registration order.
func (c *ToolCatalog) Names() []string {
	specs := c.Specs()
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.Name
	}
	return names
}

// Definitions converts the specs into the form sent to the model.
func (c *ToolCatalog) Definitions() []models.ToolDefinition {
	specs := c.Specs()
	defs := make([]models.ToolDefinition, len(specs))
	for i, spec := range specs {
		defs[i] = models.ToolDefinition{Name: spec.Name, Description: spec.Description, InputSchema: spec.InputSchema}
	}
	return defs
}

// Invoke runs the named tool and always returns text for the model.
func (c *ToolCatalog) Invoke(ctx context.Context, name string, input map[string]any) string {
	tool, spec, ok := c.Lookup(name)
	if !ok {
		c.logger.Warn("unknown tool requested", "tool", name)
		return fmt.Sprintf("Error: Tool '%s' not found. Available tools: %s", name, strings.Join(c.Names(), ", "))
	}
	if input == nil {
		input = map[string]any{}
	}
	if field, missing := missingRequired(spec.InputSchema, input); missing {
		c.logger.Warn("tool call missing required field", "tool", spec.Name, "field", field)
		return fmt.Sprintf("Error: %s %s is required", spec.Name, field)
	}

	resp, err := invokeSafely(ctx, tool, input)
	if err != nil {
		c.logger.Warn("tool failed", "tool", spec.Name, "error", err)
		return fmt.Sprintf("Error executing tool '%s': %s", spec.Name, err.Error())
	}
	c.logger.Debug("tool succeeded", "tool", spec.Name, "bytes", len(resp.Content))
	return truncateOutput(resp.Content)
}

func invokeSafely(ctx context.Context, tool Tool, input map[string]any) (resp ToolResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return tool.Invoke(ctx, ToolRequest{Arguments: input})
}

// missingRequired reports the first required field that is absent, null or
// a blank string.
func missingRequired(schema map[string]any, input map[string]any) (string, bool) {
	for _, field := range models.SchemaRequired(schema) {
		v, ok := input[field]
		if !ok || v == nil {
			return field, true
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			return field, true
		}
	}
	return "", false
}

func truncateOutput(s string) string {
	if utf8.RuneCountInString(s) <= MaxToolOutput {
		return s
	}
	runes := []rune(s)
	return string(runes[:TruncatedToolOutput]) + truncationMarker
}
