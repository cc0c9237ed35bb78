package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	agentflow "github.com/shahintaesheikh/agentflow"
	utcp "github.com/universal-tool-calling-protocol/go-utcp"
	utcptools "github.com/universal-tool-calling-protocol/go-utcp/src/tools"
)

const defaultRemoteToolLimit = 50

// UTCPClient is the subset of the UTCP client used to expose remote tools.
type UTCPClient interface {
	SearchTools(query string, limit int) ([]utcptools.Tool, error)
	CallTool(ctx context.Context, toolName string, args map[string]any) (any, error)
}

// LoadUTCPTools connects to the providers listed in providersFile and
// adapts every discovered tool.
func LoadUTCPTools(ctx context.Context, providersFile string) ([]agentflow.Tool, error) {
	client, err := utcp.NewUTCPClient(ctx, &utcp.UtcpClientConfig{ProvidersFilePath: providersFile}, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("utcp client: %w", err)
	}
	return RemoteTools(client, defaultRemoteToolLimit)
}

// RemoteTools lists up to limit tools from client.
func RemoteTools(client UTCPClient, limit int) ([]agentflow.Tool, error) {
	if limit <= 0 {
		limit = defaultRemoteToolLimit
	}
	found, err := client.SearchTools("", limit)
	if err != nil {
		return nil, fmt.Errorf("utcp discover tools: %w", err)
	}
	out := make([]agentflow.Tool, 0, len(found))
	for _, t := range found {
		if strings.TrimSpace(t.Name) == "" {
			continue
		}
		out = append(out, &RemoteTool{client: client, tool: t})
	}
	return out, nil
}

// MergeRemote appends remote tools to local ones. A remote tool whose
// lower-cased name is already taken is dropped with a warning.
func MergeRemote(local, remote []agentflow.Tool, logger *slog.Logger) []agentflow.Tool {
	if logger == nil {
		logger = slog.Default()
	}
	taken := make(map[string]bool, len(local)+len(remote))
	for _, t := range local {
		taken[strings.ToLower(strings.TrimSpace(t.Spec().Name))] = true
	}
	out := append([]agentflow.Tool(nil), local...)
	for _, t := range remote {
		name := t.Spec().Name
		key := strings.ToLower(strings.TrimSpace(name))
		if taken[key] {
			logger.Warn("remote tool shadows builtin", "tool", name)
			continue
		}
		taken[key] = true
		out = append(out, t)
	}
	return out
}

// RemoteTool forwards invocations to a UTCP provider.
type RemoteTool struct {
	client UTCPClient
	tool   utcptools.Tool
}

func (r *RemoteTool) Spec() agentflow.ToolSpec {
	props := r.tool.Inputs.Properties
	if props == nil {
		props = map[string]any{}
	}
	schemaType := r.tool.Inputs.Type
	if schemaType == "" {
		schemaType = "object"
	}
	required := make([]any, 0, len(r.tool.Inputs.Required))
	for _, f := range r.tool.Inputs.Required {
		required = append(required, f)
	}
	return agentflow.ToolSpec{
		Name:        r.tool.Name,
		Description: r.tool.Description,
		InputSchema: map[string]any{
			"type":       schemaType,
			"properties": props,
			"required":   required,
		},
	}
}

func (r *RemoteTool) Invoke(ctx context.Context, req agentflow.ToolRequest) (agentflow.ToolResponse, error) {
	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}
	result, err := r.client.CallTool(ctx, r.tool.Name, args)
	if err != nil {
		return agentflow.ToolResponse{}, err
	}
	return agentflow.ToolResponse{Content: renderRemoteResult(result)}, nil
}

func renderRemoteResult(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}
