package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ashutoshrp06/logpilot/internal/tools"
	"github.com/ashutoshrp06/logpilot/internal/types"
	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// NewServer exposes every tool of the executor's registry as an MCP tool.
// Calls go through the executor, so arguments are validated and observed the
// same way as in-process runs.
func NewServer(exec *tools.Executor, version string, logger *zap.Logger) *mcpsdk.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := mcpsdk.NewServer(&mcpsdk.Implementation{Name: ClientName, Version: version}, nil)

	for _, tool := range exec.Registry().All() {
		name := tool.Name()
		srv.AddTool(&mcpsdk.Tool{
			Name:        name,
			Description: tool.Description(),
			InputSchema: tool.Schema().Map(),
		}, handler(exec, name, logger))
	}
	return srv
}

// Serve runs srv on stdio until ctx is done or the client disconnects.
func Serve(ctx context.Context, srv *mcpsdk.Server) error {
	return srv.Run(ctx, &mcpsdk.StdioTransport{})
}

func handler(exec *tools.Executor, name string, logger *zap.Logger) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := map[string]any{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
			}
		}

		out, err := exec.Call(ctx, types.ToolCall{ID: uuid.NewString(), Name: name, Args: args})
		if err != nil {
			logger.Debug("Served tool failed", zap.String("tool", name), zap.Error(err))
			return errorResult(err.Error()), nil
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out}},
		}, nil
	}
}

func errorResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		IsError: true,
	}
}
