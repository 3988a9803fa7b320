package tool

import (
	"context"
	"encoding/json"

	"github.com/chatwire-ai/chatwire/internal/mcp"
)

// FromMCP wraps the tools of a connected MCP client so they can be
// registered next to the built-ins. Names arrive from the client
// already prefixed with the server name, e.g. "clock_now".
func FromMCP(client *mcp.Client) []Tool {
	defs := client.Tools()
	tools := make([]Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, NewBaseTool(def.Name, def.Description, def.InputSchema,
			func(ctx context.Context, args json.RawMessage) (any, error) {
				return client.ExecuteTool(ctx, def.Name, args)
			}))
	}
	return tools
}
