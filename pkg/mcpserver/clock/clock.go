// Package clock provides an MCP server with time tools.
package clock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with clock tools.
func NewServer() *server.MCPServer {
	s := server.NewMCPServer(
		"clock",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	nowTool := mcp.NewTool("now",
		mcp.WithDescription("Returns the current time as an RFC 3339 timestamp"),
		mcp.WithString("timezone",
			mcp.Description("IANA time zone name, defaults to UTC"),
		),
	)
	s.AddTool(nowTool, nowHandler)

	elapsedTool := mcp.NewTool("elapsed",
		mcp.WithDescription("Returns the whole seconds elapsed since an RFC 3339 timestamp"),
		mcp.WithString("since",
			mcp.Required(),
			mcp.Description("Timestamp to measure from"),
		),
	)
	s.AddTool(elapsedTool, elapsedHandler)

	return s
}

// nowHandler handles the now tool call.
func nowHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	loc := time.UTC
	if tz, ok := args["timezone"].(string); ok && tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("unknown timezone %q", tz)), nil
		}
		loc = parsed
	}

	return mcp.NewToolResultText(time.Now().In(loc).Format(time.RFC3339)), nil
}

// elapsedHandler handles the elapsed tool call.
func elapsedHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	since, ok := args["since"].(string)
	if !ok || since == "" {
		return mcp.NewToolResultError("since argument is required"), nil
	}

	ts, err := time.Parse(time.RFC3339, since)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid timestamp: %v", err)), nil
	}

	// Truncates toward zero; a future timestamp yields a negative count.
	seconds := int64(time.Since(ts) / time.Second)
	return mcp.NewToolResultText(strconv.FormatInt(seconds, 10)), nil
}
