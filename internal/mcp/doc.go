// Package mcp provides the Model Context Protocol (MCP) client used to
// source tools from external servers.
//
// MCP is an open standard for connecting host applications to outside
// tools and data. This package implements the client side over the
// official MCP Go SDK: it connects to configured servers, lists their
// tools and executes tool calls on behalf of the chat runner.
//
// # Transport Types
//
//	TransportTypeStdio  - stdin/stdout with a subprocess
//	TransportTypeLocal  - accepted as an alias for stdio
//	TransportTypeRemote - streamable HTTP, falling back to SSE
//
// # Basic Usage
//
//	client := mcp.NewClient()
//
//	err := client.AddServer(ctx, "clock", &mcp.Config{
//		Enabled: true,
//		Type:    mcp.TransportTypeStdio,
//		Command: []string{"chatwire-mcp"},
//		Timeout: 5000, // milliseconds
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, tool := range client.Tools() {
//		fmt.Printf("%s - %s\n", tool.Name, tool.Description)
//	}
//
//	result, err := client.ExecuteTool(ctx, "clock_now", json.RawMessage(`{}`))
//
// Tool names are prefixed with the server name, so two servers may
// expose a tool with the same name without colliding. The tool package
// adapts these definitions into executable server tools.
//
// # Status Monitoring
//
//	for _, server := range client.Status() {
//		if server.Status == mcp.StatusFailed {
//			fmt.Printf("server %s failed: %s\n", server.Name, *server.Error)
//		}
//	}
//
// All client operations are safe for concurrent use.
package mcp
