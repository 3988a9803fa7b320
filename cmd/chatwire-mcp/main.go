// Command chatwire-mcp runs the clock MCP server over stdio.
// It exists to exercise the MCP client end to end.
package main

import (
	"log"

	"github.com/chatwire-ai/chatwire/pkg/mcpserver/clock"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	if err := server.ServeStdio(clock.NewServer()); err != nil {
		log.Fatal(err)
	}
}
