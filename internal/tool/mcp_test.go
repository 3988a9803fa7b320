package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwire-ai/chatwire/internal/mcp"
	"github.com/chatwire-ai/chatwire/pkg/mcpserver/clock"
)

func TestFromMCP_Empty(t *testing.T) {
	client := mcp.NewClient()
	defer client.Close()

	assert.Empty(t, FromMCP(client))
}

// TestFromMCP_Registry runs the clock MCP server in process and checks
// that its tools execute through the registry like native ones.
func TestFromMCP_Registry(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	sseServer := server.NewSSEServer(clock.NewServer(),
		server.WithBaseURL(fmt.Sprintf("http://%s", addr)),
	)
	go func() {
		if err := sseServer.Start(addr); err != nil {
			t.Logf("SSE server stopped: %v", err)
		}
	}()
	waitForTCP(t, addr, 5*time.Second)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		sseServer.Shutdown(shutdownCtx)
	}()

	client := mcp.NewClient()
	defer client.Close()

	err = client.AddServer(ctx, "clock", &mcp.Config{
		Enabled: true,
		Type:    mcp.TransportTypeRemote,
		URL:     fmt.Sprintf("http://%s/sse", addr),
		Timeout: 10000,
	})
	require.NoError(t, err)

	registry := NewRegistry()
	for _, mcpTool := range FromMCP(client) {
		registry.Register(mcpTool)
	}

	names := registry.Names()
	require.Contains(t, names, "clock_now")
	require.Contains(t, names, "clock_elapsed")

	got, ok := registry.Get("clock_now")
	require.True(t, ok)
	assert.Contains(t, got.Description(), "time")
	assert.Contains(t, string(got.Parameters()), "timezone")

	result, err := registry.Execute(ctx, "clock_now", json.RawMessage(`{}`))
	require.NoError(t, err)

	text, ok := result.(string)
	require.True(t, ok, "MCP tools return text")
	parsed, err := time.Parse(time.RFC3339, text)
	require.NoError(t, err, "now should return RFC 3339, got %q", text)
	assert.WithinDuration(t, time.Now(), parsed, time.Minute)
}

func waitForTCP(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}
