// Package testutil provides helpers for integration tests: a real HTTP
// server backed by a scripted runner, a small REST client, and stream
// recording for protocol assertions.
package testutil

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/chatwire-ai/chatwire/internal/config"
	"github.com/chatwire-ai/chatwire/internal/runner"
	"github.com/chatwire-ai/chatwire/internal/server"
	"github.com/chatwire-ai/chatwire/internal/tool"
	"github.com/chatwire-ai/chatwire/pkg/chat"
)

// TestServer wraps a server instance for testing.
type TestServer struct {
	Server  *server.Server
	Runner  *runner.ScriptRunner
	ToolReg *tool.Registry
	BaseURL string
	ChatURL string
	port    int
}

// TestServerOption configures TestServer.
type TestServerOption func(*testServerConfig)

type testServerConfig struct {
	script    *runner.Script
	appConfig *config.Config
	tools     []tool.Tool
}

// WithScript serves the given script instead of the default one.
func WithScript(s *runner.Script) TestServerOption {
	return func(c *testServerConfig) {
		c.script = s
	}
}

// WithConfig sets the server's application config.
func WithConfig(cfg *config.Config) TestServerOption {
	return func(c *testServerConfig) {
		c.appConfig = cfg
	}
}

// WithTool registers an extra tool on the server's registry.
func WithTool(t tool.Tool) TestServerOption {
	return func(c *testServerConfig) {
		c.tools = append(c.tools, t)
	}
}

// StartTestServer starts a server on a free port with a scripted runner
// and waits until its health endpoint answers.
func StartTestServer(opts ...TestServerOption) (*TestServer, error) {
	cfg := &testServerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	script := cfg.script
	if script == nil {
		script = runner.DefaultScript()
		script.Settings = UnpacedSettings()
	}

	appConfig := cfg.appConfig
	if appConfig == nil {
		appConfig = &config.Config{}
	}

	run, err := runner.NewScriptRunner(script)
	if err != nil {
		return nil, fmt.Errorf("build script runner: %w", err)
	}

	toolReg := tool.DefaultRegistry()
	for _, t := range cfg.tools {
		toolReg.Register(t)
	}

	// Find available port
	port, err := findAvailablePort()
	if err != nil {
		return nil, fmt.Errorf("failed to find available port: %w", err)
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Port = port

	srv := server.New(serverConfig, appConfig, run, toolReg, nil)

	// Start server in background
	go func() {
		_ = srv.Start()
	}()

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	if err := waitForServer(baseURL, 10*time.Second); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil, fmt.Errorf("server failed to start: %w", err)
	}

	return &TestServer{
		Server:  srv,
		Runner:  run,
		ToolReg: toolReg,
		BaseURL: baseURL,
		ChatURL: baseURL + "/v1/chat",
		port:    port,
	}, nil
}

// Stop shuts down the test server.
func (ts *TestServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return ts.Server.Shutdown(ctx)
}

// Client returns a new test client for this server.
func (ts *TestServer) Client() *TestClient {
	return NewTestClient(ts.BaseURL)
}

// Transport returns a chat transport pointed at this server.
func (ts *TestServer) Transport() *chat.HTTPTransport {
	return &chat.HTTPTransport{URL: ts.ChatURL}
}

// findAvailablePort finds an available TCP port.
func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// waitForServer waits for the server to be ready.
func waitForServer(baseURL string, timeout time.Duration) error {
	client := NewTestClient(baseURL)
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(context.Background(), "/health")
		if err == nil && resp.IsSuccess() {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %v", timeout)
}
