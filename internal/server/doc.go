// Package server provides the reference HTTP server for the chatwire API.
//
// The server hosts a model runner behind a small versioned API. Its core
// endpoint streams one chat round trip back to the client using the line
// framing implemented in pkg/wire, flushing chunk by chunk so clients
// observe token-by-token delivery.
//
// # API Endpoints
//
//   - POST /v1/chat: stream the response for one round trip
//   - GET /v1/tools: list the server-side tools the runner may execute
//   - GET /v1/models: list the models known to the provider registry
//   - GET /v1/mcp: per-server MCP connection status
//   - GET /health: liveness check
//
// # Chat Streaming
//
// The chat endpoint accepts the accumulated message list as JSON and
// responds with Content-Type text/plain. Two framings exist:
//
//   - data mode (default): every chunk is one "<tag>:<json>" line and the
//     response carries the X-Chatwire-Stream header
//   - text mode: the body is the raw text deltas and nothing else
//
// The framing is picked per request from the "mode" field in the body,
// falling back to the mode query parameter and then the configured
// default. Failures before the first chunk produce a JSON error envelope
// {"error": {"code", "message"}}; once streaming has begun the runner
// reports failures in-band as wire error chunks.
//
// # Usage Example
//
//	cfg := server.DefaultConfig()
//	cfg.Port = 8080
//
//	srv := server.New(cfg, appConfig, run, toolRegistry, providerRegistry)
//
//	// Connect MCP servers and import their tools
//	if err := srv.InitializeMCP(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer srv.CloseMCP()
//
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
//
// The runner decides what the stream contains; the server only owns
// transport concerns. Handing in a ScriptRunner turns the same API into a
// deterministic fixture for client tests.
package server
