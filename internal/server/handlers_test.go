package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwire-ai/chatwire/internal/config"
	"github.com/chatwire-ai/chatwire/internal/runner"
	"github.com/chatwire-ai/chatwire/internal/tool"
	"github.com/chatwire-ai/chatwire/pkg/chat"
	"github.com/chatwire-ai/chatwire/pkg/wire"
)

// stubRunner replays a fixed chunk sequence and then fails with err.
type stubRunner struct {
	chunks []wire.Chunk
	err    error
}

func (r *stubRunner) Run(ctx context.Context, payload *chat.RequestPayload, w *wire.Writer) error {
	for _, c := range r.chunks {
		if err := w.Send(c); err != nil {
			return err
		}
	}
	return r.err
}

func testRunner(t *testing.T, rules ...runner.ScriptRule) *runner.ScriptRunner {
	t.Helper()
	if len(rules) == 0 {
		rules = []runner.ScriptRule{
			{Match: runner.MatchConfig{Contains: "ping"}, Reply: "pong pong"},
		}
	}
	zero := 0
	r, err := runner.NewScriptRunner(&runner.Script{
		Settings: runner.ScriptSettings{ChunkDelayMS: &zero},
		Rules:    rules,
	})
	require.NoError(t, err)
	return r
}

func newTestServer(t *testing.T, run runner.Runner) *Server {
	t.Helper()
	if run == nil {
		run = testRunner(t)
	}

	reg := tool.NewRegistry()
	reg.Register(tool.NewBaseTool("echo", "Echoes its arguments back.", json.RawMessage(`{"type":"object"}`),
		func(ctx context.Context, args json.RawMessage) (any, error) { return "ok", nil }))

	return New(DefaultConfig(), &config.Config{}, run, reg, nil)
}

func chatBody(t *testing.T, prompt string, extra map[string]any) string {
	t.Helper()
	body, err := json.Marshal(&chat.RequestPayload{
		Messages: []*chat.Message{chat.NewUserMessage(prompt)},
		Extra:    extra,
	})
	require.NoError(t, err)
	return string(body)
}

func postChat(srv *Server, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, body io.Reader) []wire.Chunk {
	t.Helper()
	var chunks []wire.Chunk
	dec := wire.NewDecoder(body)
	for {
		c, err := dec.Recv()
		if errors.Is(err, io.EOF) {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, c)
	}
}

func TestStreamChatDataMode(t *testing.T) {
	srv := newTestServer(t, nil)

	w := postChat(srv, "/v1/chat", chatBody(t, "ping", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, StreamVersion, w.Header().Get(StreamVersionHeader))
	assert.True(t, w.Flushed, "chunks should be flushed as they are written")

	chunks := decodeBody(t, w.Body)
	require.Equal(t, []wire.Chunk{
		wire.TextDelta{Text: "pong "},
		wire.TextDelta{Text: "pong"},
		wire.Finish{Reason: wire.FinishStop, Usage: wire.Usage{PromptTokens: 2, CompletionTokens: 3}},
	}, chunks)
}

func TestStreamChatTextModeBodyFlag(t *testing.T) {
	srv := newTestServer(t, nil)

	w := postChat(srv, "/v1/chat", chatBody(t, "ping", map[string]any{"mode": "text"}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Header().Get(StreamVersionHeader))
	assert.Equal(t, "pong pong", w.Body.String())
}

func TestStreamChatTextModeQueryParam(t *testing.T) {
	srv := newTestServer(t, nil)

	w := postChat(srv, "/v1/chat?mode=text", chatBody(t, "ping", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong pong", w.Body.String())
}

func TestStreamChatConfiguredDefaultMode(t *testing.T) {
	srv := New(DefaultConfig(), &config.Config{Mode: ModeText}, testRunner(t), nil, nil)

	w := postChat(srv, "/v1/chat", chatBody(t, "ping", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong pong", w.Body.String())
}

func TestStreamChatToolRound(t *testing.T) {
	run := testRunner(t, runner.ScriptRule{
		Match: runner.MatchConfig{Contains: "time"},
		Tool:  &runner.ScriptTool{Name: "time", Arguments: `{"timezone":"UTC"}`, Result: `"2024-01-01T00:00:00Z"`},
		Reply: "Done.",
	})
	srv := newTestServer(t, run)

	w := postChat(srv, "/v1/chat", chatBody(t, "what time is it?", nil))

	require.Equal(t, http.StatusOK, w.Code)
	chunks := decodeBody(t, w.Body)

	var sawCall, sawResult, sawStep bool
	for _, c := range chunks {
		switch c.(type) {
		case wire.ToolCall:
			sawCall = true
		case wire.ToolResult:
			sawResult = true
		case wire.StepFinish:
			sawStep = true
		}
	}
	assert.True(t, sawCall, "tool call should be streamed")
	assert.True(t, sawResult, "tool result should be streamed")
	assert.True(t, sawStep, "step finish should separate the tool round")

	require.NotEmpty(t, chunks)
	_, isFinish := chunks[len(chunks)-1].(wire.Finish)
	assert.True(t, isFinish, "stream should end with a finish chunk")
}

func TestStreamChatInvalidJSON(t *testing.T) {
	srv := newTestServer(t, nil)

	w := postChat(srv, "/v1/chat", "{not json")

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, ErrCodeInvalidRequest, resp.Error.Code)
}

func TestStreamChatEmptyMessages(t *testing.T) {
	srv := newTestServer(t, nil)

	w := postChat(srv, "/v1/chat", `{"messages":[]}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, ErrCodeInvalidRequest, resp.Error.Code)
}

func TestStreamChatUnknownMode(t *testing.T) {
	srv := newTestServer(t, nil)

	w := postChat(srv, "/v1/chat", chatBody(t, "ping", map[string]any{"mode": "sse"}))

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, ErrCodeInvalidRequest, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "sse")
}

func TestStreamChatRunnerFailsBeforeFirstChunk(t *testing.T) {
	srv := newTestServer(t, &stubRunner{err: errors.New("upstream down")})

	w := postChat(srv, "/v1/chat", chatBody(t, "ping", nil))

	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Header().Get(StreamVersionHeader))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, ErrCodeProviderError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "upstream down")
}

func TestStreamChatRunnerFailsMidStream(t *testing.T) {
	srv := newTestServer(t, &stubRunner{
		chunks: []wire.Chunk{wire.TextDelta{Text: "partial"}},
		err:    errors.New("connection reset"),
	})

	w := postChat(srv, "/v1/chat", chatBody(t, "ping", nil))

	// The status was committed when the first chunk went out, so the body
	// must not gain a JSON envelope after the fact.
	require.Equal(t, http.StatusOK, w.Code)
	chunks := decodeBody(t, w.Body)
	require.Equal(t, []wire.Chunk{wire.TextDelta{Text: "partial"}}, chunks)
}

func TestStreamChatOverHTTPTransport(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	transport := &chat.HTTPTransport{URL: ts.URL + "/v1/chat"}
	body, err := transport.Stream(context.Background(), chat.NextRequest([]*chat.Message{chat.NewUserMessage("ping")}, nil))
	require.NoError(t, err)
	defer body.Close()

	chunks := decodeBody(t, body)
	require.NotEmpty(t, chunks)
	assert.Equal(t, wire.TextDelta{Text: "pong "}, chunks[0])
	_, isFinish := chunks[len(chunks)-1].(wire.Finish)
	assert.True(t, isFinish)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListTools(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Tools []ToolDescriptor `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Tools, 1)
	assert.Equal(t, "echo", resp.Tools[0].Name)
	assert.Equal(t, "Echoes its arguments back.", resp.Tools[0].Description)
	assert.JSONEq(t, `{"type":"object"}`, string(resp.Tools[0].Parameters))
}

func TestListToolsHonorsEnablement(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.toolReg.Enable(map[string]bool{"echo": false})

	req := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tools":[]}`, w.Body.String())
}

func TestListModelsEmptyRegistry(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"models":[]}`, w.Body.String())
}

func TestMCPStatusEmpty(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/mcp", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
}

func TestUnknownRouteEnvelope(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}
