package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultMaxSteps is the default step budget: the trailing assistant
// response counts as the one permitted step, so no automatic continuation
// happens unless the budget is raised.
const DefaultMaxSteps = 1

// ShouldContinue reports whether the client owes the server an automatic
// follow-up round trip: the trailing message is an assistant message whose
// tool invocations all have results, and the run of consecutive trailing
// assistant messages is still below the step budget. The budget is the sole
// safeguard against infinite tool-call loops.
func ShouldContinue(messages []*Message, maxSteps int) bool {
	if maxSteps < 1 {
		maxSteps = DefaultMaxSteps
	}
	if len(messages) == 0 {
		return false
	}
	if !messages[len(messages)-1].Ready() {
		return false
	}
	return trailingAssistantCount(messages) < maxSteps
}

func trailingAssistantCount(messages []*Message) int {
	n := 0
	for i := len(messages) - 1; i >= 0 && messages[i].Role == RoleAssistant; i-- {
		n++
	}
	return n
}

// NextRequest builds the follow-up request. It always carries the full
// accumulated message list; only the client's local state is cumulative.
func NextRequest(messages []*Message, extra map[string]any) *RequestPayload {
	return &RequestPayload{Messages: messages, Extra: extra}
}

// Transport issues one round trip and hands back the raw response body. A
// nil error means bytes may follow; failures after the stream starts surface
// through the returned reader instead.
type Transport interface {
	Stream(ctx context.Context, payload *RequestPayload) (io.ReadCloser, error)
}

// HTTPTransport posts request payloads to a chat endpoint and streams the
// response body back.
type HTTPTransport struct {
	URL    string
	Client *http.Client
	Header http.Header
}

// Stream implements Transport. Non-2xx responses and connection failures
// are returned as a TransportError; cancellation surfaces the underlying
// context error for abort detection.
func (t *HTTPTransport) Stream(ctx context.Context, payload *RequestPayload) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range t.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &TransportError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp.Body, nil
}

var _ Transport = (*HTTPTransport)(nil)
