package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"

	"github.com/chatwire-ai/chatwire/internal/logging"
	"github.com/chatwire-ai/chatwire/internal/provider"
	"github.com/chatwire-ai/chatwire/internal/tool"
	"github.com/chatwire-ai/chatwire/pkg/chat"
	"github.com/chatwire-ai/chatwire/pkg/wire"
)

const (
	// DefaultMaxSteps bounds automatic tool rounds within one response.
	DefaultMaxSteps = 50

	// MaxRetries bounds completion attempts while nothing has reached
	// the wire yet.
	MaxRetries = 3

	// Retry intervals for transient model errors.
	RetryInitialInterval = 1 * time.Second
	RetryMaxInterval     = 30 * time.Second
	RetryMaxElapsedTime  = 2 * time.Minute
)

var _ Runner = (*EinoRunner)(nil)

// EinoRunner streams a model through a provider, translating stream
// chunks into wire events as they arrive and executing registry tools
// between steps within the same response.
type EinoRunner struct {
	Provider provider.Provider
	Model    *provider.Model
	Tools    *tool.Registry

	// MaxSteps overrides DefaultMaxSteps when positive.
	MaxSteps int
}

// NewEinoRunner returns a runner for the given provider and model.
func NewEinoRunner(p provider.Provider, m *provider.Model, tools *tool.Registry) *EinoRunner {
	return &EinoRunner{Provider: p, Model: m, Tools: tools}
}

// Run implements Runner. Transient completion errors are retried with
// backoff until the first event is on the wire; failures after that
// point emit a terminal error event and are returned.
func (r *EinoRunner) Run(ctx context.Context, payload *chat.RequestPayload, w *wire.Writer) error {
	if r.Provider == nil || r.Model == nil {
		return errors.New("runner has no provider or model")
	}
	if len(payload.Messages) == 0 {
		return errors.New("empty conversation")
	}

	msgs := provider.ConvertToEinoMessages(payload.Messages)
	tools := r.toolInfos()

	maxSteps := r.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	var (
		emitted bool
		total   wire.Usage
		retry   = newRetryBackoff(ctx)
	)

	step := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := r.streamStep(ctx, msgs, tools, w, &emitted)
		if err != nil {
			if !emitted {
				if wait := retry.NextBackOff(); wait != backoff.Stop {
					logging.Warn().Err(err).Dur("wait", wait).Msg("completion failed, retrying")
					time.Sleep(wait)
					continue
				}
				return err
			}
			// The connection may already be gone.
			_ = w.Send(wire.ErrorChunk{Message: err.Error()})
			return err
		}
		retry.Reset()

		total.PromptTokens += res.usage.PromptTokens
		total.CompletionTokens += res.usage.CompletionTokens

		if len(res.calls) == 0 {
			return w.Send(wire.Finish{Reason: finishReason(res.reason), Usage: total})
		}

		toolMsgs, err := r.runTools(ctx, res.calls, w)
		if err != nil {
			return err
		}

		step++
		if step >= maxSteps {
			logging.Warn().Int("maxSteps", maxSteps).Msg("step limit reached, ending response")
			return w.Send(wire.Finish{Reason: wire.FinishToolCalls, Usage: total})
		}

		if err := w.Send(wire.StepFinish{Reason: wire.FinishToolCalls, Usage: res.usage, IsContinued: true}); err != nil {
			return err
		}

		msgs = append(msgs, res.assistant())
		msgs = append(msgs, toolMsgs...)
	}
}

// stepResult collects one completion round while its events stream out.
type stepResult struct {
	content string
	calls   []*toolCallAccum
	reason  string
	usage   wire.Usage
}

// toolCallAccum builds up one streamed tool call from its fragments.
type toolCallAccum struct {
	id   string
	name string
	args strings.Builder
}

// argsJSON returns the accumulated argument text, substituting an empty
// object when the model produced none or broke off mid-stream.
func (c *toolCallAccum) argsJSON() json.RawMessage {
	args := c.args.String()
	if args == "" || !json.Valid([]byte(args)) {
		if args != "" {
			logging.Warn().Str("tool", c.name).Str("id", c.id).Msg("discarding malformed tool arguments")
		}
		return json.RawMessage("{}")
	}
	return json.RawMessage(args)
}

// assistant renders the round as the assistant message opening the next
// step's conversation.
func (s *stepResult) assistant() *schema.Message {
	msg := &schema.Message{Role: schema.Assistant, Content: s.content}
	for _, call := range s.calls {
		msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
			ID: call.id,
			Function: schema.FunctionCall{
				Name:      call.name,
				Arguments: string(call.argsJSON()),
			},
		})
	}
	return msg
}

// streamStep issues one completion and forwards its chunks as wire
// events: content as text deltas, tool-call fragments as tool-call
// deltas, then one completed tool-call event per call after the stream
// ends. emitted flips as soon as anything is written.
func (r *EinoRunner) streamStep(ctx context.Context, msgs []*schema.Message, tools []*schema.ToolInfo, w *wire.Writer, emitted *bool) (*stepResult, error) {
	req := &provider.CompletionRequest{
		Model:    r.Model.ID,
		Messages: msgs,
		Tools:    tools,
	}
	if r.Model.MaxOutputTokens > 0 {
		req.MaxTokens = r.Model.MaxOutputTokens
	}
	if t := r.Model.Options.Temperature; t != nil {
		req.Temperature = *t
	}
	if p := r.Model.Options.TopP; p != nil {
		req.TopP = *p
	}

	stream, err := r.Provider.CreateCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create completion: %w", err)
	}
	defer stream.Close()

	res := &stepResult{}
	calls := make(map[string]*toolCallAccum)
	lastID := ""

	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read completion: %w", err)
		}

		if msg.Content != "" {
			if err := w.Send(wire.TextDelta{Text: msg.Content}); err != nil {
				return nil, err
			}
			*emitted = true
			res.content += msg.Content
		}

		for _, tc := range msg.ToolCalls {
			// Providers omit the id on argument fragments after the
			// first; those continue the most recent call.
			id := tc.ID
			if id == "" {
				id = lastID
			}
			if id == "" {
				continue
			}
			lastID = id

			call, ok := calls[id]
			if !ok {
				call = &toolCallAccum{id: id}
				calls[id] = call
				res.calls = append(res.calls, call)
			}

			delta := wire.ToolCallDelta{ToolCallID: id, ArgsTextDelta: tc.Function.Arguments}
			if call.name == "" && tc.Function.Name != "" {
				call.name = tc.Function.Name
				delta.ToolName = call.name
			}
			call.args.WriteString(tc.Function.Arguments)

			if delta.ToolName == "" && delta.ArgsTextDelta == "" {
				continue
			}
			if err := w.Send(delta); err != nil {
				return nil, err
			}
			*emitted = true
		}

		if meta := msg.ResponseMeta; meta != nil {
			if meta.FinishReason != "" {
				res.reason = meta.FinishReason
			}
			if u := meta.Usage; u != nil {
				res.usage = wire.Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens}
			}
		}
	}

	for _, call := range res.calls {
		if err := w.Send(wire.ToolCall{ToolCallID: call.id, ToolName: call.name, Args: call.argsJSON()}); err != nil {
			return nil, err
		}
		*emitted = true
	}

	return res, nil
}

// runTools executes the round's calls in order, emitting a result event
// for each. A tool failure becomes an error-shaped result rather than
// ending the response.
func (r *EinoRunner) runTools(ctx context.Context, calls []*toolCallAccum, w *wire.Writer) ([]*schema.Message, error) {
	msgs := make([]*schema.Message, 0, len(calls))
	for _, call := range calls {
		result := r.executeCall(ctx, call)
		if err := w.Send(wire.ToolResult{ToolCallID: call.id, Result: result}); err != nil {
			return nil, err
		}
		msgs = append(msgs, &schema.Message{
			Role:       schema.Tool,
			Content:    string(result),
			ToolCallID: call.id,
		})
	}
	return msgs, nil
}

// executeCall runs one tool and marshals its outcome.
func (r *EinoRunner) executeCall(ctx context.Context, call *toolCallAccum) json.RawMessage {
	var out any
	var err error
	if r.Tools == nil {
		err = errors.New("no tools configured")
	} else {
		out, err = r.Tools.Execute(ctx, call.name, call.argsJSON())
	}
	if err != nil {
		logging.Warn().Str("tool", call.name).Str("id", call.id).Err(err).Msg("tool execution failed")
		out = map[string]string{"error": err.Error()}
	}
	data, err := json.Marshal(out)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return data
}

// toolInfos renders the enabled registry tools for the model, or nil
// when the model cannot call tools.
func (r *EinoRunner) toolInfos() []*schema.ToolInfo {
	if r.Tools == nil || !r.Model.SupportsTools {
		return nil
	}
	list := r.Tools.List()
	if len(list) == 0 {
		return nil
	}
	infos := make([]provider.ToolInfo, len(list))
	for i, t := range list {
		infos[i] = provider.ToolInfo{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
	}
	return provider.ConvertToEinoTools(infos)
}

// finishReason maps provider finish strings onto the wire enumeration.
func finishReason(reason string) wire.FinishReason {
	switch reason {
	case "", "stop", "end_turn", "stop_sequence":
		return wire.FinishStop
	case "tool_use", "tool_calls", "tool-calls":
		return wire.FinishToolCalls
	case "max_tokens", "length":
		return wire.FinishLength
	case "content_filter", "content-filter":
		return wire.FinishContentFilter
	case "error":
		return wire.FinishError
	default:
		return wire.FinishUnknown
	}
}

// newRetryBackoff builds the retry policy for completion attempts:
// exponential with jitter, capped by attempt count, elapsed time, and
// context cancellation. Tests swap in a fast policy.
var newRetryBackoff = func(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.MaxElapsedTime = RetryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}
