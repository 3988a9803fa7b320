// Package session provides the shared conversation runtime: a keyed,
// reference-counted registry of sessions, optimistic append with rollback,
// the read-reduce-publish cycle, and automatic tool-call continuations.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chatwire-ai/chatwire/internal/clienttool"
	"github.com/chatwire-ai/chatwire/internal/event"
	"github.com/chatwire-ai/chatwire/pkg/chat"
	"github.com/chatwire-ai/chatwire/pkg/wire"
)

// DefaultThrottle paces reductions so consumers see smooth incremental
// updates instead of bursty flushes.
const DefaultThrottle = 10 * time.Millisecond

// Options configures session behavior.
type Options struct {
	// Transport issues round trips. Required for any operation that talks
	// to the server.
	Transport chat.Transport
	// MaxSteps is the automatic-continuation budget per user turn.
	// Defaults to chat.DefaultMaxSteps (no continuation).
	MaxSteps int
	// Throttle is the pacing delay between reductions. Zero means
	// DefaultThrottle; negative disables pacing.
	Throttle time.Duration
	// KeepLastMessageOnError skips the rollback of an optimistic append
	// when the request fails before any bytes arrive.
	KeepLastMessageOnError bool
	// PlainText treats response bodies as one untagged running text delta
	// instead of the multiplexed line protocol.
	PlainText bool
	// ClientTools executes tool calls the response leaves unresolved.
	// After each round trip, pending invocations whose names are
	// registered here run locally and their results are attached before
	// the continuation check.
	ClientTools *clienttool.Registry
	// Extra fields are merged into every request payload.
	Extra map[string]any
	// Bus receives session events. Nil uses the process-global bus.
	Bus *event.Bus
}

func (o Options) maxSteps() int {
	if o.MaxSteps < 1 {
		return chat.DefaultMaxSteps
	}
	return o.MaxSteps
}

func (o Options) throttle() time.Duration {
	if o.Throttle == 0 {
		return DefaultThrottle
	}
	if o.Throttle < 0 {
		return 0
	}
	return o.Throttle
}

// Session is the shared state of one conversation. Every consumer holding a
// handle for the same session id observes the same underlying state; all
// mutating operations are serialized, so a second submission queues until
// the active request cycle drains.
type Session struct {
	id   string
	opts Options

	mu       sync.Mutex
	messages []*chat.Message
	sideData []json.RawMessage
	loading  bool
	err      error
	finish   *chat.FinishInfo
	usage    wire.Usage

	active  bool
	cancel  context.CancelFunc
	waiters []chan error

	// afterIdle runs once per drained request cycle, outside the lock.
	// The store uses it to persist.
	afterIdle func(*Session)
}

func newSession(id string, opts Options) *Session {
	return &Session{id: id, opts: opts}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Messages returns a snapshot of the conversation.
func (s *Session) Messages() []*chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.CloneMessages(s.messages)
}

// SideData returns a snapshot of the side data array.
func (s *Session) SideData() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRaw(s.sideData)
}

// IsLoading reports whether a request cycle is in flight.
func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the terminal error of the last request cycle, if any. A
// successful cycle clears it; cancellation never sets it.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Finish returns the accounting of the most recent completed response.
func (s *Session) Finish() *chat.FinishInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finish
}

// Usage returns the lifetime token totals across every round trip.
func (s *Session) Usage() wire.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// prepared is the outcome of a serialized mutation: the snapshot to restore
// if the first round trip fails before any bytes, whether a request cycle
// should run at all, and whether the message list changed.
type prepared struct {
	rollback []*chat.Message
	request  bool
	changed  bool
}

// Append applies an optimistic append of the caller's message and runs the
// request cycle. It blocks until the cycle drains; subscribe to the event
// bus for incremental updates. Cancellation via Stop is a clean stop, not an
// error.
func (s *Session) Append(ctx context.Context, msg *chat.Message) error {
	if msg == nil {
		return fmt.Errorf("session %s: append of nil message", s.id)
	}
	return s.submit(ctx, func() prepared {
		rollback := chat.CloneMessages(s.messages)
		s.messages = append(s.messages, msg.Clone())
		return prepared{rollback: rollback, request: true, changed: true}
	})
}

// Reload discards the trailing assistant response, if present, and re-issues
// the last user turn. A failed re-issue restores the discarded response.
func (s *Session) Reload(ctx context.Context) error {
	return s.submit(ctx, func() prepared {
		rollback := chat.CloneMessages(s.messages)
		n := len(s.messages)
		for n > 0 && s.messages[n-1].Role == chat.RoleAssistant {
			n--
		}
		if n == len(s.messages) && n > 0 {
			// Nothing to discard; re-issue as-is.
			return prepared{rollback: rollback, request: true}
		}
		s.messages = chat.CloneMessages(s.messages[:n])
		return prepared{rollback: rollback, request: n > 0, changed: true}
	})
}

// SetMessages replaces the conversation wholesale, for edit-and-regenerate
// flows. No request is issued.
func (s *Session) SetMessages(ctx context.Context, messages []*chat.Message) error {
	return s.submit(ctx, func() prepared {
		s.messages = chat.CloneMessages(messages)
		return prepared{request: false, changed: true}
	})
}

// AddToolResult attaches a result to the matching invocation on the trailing
// assistant message. If that completes the message's tool calls, the next
// round trip is triggered automatically.
func (s *Session) AddToolResult(ctx context.Context, toolCallID string, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("session %s: encode tool result: %w", s.id, err)
	}

	attachErr := error(nil)
	runErr := s.submit(ctx, func() prepared {
		last := s.trailingAssistantLocked()
		if last == nil {
			attachErr = chat.ErrNoMatchingToolCall
			return prepared{}
		}
		// Copy-on-write: published snapshots stay frozen.
		s.messages = chat.CloneMessages(s.messages)
		inv := s.messages[len(s.messages)-1].Invocation(toolCallID)
		if inv == nil {
			attachErr = chat.ErrNoMatchingToolCall
			return prepared{}
		}
		inv.Result = raw
		// The attachment survives a failed follow-up request.
		return prepared{
			rollback: chat.CloneMessages(s.messages),
			request:  s.messages[len(s.messages)-1].Ready(),
			changed:  true,
		}
	})
	if attachErr != nil {
		return attachErr
	}
	return runErr
}

// Stop cancels the in-flight request cycle. Already-reduced messages are
// kept; no rollback happens and the error slot stays clear.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// submit serializes a mutation against the session. If a request cycle is
// active, it queues until the cycle drains, then re-attempts. The prepare
// function runs under the session lock.
func (s *Session) submit(ctx context.Context, prepare func() prepared) error {
	s.mu.Lock()
	if s.active {
		waiter := make(chan error, 1)
		s.waiters = append(s.waiters, waiter)
		s.mu.Unlock()

		select {
		case err := <-waiter:
			if err != nil {
				return err
			}
			return s.submit(ctx, prepare)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.active = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	p := prepare()
	var snap []*chat.Message
	if p.changed {
		snap = chat.CloneMessages(s.messages)
	}
	s.mu.Unlock()

	if p.changed {
		s.publish(event.MessagesUpdated, event.MessagesUpdatedData{SessionID: s.id, Messages: snap})
	}

	var runErr error
	if p.request {
		runErr = s.run(runCtx, p.rollback)
	}
	cancel()

	s.mu.Lock()
	s.active = false
	s.cancel = nil
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, w := range waiters {
		w <- nil
	}
	if p.request {
		s.publish(event.SessionIdle, event.SessionIdleData{SessionID: s.id})
		if s.afterIdle != nil {
			s.afterIdle(s)
		}
	}
	return runErr
}

// trailingAssistantLocked returns the last message when it is an assistant
// message. Callers hold s.mu.
func (s *Session) trailingAssistantLocked() *chat.Message {
	if len(s.messages) == 0 {
		return nil
	}
	last := s.messages[len(s.messages)-1]
	if last.Role != chat.RoleAssistant {
		return nil
	}
	return last
}

func (s *Session) publish(t event.EventType, data any) {
	e := event.Event{Type: t, Data: data}
	if s.opts.Bus != nil {
		s.opts.Bus.PublishSync(e)
		return
	}
	event.PublishSync(e)
}

func cloneRaw(values []json.RawMessage) []json.RawMessage {
	if values == nil {
		return nil
	}
	out := make([]json.RawMessage, len(values))
	copy(out, values)
	return out
}
