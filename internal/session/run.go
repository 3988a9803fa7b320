package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chatwire-ai/chatwire/internal/event"
	"github.com/chatwire-ai/chatwire/internal/logging"
	"github.com/chatwire-ai/chatwire/pkg/chat"
	"github.com/chatwire-ai/chatwire/pkg/wire"
)

// run executes one request cycle: round trips until the continuation rules
// say the conversation is settled or the step budget is spent. rollback is
// the snapshot to restore when the cycle fails before any chunk arrived.
func (s *Session) run(ctx context.Context, rollback []*chat.Message) error {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()
	s.publish(event.LoadingChanged, event.LoadingChangedData{SessionID: s.id, Loading: true})

	gotChunk := false
	err := s.drive(ctx, &gotChunk)

	if err != nil && !gotChunk && !chat.IsAbort(err) && !s.opts.KeepLastMessageOnError {
		s.restore(rollback)
	}

	s.mu.Lock()
	s.loading = false
	if err != nil && !chat.IsAbort(err) {
		s.err = err
	}
	s.mu.Unlock()
	s.publish(event.LoadingChanged, event.LoadingChangedData{SessionID: s.id, Loading: false})

	if err != nil {
		if chat.IsAbort(err) {
			logging.Info().Str("session", s.id).Msg("request cycle stopped")
			return nil
		}
		logging.Error().Str("session", s.id).Err(err).Msg("request cycle failed")
		s.publish(event.SessionError, event.SessionErrorData{SessionID: s.id, Message: err.Error()})
		return err
	}
	return nil
}

func (s *Session) drive(ctx context.Context, gotChunk *bool) error {
	maxSteps := s.opts.maxSteps()
	for step := 1; ; step++ {
		if err := s.roundTrip(ctx, step, gotChunk); err != nil {
			return err
		}
		if err := s.runClientTools(ctx); err != nil {
			return err
		}
		s.mu.Lock()
		cont := step < maxSteps && chat.ShouldContinue(s.messages, maxSteps)
		s.mu.Unlock()
		if !cont {
			return nil
		}
		logging.Debug().Str("session", s.id).Int("step", step+1).Msg("tool results complete, continuing")
	}
}

// runClientTools executes pending tool calls the client-side registry owns
// and attaches their results to the trailing assistant message. A handler
// failure becomes an error-shaped result so the follow-up request still
// happens; only cancellation aborts the cycle.
func (s *Session) runClientTools(ctx context.Context) error {
	reg := s.opts.ClientTools
	if reg == nil {
		return nil
	}

	type pendingCall struct {
		id   string
		name string
		args json.RawMessage
	}
	var calls []pendingCall
	s.mu.Lock()
	if last := s.trailingAssistantLocked(); last != nil {
		for _, inv := range last.ToolInvocations {
			if inv.Complete() || !reg.Has(inv.ToolName) {
				continue
			}
			args, _ := json.Marshal(inv.Args)
			calls = append(calls, pendingCall{id: inv.ToolCallID, name: inv.ToolName, args: args})
		}
	}
	s.mu.Unlock()

	for _, call := range calls {
		result, err := reg.Execute(ctx, call.name, call.args)
		if err != nil {
			if chat.IsAbort(err) {
				return err
			}
			logging.Warn().Str("session", s.id).Str("tool", call.name).Err(err).Msg("client tool failed")
			result, _ = json.Marshal(map[string]string{"error": err.Error()})
		}
		s.attachClientResult(call.id, result)
	}
	return nil
}

// attachClientResult records a client tool result on its invocation.
// Copy-on-write, like AddToolResult, so published snapshots stay frozen.
func (s *Session) attachClientResult(callID string, result json.RawMessage) {
	s.mu.Lock()
	s.messages = chat.CloneMessages(s.messages)
	if inv := s.messages[len(s.messages)-1].Invocation(callID); inv != nil {
		inv.Result = result
	}
	snap := chat.CloneMessages(s.messages)
	s.mu.Unlock()
	s.publish(event.MessagesUpdated, event.MessagesUpdatedData{SessionID: s.id, Messages: snap})
}

// roundTrip issues one request and reduces its response stream into the
// session, publishing a snapshot after every applied chunk.
func (s *Session) roundTrip(ctx context.Context, step int, gotChunk *bool) error {
	if s.opts.Transport == nil {
		return errors.New("no transport configured")
	}

	s.mu.Lock()
	msgs := chat.CloneMessages(s.messages)
	side := cloneRaw(s.sideData)
	s.mu.Unlock()

	body, err := s.opts.Transport.Stream(ctx, chat.NextRequest(msgs, s.opts.Extra))
	if err != nil {
		return fmt.Errorf("step %d: %w", step, err)
	}
	defer body.Close()

	var stream wire.Stream
	if s.opts.PlainText {
		stream = wire.NewTextDecoder(body)
	} else {
		stream = wire.NewDecoder(body)
	}

	// The reducer gets its own copy; the request payload above must not
	// observe reductions.
	r := chat.NewReducer(chat.CloneMessages(msgs), side)
	lastData := len(side)

	if throttle := s.opts.throttle(); throttle > 0 {
		pacer := time.NewTimer(throttle)
		defer pacer.Stop()
		stream = paceStream{ctx: ctx, inner: stream, pacer: pacer, interval: throttle}
	}

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("step %d: read stream: %w", step, err)
		}
		*gotChunk = true
		if err := r.Apply(chunk); err != nil {
			s.syncFromReducer(r, &lastData)
			return fmt.Errorf("step %d: %w", step, err)
		}
		s.syncFromReducer(r, &lastData)
	}

	if fin := r.Finish(); fin != nil {
		s.mu.Lock()
		s.usage.PromptTokens += fin.Usage.PromptTokens
		s.usage.CompletionTokens += fin.Usage.CompletionTokens
		s.mu.Unlock()
	}
	s.publish(event.StepFinished, event.StepFinishedData{SessionID: s.id, Finish: r.Finish(), Step: step})
	return nil
}

// syncFromReducer copies the reducer's current view into the session and
// publishes it.
func (s *Session) syncFromReducer(r *chat.Reducer, lastData *int) {
	msgs := r.Messages()
	side := r.SideData()
	fin := r.Finish()

	s.mu.Lock()
	s.messages = msgs
	s.sideData = side
	if fin != nil {
		s.finish = fin
	}
	s.mu.Unlock()

	s.publish(event.MessagesUpdated, event.MessagesUpdatedData{SessionID: s.id, Messages: msgs})
	if len(side) > *lastData {
		s.publish(event.DataUpdated, event.DataUpdatedData{SessionID: s.id, Values: side[*lastData:]})
		*lastData = len(side)
	}
}

// restore rewinds the conversation to the given snapshot after a request
// cycle failed before producing anything.
func (s *Session) restore(snapshot []*chat.Message) {
	s.mu.Lock()
	s.messages = chat.CloneMessages(snapshot)
	snap := chat.CloneMessages(s.messages)
	s.mu.Unlock()
	s.publish(event.MessagesUpdated, event.MessagesUpdatedData{SessionID: s.id, Messages: snap})
}

// paceStream spaces out chunk delivery so subscribers observe smooth
// incremental updates. Cancellation interrupts the wait.
type paceStream struct {
	ctx      context.Context
	inner    wire.Stream
	pacer    *time.Timer
	interval time.Duration
}

func (p paceStream) Recv() (wire.Chunk, error) {
	c, err := p.inner.Recv()
	if err != nil {
		return nil, err
	}
	select {
	case <-p.ctx.Done():
		return nil, p.ctx.Err()
	case <-p.pacer.C:
	}
	p.pacer.Reset(p.interval)
	return c, nil
}
