package chat

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoMatchingToolCall is returned by AddToolResult when the trailing
// assistant message has no invocation with the given call id.
var ErrNoMatchingToolCall = errors.New("chat: no matching tool call")

// AbortError reports a stream stopped by the caller. It is a clean terminal
// state, not a failure: partial content is kept and the session's error slot
// stays empty.
type AbortError struct {
	Cause error
}

func (e *AbortError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("chat: stream aborted: %v", e.Cause)
	}
	return "chat: stream aborted"
}

func (e *AbortError) Unwrap() error {
	return e.Cause
}

// IsAbort reports whether err represents caller-initiated cancellation.
func IsAbort(err error) bool {
	var abort *AbortError
	return errors.As(err, &abort) || errors.Is(err, context.Canceled)
}

// TransportError reports a failed round trip: the request never produced a
// usable response stream, or the server answered with a non-2xx status.
// Status is zero when no response arrived at all.
type TransportError struct {
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		if e.Body != "" {
			return fmt.Sprintf("chat: transport: status %d: %s", e.Status, e.Body)
		}
		return fmt.Sprintf("chat: transport: status %d", e.Status)
	}
	return fmt.Sprintf("chat: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a terminal error event streamed by the server. Partial
// content reduced before it is retained; no rollback happens.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Message
}
