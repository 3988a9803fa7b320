// Package runner produces the event stream for one chat round trip.
// EinoRunner streams a real model and executes registry tools between
// steps; ScriptRunner replays scripted exchanges for tests, demos, and
// offline development.
package runner

import (
	"context"

	"github.com/chatwire-ai/chatwire/pkg/chat"
	"github.com/chatwire-ai/chatwire/pkg/wire"
)

// Runner generates the complete event stream for one request. A run
// emits a tool call only after all of that call's argument deltas, and
// exactly one terminal event per response: a finish on success, an
// error event on failure after streaming began. Step-finish events
// separate automatic tool rounds inside the response and always mark
// them continued.
//
// A returned error without any events on the wire means the caller
// still owns the response and can report the failure its own way.
type Runner interface {
	Run(ctx context.Context, payload *chat.RequestPayload, w *wire.Writer) error
}
