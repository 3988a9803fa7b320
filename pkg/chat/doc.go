/*
Package chat models a streamed conversation and the client-side state machine
that reconstructs it.

A conversation is an ordered list of Messages plus an order-significant side
data array. The server streams one response as a sequence of wire chunks
(see pkg/wire); the Reducer folds those chunks into the message list one
event at a time, tracking the in-progress assistant message, accumulating
partial tool-call arguments through pkg/partialjson, and attaching tool
results wherever their call id lives.

The Orchestrator decides, after each completed response, whether the client
owes the server an automatic follow-up round trip: that happens when the
trailing assistant message carries tool invocations that all have results,
and the number of consecutive trailing assistant messages is still below the
step budget. Requests always carry the full accumulated message list; the
exchange is stateless per round trip at the transport level.

Session runtime (shared state across consumers, optimistic append with
rollback, cancellation) lives in internal/session and builds on this
package.
*/
package chat
