/*
Package event provides a type-safe pub/sub event system for chat sessions.

Publishers emit events and subscribers react to them without direct
dependencies: the session runtime publishes state changes, and consumers
such as the interactive CLI or test harnesses subscribe to redraw or assert.

# Architecture

The package is built on top of watermill's gochannel for infrastructure
while keeping direct-call semantics, so event payloads retain their Go types
instead of passing through a serialization boundary. Each published event is
additionally mirrored as JSON onto the gochannel topic named after its type;
PubSub exposes the channel for middleware-style consumers and for bridging
to a distributed backend.

# Event Types

Session lifecycle:
  - session.created: a session was registered in the store
  - session.updated: session metadata changed
  - session.deleted: a session was removed
  - session.idle: a session's request cycle fully drained
  - session.error: a terminal failure was recorded on the session

Conversation state:
  - messages.updated: a reduction step published a new message snapshot
  - data.updated: side data was appended
  - loading.changed: the in-flight flag flipped
  - step.finished: one round trip within a user turn completed

# Basic Usage

Publishing:

	event.Publish(event.Event{
		Type: event.MessagesUpdated,
		Data: event.MessagesUpdatedData{SessionID: id, Messages: snapshot},
	})

Subscribing:

	unsubscribe := event.Subscribe(event.MessagesUpdated, func(e event.Event) {
		data := e.Data.(event.MessagesUpdatedData)
		render(data.Messages)
	})
	defer unsubscribe()

# Subscriber Safety

PublishSync calls subscribers in the publisher's goroutine. Subscribers must
complete quickly, must not publish re-entrantly, and must not block on
channels without a default case.

# Custom Buses

For testing or isolation, create a dedicated instance:

	bus := event.NewBus()
	defer bus.Close()

Reset clears the global bus between tests.
*/
package event
