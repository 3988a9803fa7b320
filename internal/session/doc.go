// Package session is the conversation runtime built on top of pkg/chat and
// pkg/wire. A Session owns one conversation: it serializes mutating
// operations, applies optimistic appends with rollback, drives the
// request/reduce cycle against a chat.Transport, and publishes immutable
// snapshots through the event bus after every applied chunk.
//
// The Store keys sessions by id and hands the same *Session to every
// concurrent consumer, so serialization and snapshot guarantees hold
// process-wide. Conversations, side data, and summaries persist through
// internal/storage and survive restarts.
//
// Typical use:
//
//	store := session.NewStore(storage.New(dir), session.Options{
//		Transport: &chat.HTTPTransport{URL: endpoint},
//		MaxSteps:  4,
//	})
//	s, err := store.Acquire(ctx, id)
//	if err != nil { ... }
//	defer store.Release(id)
//
//	unsub := event.Subscribe(event.MessagesUpdated, func(e event.Event) { ... })
//	defer unsub()
//
//	err = s.Append(ctx, chat.NewUserMessage("hello"))
//
// Append blocks until the whole request cycle drains, including automatic
// tool-call continuations up to the step budget. Incremental updates arrive
// on the bus while it runs. Stop cancels the in-flight cycle and keeps
// whatever was already reduced.
package session
