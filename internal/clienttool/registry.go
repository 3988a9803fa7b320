// Package clienttool provides a registry of tools the client executes
// itself. When a response finishes with tool calls the server left
// unresolved, a session consults this registry, runs the matching
// handlers, and feeds their results back into the conversation so the
// follow-up request can complete the turn.
package clienttool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultTimeout bounds a single handler execution.
const DefaultTimeout = 30 * time.Second

// Handler executes one tool call. args is the finalized JSON argument
// value from the assistant; the returned value is marshaled as the tool
// result.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is a named handler with optional metadata.
type Tool struct {
	Name        string
	Description string
	Timeout     time.Duration // zero means DefaultTimeout
	Handler     Handler
}

// Registry holds client-side tools by name. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering an existing name replaces it.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("client tool: empty name")
	}
	if t.Handler == nil {
		return fmt.Errorf("client tool %s: nil handler", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
	return nil
}

// RegisterFunc adds a handler under a name with default settings.
func (r *Registry) RegisterFunc(name string, h Handler) error {
	return r.Register(Tool{Name: name, Handler: h})
}

// Unregister removes a tool. Unknown names are a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named handler and marshals its result. The handler
// runs under a deadline; a handler that ignores cancellation leaks its
// goroutine but never blocks the caller past the timeout.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("client tool %s: not registered", name)
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := t.Handler(execCtx, args)
		ch <- outcome{value: v, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			return nil, fmt.Errorf("client tool %s: %w", name, out.err)
		}
		raw, err := json.Marshal(out.value)
		if err != nil {
			return nil, fmt.Errorf("client tool %s: encode result: %w", name, err)
		}
		return raw, nil
	case <-execCtx.Done():
		return nil, fmt.Errorf("client tool %s: %w", name, execCtx.Err())
	}
}
