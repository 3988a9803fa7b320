// Package export renders session transcripts in interchange formats.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/chatwire-ai/chatwire/internal/session"
	"github.com/chatwire-ai/chatwire/pkg/chat"
)

// Transcript is the exportable form of one conversation: the persisted
// session summary, the full message list and any side data the server
// attached along the way.
type Transcript struct {
	Session  session.Info      `json:"session"`
	Messages []*chat.Message   `json:"messages"`
	Data     []json.RawMessage `json:"data,omitempty"`
}

// Exporter renders a transcript in one output format.
type Exporter interface {
	Export(w io.Writer, t *Transcript) error
	Extension() string
}

// Registry maps format names to exporters.
type Registry struct {
	mu        sync.RWMutex
	exporters map[string]Exporter
}

// NewRegistry creates an empty exporter registry.
func NewRegistry() *Registry {
	return &Registry{exporters: make(map[string]Exporter)}
}

// DefaultRegistry creates a registry with the built-in formats registered
// under their names and common aliases.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("json", JSON{})
	r.Register("jsonl", JSONL{})
	r.Register("markdown", Markdown{})
	r.Register("md", Markdown{})
	r.Register("yaml", YAML{})
	r.Register("yml", YAML{})
	return r
}

// Register adds an exporter under a format name, replacing any existing
// registration.
func (r *Registry) Register(name string, e Exporter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exporters[strings.ToLower(name)] = e
}

// Get retrieves an exporter by format name.
func (r *Registry) Get(name string) (Exporter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.exporters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown export format %q (available: %s)", name, strings.Join(r.formatsLocked(), ", "))
	}
	return e, nil
}

// Formats returns the registered format names sorted alphabetically.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.formatsLocked()
}

func (r *Registry) formatsLocked() []string {
	names := make([]string, 0, len(r.exporters))
	for name := range r.exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
