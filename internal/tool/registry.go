package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/chatwire-ai/chatwire/internal/logging"
)

// maxSuggestDistance caps how far a registered name may be from an
// unknown one before it stops being a plausible typo.
const maxSuggestDistance = 3

// Registry manages tool registration, enablement and execution.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	enable map[string]bool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// DefaultRegistry creates a registry with the built-in tools registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewWebFetchTool())
	r.Register(NewTimeTool())
	return r
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	logging.Debug().Str("tool", t.Name()).Msg("registered tool")
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name, regardless of enablement.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the enabled tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for name, t := range r.tools {
		if r.enabledLocked(name) {
			tools = append(tools, t)
		}
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Names returns the enabled tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		if r.enabledLocked(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Enable installs enablement patterns, typically the tools section of
// the config. Keys are tool names or glob patterns ("web*",
// "clock_**"), values switch matching tools on or off. Tools that no
// pattern matches stay enabled.
func (r *Registry) Enable(patterns map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if patterns == nil {
		r.enable = nil
		return
	}
	r.enable = make(map[string]bool, len(patterns))
	for k, v := range patterns {
		r.enable[k] = v
	}
}

// Enabled reports whether the named tool is currently enabled.
func (r *Registry) Enabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabledLocked(name)
}

func (r *Registry) enabledLocked(name string) bool {
	if len(r.enable) == 0 {
		return true
	}
	if enabled, ok := r.enable[name]; ok {
		return enabled
	}

	// The most specific pattern wins, so {"*": false, "web*": true}
	// reads the same regardless of map order.
	best := ""
	enabled := true
	for pattern, on := range r.enable {
		if !matchPattern(pattern, name) {
			continue
		}
		if best == "" || len(pattern) > len(best) || (len(pattern) == len(best) && pattern < best) {
			best, enabled = pattern, on
		}
	}
	return enabled
}

// Execute runs the named tool. Unknown names fail with a closest-match
// suggestion, disabled tools fail without running.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (any, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	enabled := r.enabledLocked(name)
	r.mu.RUnlock()

	if !ok {
		if suggestion := r.closest(name); suggestion != "" {
			return nil, fmt.Errorf("unknown tool %q (did you mean %q?)", name, suggestion)
		}
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	if !enabled {
		return nil, fmt.Errorf("tool %q is disabled", name)
	}
	return t.Execute(ctx, args)
}

// closest returns the registered name nearest to the given one, or ""
// when nothing is close enough.
func (r *Registry) closest(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best := ""
	bestDist := maxSuggestDistance + 1
	for id := range r.tools {
		if d := levenshtein.ComputeDistance(name, id); d < bestDist {
			best, bestDist = id, d
		}
	}
	return best
}

// matchPattern checks a tool name against an enablement pattern.
// Simple prefix and suffix wildcards use string matching, anything
// with ** or an interior * goes through doublestar.
func matchPattern(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if strings.Contains(pattern, "**") {
		matched, _ := doublestar.Match(pattern, name)
		return matched
	}
	if strings.Count(pattern, "*") == 1 {
		if strings.HasSuffix(pattern, "*") {
			return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
		}
		if strings.HasPrefix(pattern, "*") {
			return strings.HasSuffix(name, strings.TrimPrefix(pattern, "*"))
		}
	}
	if strings.Contains(pattern, "*") {
		matched, _ := doublestar.Match(pattern, name)
		return matched
	}
	return pattern == name
}
