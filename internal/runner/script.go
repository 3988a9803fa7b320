package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/chatwire-ai/chatwire/internal/logging"
	"github.com/chatwire-ai/chatwire/pkg/chat"
	"github.com/chatwire-ai/chatwire/pkg/wire"
)

// DefaultChunkDelay paces scripted output when the script does not set
// chunk_delay_ms. Non-zero so clients exercise real incremental
// delivery.
const DefaultChunkDelay = 5 * time.Millisecond

// argFragmentSize is the rune count per scripted tool-argument delta.
const argFragmentSize = 16

// Script is a scripted model: match rules select a canned exchange for
// the latest user prompt.
type Script struct {
	Settings ScriptSettings `yaml:"settings"`
	Defaults ScriptDefaults `yaml:"defaults"`
	Rules    []ScriptRule   `yaml:"rules"`
}

// ScriptSettings tunes delivery.
type ScriptSettings struct {
	// ChunkDelayMS is the pause between emitted events in
	// milliseconds. Unset means DefaultChunkDelay; zero disables
	// pacing.
	ChunkDelayMS *int `yaml:"chunk_delay_ms"`
}

func (s ScriptSettings) delay() time.Duration {
	if s.ChunkDelayMS == nil {
		return DefaultChunkDelay
	}
	return time.Duration(*s.ChunkDelayMS) * time.Millisecond
}

// ScriptDefaults is the behavior when no rule matches.
type ScriptDefaults struct {
	Fallback string `yaml:"fallback"`
}

// ScriptRule maps a prompt match onto a canned exchange. Data values go
// out first, then the optional tool round, then the reply word by word,
// then annotations.
type ScriptRule struct {
	Name        string      `yaml:"name"`
	Match       MatchConfig `yaml:"match"`
	Reply       string      `yaml:"reply"`
	Tool        *ScriptTool `yaml:"tool"`
	Data        []string    `yaml:"data"`        // raw JSON values for the side channel
	Annotations []string    `yaml:"annotations"` // raw JSON values attached to the message
	Priority    int         `yaml:"priority"`    // higher wins when several rules match
}

// ScriptTool describes a tool round replayed before the reply: argument
// deltas, the completed call, and a fixed result. A client tool stops
// at the call and finishes the round with tool-calls; the reply plays
// once the follow-up request carries the executed result.
type ScriptTool struct {
	Name      string `yaml:"name"`
	ID        string `yaml:"id"`        // generated from the name when empty
	Arguments string `yaml:"arguments"` // JSON text, streamed as argument deltas
	Result    string `yaml:"result"`    // JSON result value, ignored for client tools
	Client    bool   `yaml:"client"`    // caller executes the tool
}

// MatchConfig selects prompts. Matchers are case-insensitive and
// checked in field order; the first one present decides.
type MatchConfig struct {
	Exact       string   `yaml:"exact"`
	Contains    string   `yaml:"contains"`
	ContainsAll []string `yaml:"contains_all"`
	ContainsAny []string `yaml:"contains_any"`
	Regex       string   `yaml:"regex"`

	re *regexp.Regexp
}

// Matches reports whether the prompt satisfies this matcher.
func (m *MatchConfig) Matches(prompt string) bool {
	lower := strings.ToLower(prompt)

	if m.Exact != "" {
		return strings.EqualFold(prompt, m.Exact)
	}
	if m.Contains != "" {
		return strings.Contains(lower, strings.ToLower(m.Contains))
	}
	if len(m.ContainsAll) > 0 {
		for _, s := range m.ContainsAll {
			if !strings.Contains(lower, strings.ToLower(s)) {
				return false
			}
		}
		return true
	}
	if len(m.ContainsAny) > 0 {
		for _, s := range m.ContainsAny {
			if strings.Contains(lower, strings.ToLower(s)) {
				return true
			}
		}
		return false
	}
	if m.re != nil {
		return m.re.MatchString(prompt)
	}
	return false
}

// compile validates the script and prepares its matchers.
func (s *Script) compile() error {
	for i := range s.Rules {
		rule := &s.Rules[i]
		name := rule.label(i)

		if rule.Match.Regex != "" {
			re, err := regexp.Compile("(?i)" + rule.Match.Regex)
			if err != nil {
				return fmt.Errorf("rule %s: %w", name, err)
			}
			rule.Match.re = re
		}
		if rule.Tool != nil {
			if rule.Tool.Name == "" {
				return fmt.Errorf("rule %s: tool without a name", name)
			}
			if a := rule.Tool.Arguments; a != "" && !json.Valid([]byte(a)) {
				return fmt.Errorf("rule %s: tool arguments are not valid JSON", name)
			}
			if res := rule.Tool.Result; res != "" && !json.Valid([]byte(res)) {
				return fmt.Errorf("rule %s: tool result is not valid JSON", name)
			}
		}
		for _, d := range rule.Data {
			if !json.Valid([]byte(d)) {
				return fmt.Errorf("rule %s: data value is not valid JSON", name)
			}
		}
		for _, a := range rule.Annotations {
			if !json.Valid([]byte(a)) {
				return fmt.Errorf("rule %s: annotation is not valid JSON", name)
			}
		}
	}
	return nil
}

func (r *ScriptRule) label(i int) string {
	if r.Name != "" {
		return fmt.Sprintf("%q", r.Name)
	}
	return fmt.Sprintf("#%d", i+1)
}

// match returns the highest-priority rule matching the prompt, or nil.
func (s *Script) match(prompt string) *ScriptRule {
	var best *ScriptRule
	bestPriority := -1
	for i := range s.Rules {
		rule := &s.Rules[i]
		if rule.Match.Matches(prompt) && rule.Priority > bestPriority {
			best = rule
			bestPriority = rule.Priority
		}
	}
	return best
}

// ParseScript parses and validates YAML script content.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if s.Defaults.Fallback == "" {
		s.Defaults.Fallback = "I don't have a scripted answer for that."
	}
	if err := s.compile(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScript reads and validates a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScript(data)
}

// DefaultScript covers common demo prompts so the server runs without a
// script file.
func DefaultScript() *Script {
	return &Script{
		Defaults: ScriptDefaults{Fallback: "I don't have a scripted answer for that."},
		Rules: []ScriptRule{
			{
				Name:     "greeting",
				Match:    MatchConfig{Contains: "hello"},
				Reply:    "Hello! How can I help you today?",
				Priority: 1,
			},
			{
				Name:  "current-time",
				Match: MatchConfig{ContainsAny: []string{"what time", "current time"}},
				Tool: &ScriptTool{
					Name:      "time",
					Arguments: `{"timezone":"UTC"}`,
					Result:    `"2024-01-01T00:00:00Z"`,
				},
				Reply:    "It is the start of the year in UTC.",
				Priority: 10,
			},
			{
				Name:     "chart-demo",
				Match:    MatchConfig{Contains: "chart"},
				Data:     []string{`{"series":"demo","points":[1,2,3]}`},
				Reply:    "Here is the demo chart data.",
				Priority: 5,
			},
		},
	}
}

var _ Runner = (*ScriptRunner)(nil)

// ScriptRunner replays scripted exchanges with paced delivery. It is
// the deterministic stand-in for EinoRunner in tests, demos, and
// offline development.
type ScriptRunner struct {
	mu       sync.RWMutex
	script   *Script
	path     string
	watching bool
}

// NewScriptRunner serves the given script. The script is validated, so
// hand-built scripts get the same checks as loaded ones.
func NewScriptRunner(s *Script) (*ScriptRunner, error) {
	if s == nil {
		s = DefaultScript()
	}
	if err := s.compile(); err != nil {
		return nil, err
	}
	return &ScriptRunner{script: s}, nil
}

// NewScriptRunnerFromFile loads path and serves its script. Watch can
// then reload it on change.
func NewScriptRunnerFromFile(path string) (*ScriptRunner, error) {
	s, err := LoadScript(path)
	if err != nil {
		return nil, err
	}
	return &ScriptRunner{script: s, path: path}, nil
}

// Script returns the currently served script. Callers must not mutate
// it.
func (r *ScriptRunner) Script() *Script {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.script
}

// Watch reloads the script whenever its file changes, until ctx ends.
// Only runners created from a file can watch, and only once.
func (r *ScriptRunner) Watch(ctx context.Context) error {
	r.mu.Lock()
	path := r.path
	watching := r.watching
	r.mu.Unlock()
	if path == "" {
		return errors.New("no script file to watch")
	}
	if watching {
		return errors.New("already watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors replace files on save, so watch the directory and filter
	// events by name.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	r.mu.Lock()
	r.watching = true
	r.mu.Unlock()

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				r.reload(path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Error().Err(err).Msg("script watcher error")
			}
		}
	}()
	return nil
}

func (r *ScriptRunner) reload(path string) {
	s, err := LoadScript(path)
	if err != nil {
		logging.Warn().Str("path", path).Err(err).Msg("script reload failed, keeping previous script")
		return
	}
	r.mu.Lock()
	r.script = s
	r.mu.Unlock()
	logging.Info().Str("path", path).Int("rules", len(s.Rules)).Msg("script reloaded")
}

// Run implements Runner.
func (r *ScriptRunner) Run(ctx context.Context, payload *chat.RequestPayload, w *wire.Writer) error {
	r.mu.RLock()
	script := r.script
	r.mu.RUnlock()

	prompt := lastUserPrompt(payload.Messages)
	rule := script.match(prompt)

	delay := script.Settings.delay()
	first := true
	send := func(c wire.Chunk) error {
		if !first && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		first = false
		return w.Send(c)
	}

	if rule == nil {
		fallback := script.Defaults.Fallback
		for _, part := range splitWords(fallback) {
			if err := send(wire.TextDelta{Text: part}); err != nil {
				return err
			}
		}
		return send(wire.Finish{Reason: wire.FinishStop, Usage: estimateUsage(prompt, fallback)})
	}

	// A client-owned call that already came back executed means this is
	// the follow-up request: skip straight to the reply.
	clientReply := rule.Tool != nil && rule.Tool.Client && clientCallDone(payload.Messages, rule.Tool.Name)

	if !clientReply {
		for _, v := range rule.Data {
			if err := send(wire.Data{Values: []json.RawMessage{json.RawMessage(v)}}); err != nil {
				return err
			}
		}
	}

	if st := rule.Tool; st != nil && !clientReply {
		id, args, err := streamToolCall(send, st)
		if err != nil {
			return err
		}
		if st.Client {
			// The caller owns execution: end the response at the call
			// and save the reply for the follow-up request.
			return send(wire.Finish{Reason: wire.FinishToolCalls, Usage: estimateUsage(prompt, args)})
		}

		result := st.Result
		if result == "" {
			result = `"ok"`
		}
		if err := send(wire.ToolResult{ToolCallID: id, Result: json.RawMessage(result)}); err != nil {
			return err
		}
		if err := send(wire.StepFinish{Reason: wire.FinishToolCalls, Usage: estimateUsage(prompt, args), IsContinued: true}); err != nil {
			return err
		}
	}

	for _, part := range splitWords(rule.Reply) {
		if err := send(wire.TextDelta{Text: part}); err != nil {
			return err
		}
	}

	for _, a := range rule.Annotations {
		if err := send(wire.Annotation{Value: json.RawMessage(a)}); err != nil {
			return err
		}
	}

	return send(wire.Finish{Reason: wire.FinishStop, Usage: estimateUsage(prompt, rule.Reply)})
}

// streamToolCall emits the scripted argument deltas and the finalized
// call. Only the first delta names the tool.
func streamToolCall(send func(wire.Chunk) error, st *ScriptTool) (id, args string, err error) {
	id = st.ID
	if id == "" {
		id = fmt.Sprintf("call_%s_001", st.Name)
	}
	args = st.Arguments
	if args == "" {
		args = "{}"
	}

	for i, frag := range splitRunes(args, argFragmentSize) {
		delta := wire.ToolCallDelta{ToolCallID: id, ArgsTextDelta: frag}
		if i == 0 {
			delta.ToolName = st.Name
		}
		if err := send(delta); err != nil {
			return "", "", err
		}
	}
	if err := send(wire.ToolCall{ToolCallID: id, ToolName: st.Name, Args: json.RawMessage(args)}); err != nil {
		return "", "", err
	}
	return id, args, nil
}

// clientCallDone reports whether the request already carries an
// executed call of the named tool on its trailing assistant run.
func clientCallDone(messages []*chat.Message, toolName string) bool {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != chat.RoleAssistant {
			return false
		}
		for _, inv := range messages[i].ToolInvocations {
			if inv.ToolName == toolName && inv.Complete() {
				return true
			}
		}
	}
	return false
}

// lastUserPrompt returns the content of the newest user message.
func lastUserPrompt(messages []*chat.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == chat.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// splitWords cuts text into word-sized deltas, each carrying its
// trailing whitespace so concatenation reproduces the text exactly.
func splitWords(text string) []string {
	var parts []string
	start := 0
	inSpace := false
	for i, r := range text {
		isSpace := unicode.IsSpace(r)
		if inSpace && !isSpace {
			parts = append(parts, text[start:i])
			start = i
		}
		inSpace = isSpace
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

// splitRunes cuts s into fragments of at most size runes.
func splitRunes(s string, size int) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	var parts []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}

// estimateUsage fabricates plausible token counts for scripted output,
// four characters per token.
func estimateUsage(prompt, completion string) wire.Usage {
	return wire.Usage{
		PromptTokens:     len(prompt)/4 + 1,
		CompletionTokens: len(completion)/4 + 1,
	}
}
