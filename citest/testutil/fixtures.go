package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/chatwire-ai/chatwire/internal/runner"
)

// RandomString generates a random string of n characters.
func RandomString(n int) string {
	bytes := make([]byte, n/2+1)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)[:n]
}

// TempDir creates a temporary directory.
type TempDir struct {
	Path string
}

// NewTempDir creates a temp directory.
func NewTempDir() (*TempDir, error) {
	path, err := os.MkdirTemp("", "chatwire-test-*")
	if err != nil {
		return nil, err
	}
	return &TempDir{Path: path}, nil
}

// CreateFile creates a file in the temp directory.
func (d *TempDir) CreateFile(name, content string) (string, error) {
	path := filepath.Join(d.Path, name)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Cleanup removes the temp directory and all contents.
func (d *TempDir) Cleanup() {
	os.RemoveAll(d.Path)
}

// UnpacedSettings disables chunk pacing so scripted streams arrive at
// full speed.
func UnpacedSettings() runner.ScriptSettings {
	zero := 0
	return runner.ScriptSettings{ChunkDelayMS: &zero}
}

// UnpacedScript builds an unpaced script from rules, with a fixed
// fallback for unmatched prompts.
func UnpacedScript(rules ...runner.ScriptRule) *runner.Script {
	return &runner.Script{
		Settings: UnpacedSettings(),
		Defaults: runner.ScriptDefaults{Fallback: "No scripted answer."},
		Rules:    rules,
	}
}

// ReplyScript answers prompts containing the substring with a fixed
// reply.
func ReplyScript(contains, reply string) *runner.Script {
	return UnpacedScript(runner.ScriptRule{
		Name:  "reply",
		Match: runner.MatchConfig{Contains: contains},
		Reply: reply,
	})
}
