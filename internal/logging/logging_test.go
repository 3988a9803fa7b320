package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetLogger restores the default global logger after a test mutated it.
func resetLogger(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		Init(DefaultConfig())
	})
}

// logLines parses one JSON object per line from the captured output.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), "line %q", line)
		out = append(out, m)
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, InfoLevel, cfg.Level)
	assert.Equal(t, os.Stderr, cfg.Output)
	assert.False(t, cfg.Pretty)
	assert.Equal(t, time.RFC3339, cfg.TimeFormat)
	assert.False(t, cfg.LogToFile)
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"Warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"FATAL", FatalLevel},
		{"  info  ", InfoLevel},
		{"verbose", InfoLevel},
		{"", InfoLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseLevel(tc.in), "input %q", tc.in)
	}
}

func TestStructuredOutput(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, Output: &buf})

	Info().Str("session", "01A").Int("step", 2).Msg("round trip finished")

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "round trip finished", lines[0]["message"])
	assert.Equal(t, "01A", lines[0]["session"])
	assert.Equal(t, float64(2), lines[0]["step"])
	assert.Contains(t, lines[0], "time")
}

func TestLevelFiltering(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, Output: &buf})

	Debug().Msg("dropped")
	Info().Msg("dropped too")
	Warn().Str("tool", "webfetch").Msg("kept")
	Error().Err(errors.New("boom")).Msg("kept as well")

	lines := logLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestPrettyOutput(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf, Pretty: true})

	Info().Msg("script reloaded")

	// Console output is human text, not JSON objects.
	out := buf.String()
	assert.Contains(t, out, "script reloaded")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))))
}

func TestChildLoggerFields(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})

	child := With().Str("component", "server").Logger()
	child.Info().Msg("listening")

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "server", lines[0]["component"])
}

func TestLogToFileTee(t *testing.T) {
	resetLogger(t)
	dir := t.TempDir()
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf, LogToFile: true, LogDir: dir})

	path := GetLogFilePath()
	require.NotEmpty(t, path)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "chatwire-"))

	Info().Str("session", "01B").Msg("persisted")
	Close()

	// The same line reached both the writer and the file.
	assert.Contains(t, buf.String(), "persisted")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "persisted")
	assert.Contains(t, string(content), `"session":"01B"`)
}

func TestCloseClearsFilePath(t *testing.T) {
	resetLogger(t)
	Init(Config{Output: &bytes.Buffer{}, LogToFile: true, LogDir: t.TempDir()})
	require.NotEmpty(t, GetLogFilePath())

	Close()
	assert.Empty(t, GetLogFilePath())

	// Closing twice is fine.
	Close()
	assert.Empty(t, GetLogFilePath())
}

func TestNoFilePathWithoutFileLogging(t *testing.T) {
	resetLogger(t)
	Init(Config{Output: &bytes.Buffer{}})
	assert.Empty(t, GetLogFilePath())
}

func TestReinitReplacesLogFile(t *testing.T) {
	resetLogger(t)
	dir := t.TempDir()
	var buf bytes.Buffer

	Init(Config{Output: &buf, LogToFile: true, LogDir: dir})
	first := GetLogFilePath()
	require.NotEmpty(t, first)

	// Re-initializing closes the first file and opens a fresh one.
	Init(Config{Output: &buf, LogToFile: true, LogDir: dir})
	second := GetLogFilePath()
	require.NotEmpty(t, second)

	Info().Msg("after reinit")
	Close()

	content, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(content), "after reinit")
}

func TestInitZeroValueConfig(t *testing.T) {
	resetLogger(t)

	// Output, time format, and log dir all fall back to defaults.
	assert.NotPanics(t, func() {
		Init(Config{})
		Info().Msg("defaults hold")
	})
}
