package commands

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chatwire-ai/chatwire/internal/config"
	"github.com/chatwire-ai/chatwire/internal/event"
	"github.com/chatwire-ai/chatwire/internal/session"
	"github.com/chatwire-ai/chatwire/pkg/chat"
)

// defaultEndpoint is used when neither the flag nor the config names one.
const defaultEndpoint = "http://127.0.0.1:8080/v1/chat"

// resolveEndpoint picks the chat endpoint: flag, then config, then default.
func resolveEndpoint(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	if cfg.Endpoint != "" {
		return cfg.Endpoint
	}
	return defaultEndpoint
}

// storageDir returns the session storage directory, honoring the config
// override.
func storageDir(cfg *config.Config, paths *config.Paths) string {
	if cfg.Storage != "" {
		return cfg.Storage
	}
	return paths.StoragePath()
}

// validateMode rejects mode flags the protocol does not know.
func validateMode(mode string) error {
	switch mode {
	case "", "data", "text":
		return nil
	default:
		return fmt.Errorf("unknown mode %q (data|text)", mode)
	}
}

// clientOptions builds session options from the merged config plus the
// command-line overrides.
func clientOptions(cfg *config.Config, endpoint, mode string, maxSteps int, bus *event.Bus) session.Options {
	header := make(http.Header)
	for k, v := range cfg.Headers {
		header.Set(k, v)
	}

	opts := session.Options{
		Transport: &chat.HTTPTransport{
			URL:    resolveEndpoint(endpoint, cfg),
			Header: header,
		},
		MaxSteps: cfg.MaxSteps,
		Throttle: time.Duration(cfg.Throttle) * time.Millisecond,
		Bus:      bus,
	}
	if maxSteps > 0 {
		opts.MaxSteps = maxSteps
	}
	if cfg.KeepLastMessageOnError != nil {
		opts.KeepLastMessageOnError = *cfg.KeepLastMessageOnError
	}

	if mode == "" {
		mode = cfg.Mode
	}
	if mode == "text" {
		opts.PlainText = true
		opts.Extra = map[string]any{"mode": "text"}
	}
	return opts
}

// newStreamPrinter returns a subscriber that writes assistant text to w as
// snapshots arrive. Snapshots carry the whole conversation, so the printer
// tracks how much of the trailing assistant message it has already written.
func newStreamPrinter(w io.Writer) event.Subscriber {
	var lastID string
	printed := 0
	return func(e event.Event) {
		data, ok := e.Data.(event.MessagesUpdatedData)
		if !ok || len(data.Messages) == 0 {
			return
		}
		last := data.Messages[len(data.Messages)-1]
		if last.Role != chat.RoleAssistant {
			return
		}
		if last.ID != lastID {
			lastID = last.ID
			printed = 0
		}
		if len(last.Content) > printed {
			fmt.Fprint(w, last.Content[printed:])
			printed = len(last.Content)
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
