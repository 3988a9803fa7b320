package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/chatwire-ai/chatwire/internal/session"
	"github.com/chatwire-ai/chatwire/pkg/chat"
)

// JSON renders the whole transcript as one indented JSON document.
type JSON struct{}

func (JSON) Extension() string { return "json" }

func (JSON) Export(w io.Writer, t *Transcript) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	return nil
}

// JSONL renders the transcript as newline-delimited JSON: one session
// record, then one record per message, then one per side-data value. Each
// line carries a type discriminator so consumers can stream without
// buffering the whole file.
type JSONL struct{}

// jsonlRecord is one line of a JSONL export.
type jsonlRecord struct {
	Type    string          `json:"type"`
	Session *session.Info   `json:"session,omitempty"`
	Message *chat.Message   `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (JSONL) Extension() string { return "jsonl" }

func (JSONL) Export(w io.Writer, t *Transcript) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(jsonlRecord{Type: "session", Session: &t.Session}); err != nil {
		return fmt.Errorf("export jsonl: %w", err)
	}
	for _, m := range t.Messages {
		if err := enc.Encode(jsonlRecord{Type: "message", Message: m}); err != nil {
			return fmt.Errorf("export jsonl: %w", err)
		}
	}
	for _, d := range t.Data {
		if err := enc.Encode(jsonlRecord{Type: "data", Data: d}); err != nil {
			return fmt.Errorf("export jsonl: %w", err)
		}
	}
	return nil
}
