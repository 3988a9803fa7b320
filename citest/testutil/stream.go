package testutil

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/chatwire-ai/chatwire/pkg/wire"
)

// StreamRecording is a decoded protocol stream, kept in arrival order for
// assertions.
type StreamRecording struct {
	Chunks []wire.Chunk
}

// RecordStream decodes every chunk from r until EOF.
func RecordStream(r io.Reader) (*StreamRecording, error) {
	dec := wire.NewDecoder(r)
	rec := &StreamRecording{}
	for {
		chunk, err := dec.Recv()
		if err == io.EOF {
			return rec, nil
		}
		if err != nil {
			return rec, err
		}
		rec.Chunks = append(rec.Chunks, chunk)
	}
}

// TextContent concatenates the text deltas.
func (rec *StreamRecording) TextContent() string {
	var b strings.Builder
	for _, c := range rec.Chunks {
		if td, ok := c.(wire.TextDelta); ok {
			b.WriteString(td.Text)
		}
	}
	return b.String()
}

// ToolCalls returns the completed tool call events in order.
func (rec *StreamRecording) ToolCalls() []wire.ToolCall {
	var calls []wire.ToolCall
	for _, c := range rec.Chunks {
		if tc, ok := c.(wire.ToolCall); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// ToolResults returns the tool result events in order.
func (rec *StreamRecording) ToolResults() []wire.ToolResult {
	var results []wire.ToolResult
	for _, c := range rec.Chunks {
		if tr, ok := c.(wire.ToolResult); ok {
			results = append(results, tr)
		}
	}
	return results
}

// ArgsText concatenates the argument deltas for one tool call id.
func (rec *StreamRecording) ArgsText(toolCallID string) string {
	var b strings.Builder
	for _, c := range rec.Chunks {
		if d, ok := c.(wire.ToolCallDelta); ok && d.ToolCallID == toolCallID {
			b.WriteString(d.ArgsTextDelta)
		}
	}
	return b.String()
}

// StepFinishes returns the step boundary events in order.
func (rec *StreamRecording) StepFinishes() []wire.StepFinish {
	var steps []wire.StepFinish
	for _, c := range rec.Chunks {
		if sf, ok := c.(wire.StepFinish); ok {
			steps = append(steps, sf)
		}
	}
	return steps
}

// DataValues returns every side data value in arrival order.
func (rec *StreamRecording) DataValues() []json.RawMessage {
	var values []json.RawMessage
	for _, c := range rec.Chunks {
		if d, ok := c.(wire.Data); ok {
			values = append(values, d.Values...)
		}
	}
	return values
}

// Annotations returns every annotation value in arrival order.
func (rec *StreamRecording) Annotations() []json.RawMessage {
	var values []json.RawMessage
	for _, c := range rec.Chunks {
		switch a := c.(type) {
		case wire.Annotation:
			values = append(values, a.Value)
		case wire.MessageAnnotation:
			values = append(values, a.Values...)
		}
	}
	return values
}

// Errors returns the messages of streamed error events.
func (rec *StreamRecording) Errors() []string {
	var msgs []string
	for _, c := range rec.Chunks {
		if e, ok := c.(wire.ErrorChunk); ok {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

// Finish returns the terminal finish event, if one arrived.
func (rec *StreamRecording) Finish() (wire.Finish, bool) {
	for i := len(rec.Chunks) - 1; i >= 0; i-- {
		if f, ok := rec.Chunks[i].(wire.Finish); ok {
			return f, true
		}
	}
	return wire.Finish{}, false
}

// CountType counts chunks of the given type.
func (rec *StreamRecording) CountType(t wire.ChunkType) int {
	count := 0
	for _, c := range rec.Chunks {
		if c.Type() == t {
			count++
		}
	}
	return count
}

// IndexOf returns the position of the first chunk of the given type, or
// -1 when none arrived.
func (rec *StreamRecording) IndexOf(t wire.ChunkType) int {
	for i, c := range rec.Chunks {
		if c.Type() == t {
			return i
		}
	}
	return -1
}
