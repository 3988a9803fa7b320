package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeErrorKind classifies frame-level decode failures.
type DecodeErrorKind string

const (
	// UnknownChunkType marks a tag outside the enumeration.
	UnknownChunkType DecodeErrorKind = "unknown chunk type"
	// BadPayload marks a payload that is not valid JSON for its tag.
	BadPayload DecodeErrorKind = "bad payload"
	// MissingSeparator marks a line without the tag:payload colon.
	MissingSeparator DecodeErrorKind = "missing separator"
)

// DecodeError reports a malformed frame. Decode errors are recoverable:
// the affected event is dropped and the stream continues.
type DecodeError struct {
	Kind DecodeErrorKind
	Tag  string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("wire: %s %q", e.Kind, e.Tag)
	}
	return fmt.Sprintf("wire: %s", e.Kind)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Wire payload shapes. Field names follow the protocol's camelCase JSON.
type toolCallPayload struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
}

type toolResultPayload struct {
	ToolCallID string          `json:"toolCallId"`
	Result     json.RawMessage `json:"result"`
}

type toolCallDeltaPayload struct {
	ToolCallID    string `json:"toolCallId"`
	ToolName      string `json:"toolName,omitempty"`
	ArgsTextDelta string `json:"argsTextDelta"`
}

type finishPayload struct {
	FinishReason FinishReason `json:"finishReason"`
	Usage        Usage        `json:"usage"`
}

type stepFinishPayload struct {
	FinishReason FinishReason `json:"finishReason"`
	Usage        Usage        `json:"usage"`
	IsContinued  bool         `json:"isContinued"`
}

// EncodeChunk renders a chunk as one wire line including the trailing
// newline. The payload is JSON encoded, so the line never contains an
// embedded raw newline.
func EncodeChunk(c Chunk) ([]byte, error) {
	var payload any
	switch v := c.(type) {
	case TextDelta:
		payload = v.Text
	case Data:
		vals := v.Values
		if vals == nil {
			vals = []json.RawMessage{}
		}
		payload = vals
	case ErrorChunk:
		payload = v.Message
	case Annotation:
		if len(v.Value) == 0 {
			return nil, fmt.Errorf("wire: annotation without value")
		}
		payload = v.Value
	case MessageAnnotation:
		vals := v.Values
		if vals == nil {
			vals = []json.RawMessage{}
		}
		payload = vals
	case ToolCall:
		payload = toolCallPayload{ToolCallID: v.ToolCallID, ToolName: v.ToolName, Args: v.Args}
	case ToolResult:
		payload = toolResultPayload{ToolCallID: v.ToolCallID, Result: v.Result}
	case ToolCallDelta:
		payload = toolCallDeltaPayload{ToolCallID: v.ToolCallID, ToolName: v.ToolName, ArgsTextDelta: v.ArgsTextDelta}
	case Finish:
		payload = finishPayload{FinishReason: v.Reason, Usage: v.Usage}
	case StepFinish:
		payload = stepFinishPayload{FinishReason: v.Reason, Usage: v.Usage, IsContinued: v.IsContinued}
	case Unknown:
		return nil, fmt.Errorf("wire: cannot encode unknown chunk tag %q", v.Tag)
	default:
		return nil, fmt.Errorf("wire: cannot encode chunk type %T", c)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", c.Type(), err)
	}

	line := make([]byte, 0, len(c.Type())+len(body)+2)
	line = append(line, c.Type()...)
	line = append(line, ':')
	line = append(line, body...)
	line = append(line, '\n')
	return line, nil
}

// DecodeChunk parses one wire line (without its newline) into a chunk.
// A line with an unrecognized tag returns both an Unknown chunk carrying the
// raw material and a DecodeError of kind UnknownChunkType, so callers decide
// whether to inspect or drop it.
func DecodeChunk(line []byte) (Chunk, error) {
	line = bytes.TrimSuffix(line, []byte("\r"))

	sep := bytes.IndexByte(line, ':')
	if sep < 0 {
		return nil, &DecodeError{Kind: MissingSeparator}
	}
	tag := string(line[:sep])
	payload := line[sep+1:]

	bad := func(err error) error {
		return &DecodeError{Kind: BadPayload, Tag: tag, Err: err}
	}

	switch ChunkType(tag) {
	case ChunkTextDelta:
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, bad(err)
		}
		return TextDelta{Text: s}, nil

	case ChunkData:
		var vals []json.RawMessage
		if err := json.Unmarshal(payload, &vals); err != nil {
			return nil, bad(err)
		}
		return Data{Values: vals}, nil

	case ChunkError:
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, bad(err)
		}
		return ErrorChunk{Message: s}, nil

	case ChunkAnnotation:
		var raw json.RawMessage
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, bad(err)
		}
		return Annotation{Value: raw}, nil

	case ChunkMessageAnnotation:
		var vals []json.RawMessage
		if err := json.Unmarshal(payload, &vals); err != nil {
			return nil, bad(err)
		}
		return MessageAnnotation{Values: vals}, nil

	case ChunkToolCall:
		var p toolCallPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, bad(err)
		}
		return ToolCall{ToolCallID: p.ToolCallID, ToolName: p.ToolName, Args: p.Args}, nil

	case ChunkToolResult:
		var p toolResultPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, bad(err)
		}
		return ToolResult{ToolCallID: p.ToolCallID, Result: p.Result}, nil

	case ChunkToolCallDelta:
		var p toolCallDeltaPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, bad(err)
		}
		return ToolCallDelta{ToolCallID: p.ToolCallID, ToolName: p.ToolName, ArgsTextDelta: p.ArgsTextDelta}, nil

	case ChunkFinish:
		var p finishPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, bad(err)
		}
		return Finish{Reason: p.FinishReason, Usage: p.Usage}, nil

	case ChunkStepFinish:
		var p stepFinishPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, bad(err)
		}
		return StepFinish{Reason: p.FinishReason, Usage: p.Usage, IsContinued: p.IsContinued}, nil

	default:
		raw := json.RawMessage(append([]byte(nil), payload...))
		return Unknown{Tag: tag, Payload: raw}, &DecodeError{Kind: UnknownChunkType, Tag: tag}
	}
}
