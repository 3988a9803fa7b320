package wire

import "encoding/json"

// ChunkType is the single-character wire tag identifying a chunk variant.
type ChunkType string

// The closed tag enumeration. Adding a tag is backward compatible for
// decoders that ignore unknown tags.
const (
	ChunkTextDelta         ChunkType = "0"
	ChunkData              ChunkType = "2"
	ChunkError             ChunkType = "3"
	ChunkAnnotation        ChunkType = "7"
	ChunkMessageAnnotation ChunkType = "8"
	ChunkToolCall          ChunkType = "9"
	ChunkToolResult        ChunkType = "a"
	ChunkToolCallDelta     ChunkType = "c"
	ChunkFinish            ChunkType = "d"
	ChunkStepFinish        ChunkType = "e"
)

// FinishReason reports why the model stopped generating.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content-filter"
	FinishToolCalls     FinishReason = "tool-calls"
	FinishError         FinishReason = "error"
	FinishUnknown       FinishReason = "unknown"
)

// Usage carries token accounting for one response or step.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Chunk is one self-describing event on the multiplexed stream. The
// interface is sealed: the variants below are the complete enumeration.
type Chunk interface {
	Type() ChunkType
	chunk()
}

// TextDelta appends text to the in-progress assistant message.
type TextDelta struct {
	Text string
}

// Data carries out-of-band JSON values, order-significant, appended to the
// session side channel.
type Data struct {
	Values []json.RawMessage
}

// ErrorChunk is the terminal error event from the server.
type ErrorChunk struct {
	Message string
}

// Annotation attaches one JSON metadata value to the current message.
type Annotation struct {
	Value json.RawMessage
}

// MessageAnnotation attaches a batch of metadata values to the current
// message.
type MessageAnnotation struct {
	Values []json.RawMessage
}

// ToolCall is a completed tool invocation request: the server emits it only
// after all tool-call deltas for the same id.
type ToolCall struct {
	ToolCallID string
	ToolName   string
	Args       json.RawMessage
}

// ToolResult resolves a previously emitted tool call.
type ToolResult struct {
	ToolCallID string
	Result     json.RawMessage
}

// ToolCallDelta streams a fragment of a tool call's argument text. ToolName
// is set at least on the first delta for an id and may be empty afterwards.
type ToolCallDelta struct {
	ToolCallID    string
	ToolName      string
	ArgsTextDelta string
}

// Finish terminates a response.
type Finish struct {
	Reason FinishReason
	Usage  Usage
}

// StepFinish terminates one step of a multi-step response; the next
// text delta starts a new assistant message.
type StepFinish struct {
	Reason      FinishReason
	Usage       Usage
	IsContinued bool
}

// Unknown preserves a line whose tag is outside the enumeration. The Decoder
// logs and skips these; DecodeChunk returns them alongside a DecodeError for
// callers that want the raw material.
type Unknown struct {
	Tag     string
	Payload json.RawMessage
}

func (TextDelta) Type() ChunkType         { return ChunkTextDelta }
func (Data) Type() ChunkType              { return ChunkData }
func (ErrorChunk) Type() ChunkType        { return ChunkError }
func (Annotation) Type() ChunkType        { return ChunkAnnotation }
func (MessageAnnotation) Type() ChunkType { return ChunkMessageAnnotation }
func (ToolCall) Type() ChunkType          { return ChunkToolCall }
func (ToolResult) Type() ChunkType        { return ChunkToolResult }
func (ToolCallDelta) Type() ChunkType     { return ChunkToolCallDelta }
func (Finish) Type() ChunkType            { return ChunkFinish }
func (StepFinish) Type() ChunkType        { return ChunkStepFinish }
func (c Unknown) Type() ChunkType         { return ChunkType(c.Tag) }

func (TextDelta) chunk()         {}
func (Data) chunk()              {}
func (ErrorChunk) chunk()        {}
func (Annotation) chunk()        {}
func (MessageAnnotation) chunk() {}
func (ToolCall) chunk()          {}
func (ToolResult) chunk()        {}
func (ToolCallDelta) chunk()     {}
func (Finish) chunk()            {}
func (StepFinish) chunk()        {}
func (Unknown) chunk()           {}

// Interface compliance.
var (
	_ Chunk = TextDelta{}
	_ Chunk = Data{}
	_ Chunk = ErrorChunk{}
	_ Chunk = Annotation{}
	_ Chunk = MessageAnnotation{}
	_ Chunk = ToolCall{}
	_ Chunk = ToolResult{}
	_ Chunk = ToolCallDelta{}
	_ Chunk = Finish{}
	_ Chunk = StepFinish{}
	_ Chunk = Unknown{}
)
