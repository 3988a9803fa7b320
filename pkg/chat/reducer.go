package chat

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/chatwire-ai/chatwire/pkg/partialjson"
	"github.com/chatwire-ai/chatwire/pkg/wire"
)

// FinishInfo records the terminal accounting of one response.
type FinishInfo struct {
	Reason      wire.FinishReason `json:"finishReason"`
	Usage       wire.Usage        `json:"usage"`
	IsContinued bool              `json:"isContinued,omitempty"`
}

// Reducer folds decoded wire chunks into conversation state, one update per
// chunk. It tracks the identity of the in-progress assistant message and the
// raw argument text accumulated per tool call id. The working state is
// mutated in place; Messages and SideData return fresh snapshots so
// consumers can diff successive publications.
//
// Chunks for one response must be applied in arrival order, and reduction
// stops at the first error Apply returns.
type Reducer struct {
	messages  []*Message
	sideData  []json.RawMessage
	currentID string
	argText   map[string]string
	finish    *FinishInfo
}

// NewReducer seeds a reducer with prior conversation state. The reducer
// takes ownership of both slices.
func NewReducer(messages []*Message, sideData []json.RawMessage) *Reducer {
	return &Reducer{
		messages: messages,
		sideData: sideData,
		argText:  make(map[string]string),
	}
}

// Apply folds one chunk into the state. It returns an error only for a
// terminal server error event, which ends reduction for this response.
func (r *Reducer) Apply(chunk wire.Chunk) error {
	switch c := chunk.(type) {
	case wire.TextDelta:
		m := r.inProgress()
		m.Content += c.Text

	case wire.ToolCallDelta:
		m := r.inProgress()
		inv := m.Invocation(c.ToolCallID)
		if inv == nil {
			m.ToolInvocations = append(m.ToolInvocations, ToolInvocation{
				ToolCallID: c.ToolCallID,
				ToolName:   c.ToolName,
			})
			inv = &m.ToolInvocations[len(m.ToolInvocations)-1]
		} else if inv.ToolName == "" && c.ToolName != "" {
			inv.ToolName = c.ToolName
		}
		r.argText[c.ToolCallID] += c.ArgsTextDelta
		if v, ok := partialjson.Parse(r.argText[c.ToolCallID]); ok {
			inv.Args = v
		}

	case wire.ToolCall:
		m := r.inProgress()
		inv := m.Invocation(c.ToolCallID)
		if inv == nil {
			m.ToolInvocations = append(m.ToolInvocations, ToolInvocation{
				ToolCallID: c.ToolCallID,
			})
			inv = &m.ToolInvocations[len(m.ToolInvocations)-1]
		}
		inv.ToolName = c.ToolName
		var v any
		if err := json.Unmarshal(c.Args, &v); err != nil {
			log.Warn().Str("toolCallId", c.ToolCallID).Err(err).
				Msg("tool call arguments did not parse")
		} else {
			inv.Args = v
		}
		delete(r.argText, c.ToolCallID)

	case wire.ToolResult:
		if inv := r.findInvocation(c.ToolCallID); inv != nil {
			inv.Result = c.Result
		} else {
			log.Warn().Str("toolCallId", c.ToolCallID).
				Msg("tool result without matching call")
		}

	case wire.Data:
		r.sideData = append(r.sideData, c.Values...)

	case wire.Annotation:
		m := r.inProgress()
		m.Annotations = append(m.Annotations, c.Value)

	case wire.MessageAnnotation:
		m := r.inProgress()
		m.Annotations = append(m.Annotations, c.Values...)

	case wire.Finish:
		r.finish = &FinishInfo{Reason: c.Reason, Usage: c.Usage}
		r.currentID = ""

	case wire.StepFinish:
		// The next text delta starts a fresh assistant message.
		r.finish = &FinishInfo{Reason: c.Reason, Usage: c.Usage, IsContinued: c.IsContinued}
		r.currentID = ""

	case wire.ErrorChunk:
		return &ProtocolError{Message: c.Message}

	case wire.Unknown:
		log.Debug().Str("tag", c.Tag).Msg("ignoring unknown chunk")

	case nil:

	default:
		log.Debug().Str("type", string(chunk.Type())).Msg("ignoring unhandled chunk")
	}
	return nil
}

// inProgress returns the current assistant message, creating and appending
// one when no message is in progress.
func (r *Reducer) inProgress() *Message {
	if r.currentID != "" {
		for i := len(r.messages) - 1; i >= 0; i-- {
			if r.messages[i].ID == r.currentID {
				return r.messages[i]
			}
		}
	}
	m := NewMessage(RoleAssistant)
	r.messages = append(r.messages, m)
	r.currentID = m.ID
	return m
}

// findInvocation searches every message, newest first, for a tool call id.
// Results may target calls from earlier steps, not only the in-progress
// message.
func (r *Reducer) findInvocation(toolCallID string) *ToolInvocation {
	for i := len(r.messages) - 1; i >= 0; i-- {
		if inv := r.messages[i].Invocation(toolCallID); inv != nil {
			return inv
		}
	}
	return nil
}

// Messages returns a snapshot of the message list. Each call returns a new
// reference so consumers can diff successive updates.
func (r *Reducer) Messages() []*Message {
	return CloneMessages(r.messages)
}

// SideData returns a snapshot of the side data array.
func (r *Reducer) SideData() []json.RawMessage {
	if r.sideData == nil {
		return nil
	}
	out := make([]json.RawMessage, len(r.sideData))
	copy(out, r.sideData)
	return out
}

// Finish returns the terminal accounting of the response, or nil while the
// response is still streaming.
func (r *Reducer) Finish() *FinishInfo {
	return r.finish
}
