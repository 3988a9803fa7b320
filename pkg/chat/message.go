package chat

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a conversation. IDs are unique within a session
// and insertion order is chronological.
type Message struct {
	ID              string            `json:"id"`
	Role            Role              `json:"role"`
	Content         string            `json:"content"`
	ToolInvocations []ToolInvocation  `json:"toolInvocations,omitempty"`
	Annotations     []json.RawMessage `json:"annotations,omitempty"`
	Attachments     []Attachment      `json:"attachments,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// ToolInvocation is a tool call issued by the assistant, matched to its
// result once one arrives. Args may hold a partial value while the call's
// argument text is still streaming.
type ToolInvocation struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       any             `json:"args"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// Complete reports whether the invocation has its result.
func (inv ToolInvocation) Complete() bool {
	return inv.Result != nil
}

// Attachment is a file-like payload carried on a message. URL may be a data
// URL (inline content) or a remote URL. Immutable once attached.
type Attachment struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	URL         string `json:"url"`
}

// NewMessage creates an empty message with a fresh ULID and timestamp.
func NewMessage(role Role) *Message {
	return &Message{
		ID:        ulid.Make().String(),
		Role:      role,
		CreatedAt: time.Now(),
	}
}

// NewUserMessage creates a user message carrying content and optional
// attachments.
func NewUserMessage(content string, attachments ...Attachment) *Message {
	m := NewMessage(RoleUser)
	m.Content = content
	m.Attachments = append(m.Attachments, attachments...)
	return m
}

// Clone returns a copy that shares no mutable containers with the receiver.
// Element payloads (parsed args, raw JSON) are shared because reduction
// replaces them wholesale instead of mutating them in place.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	if m.ToolInvocations != nil {
		out.ToolInvocations = make([]ToolInvocation, len(m.ToolInvocations))
		copy(out.ToolInvocations, m.ToolInvocations)
	}
	if m.Annotations != nil {
		out.Annotations = make([]json.RawMessage, len(m.Annotations))
		copy(out.Annotations, m.Annotations)
	}
	if m.Attachments != nil {
		out.Attachments = make([]Attachment, len(m.Attachments))
		copy(out.Attachments, m.Attachments)
	}
	return &out
}

// CloneMessages deep-copies a message list for publishing as a snapshot.
func CloneMessages(messages []*Message) []*Message {
	if messages == nil {
		return nil
	}
	out := make([]*Message, len(messages))
	for i, m := range messages {
		out[i] = m.Clone()
	}
	return out
}

// Invocation returns a pointer to the invocation with the given call id, or
// nil when the message has none.
func (m *Message) Invocation(toolCallID string) *ToolInvocation {
	for i := range m.ToolInvocations {
		if m.ToolInvocations[i].ToolCallID == toolCallID {
			return &m.ToolInvocations[i]
		}
	}
	return nil
}

// Ready reports whether a message triggers automatic continuation: an
// assistant message with at least one tool invocation, all complete.
func (m *Message) Ready() bool {
	if m == nil || m.Role != RoleAssistant || len(m.ToolInvocations) == 0 {
		return false
	}
	for _, inv := range m.ToolInvocations {
		if !inv.Complete() {
			return false
		}
	}
	return true
}
