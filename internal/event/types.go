package event

import (
	"encoding/json"

	"github.com/chatwire-ai/chatwire/pkg/chat"
)

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	SessionID string `json:"sessionID"`
}

// SessionUpdatedData is the data for session.updated events.
type SessionUpdatedData struct {
	SessionID string `json:"sessionID"`
}

// SessionDeletedData is the data for session.deleted events.
type SessionDeletedData struct {
	SessionID string `json:"sessionID"`
}

// SessionIdleData is the data for session.idle events, published when a
// session's request cycle fully drains.
type SessionIdleData struct {
	SessionID string `json:"sessionID"`
}

// SessionErrorData is the data for session.error events.
type SessionErrorData struct {
	SessionID string `json:"sessionID"`
	Message   string `json:"message"`
}

// MessagesUpdatedData is the data for messages.updated events. Messages is a
// fresh snapshot; subscribers may hold it without copying.
type MessagesUpdatedData struct {
	SessionID string          `json:"sessionID"`
	Messages  []*chat.Message `json:"messages"`
}

// DataUpdatedData is the data for data.updated events carrying the session's
// side data array after an append.
type DataUpdatedData struct {
	SessionID string            `json:"sessionID"`
	Values    []json.RawMessage `json:"values"`
}

// LoadingChangedData is the data for loading.changed events.
type LoadingChangedData struct {
	SessionID string `json:"sessionID"`
	Loading   bool   `json:"loading"`
}

// StepFinishedData is the data for step.finished events, one per completed
// round trip within a user turn.
type StepFinishedData struct {
	SessionID string           `json:"sessionID"`
	Finish    *chat.FinishInfo `json:"finish,omitempty"`
	Step      int              `json:"step"`
}
