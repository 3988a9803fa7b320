package chat

import (
	"encoding/json"
	"fmt"
)

// RequestPayload is the client-to-server body for one round trip. It always
// carries the full accumulated message list; Extra fields supplied by the
// caller are merged into the top-level JSON object alongside "messages".
type RequestPayload struct {
	Messages []*Message
	Extra    map[string]any
}

// MarshalJSON flattens Extra into the top-level object. The "messages" key
// always reflects Messages, even if Extra tries to shadow it.
func (p *RequestPayload) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(p.Extra)+1)
	for k, v := range p.Extra {
		body[k] = v
	}
	messages := p.Messages
	if messages == nil {
		messages = []*Message{}
	}
	body["messages"] = messages
	return json.Marshal(body)
}

// UnmarshalJSON splits the top-level object back into Messages and Extra.
func (p *RequestPayload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("request payload: %w", err)
	}

	if rawMsgs, ok := raw["messages"]; ok {
		if err := json.Unmarshal(rawMsgs, &p.Messages); err != nil {
			return fmt.Errorf("request payload messages: %w", err)
		}
		delete(raw, "messages")
	}

	p.Extra = nil
	if len(raw) > 0 {
		p.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("request payload field %q: %w", k, err)
			}
			p.Extra[k] = val
		}
	}
	return nil
}
