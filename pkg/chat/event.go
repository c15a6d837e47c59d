package chat

import (
	"encoding/json"
	"errors"
	"time"
)

var errNotObject = errors.New("payload is not a JSON object")

// StreamEvent is the decoded payload of one stream record.
//
// Mid-stream assistant updates may omit ID. Content carries the whole reply
// accumulated so far, not a delta.
type StreamEvent struct {
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	ID             *int64    `json:"id,omitempty"`
	ConversationID int64     `json:"conversation_id,omitempty"`
	AudioURL       *string   `json:"audio_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	// ClientID echoes the correlation token of the send, when the server
	// supports it.
	ClientID string `json:"client_id,omitempty"`

	// Fields holds every top-level field of the payload as received.
	Fields map[string]json.RawMessage `json:"-"`
}

// DecodeEvent parses a record payload. Failures are returned as
// *MalformedRecordError.
func DecodeEvent(payload string) (*StreamEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, &MalformedRecordError{Payload: payload, Err: err}
	}
	if fields == nil {
		return nil, &MalformedRecordError{Payload: payload, Err: errNotObject}
	}

	ev := &StreamEvent{}
	if err := json.Unmarshal([]byte(payload), ev); err != nil {
		return nil, &MalformedRecordError{Payload: payload, Err: err}
	}
	ev.Fields = fields

	return ev, nil
}

// Message converts the event into a history entry. The result is never
// provisional.
func (e StreamEvent) Message() Message {
	m := Message{
		ConversationID: e.ConversationID,
		Role:           e.Role,
		Content:        e.Content,
		AudioURL:       e.AudioURL,
		CreatedAt:      e.CreatedAt,
		CorrelationID:  e.ClientID,
	}
	if e.ID != nil {
		m.ID = *e.ID
	}

	return m
}

// EventFromMessage builds the event a server would emit for m.
func EventFromMessage(m Message) StreamEvent {
	id := m.ID
	return StreamEvent{
		Role:           m.Role,
		Content:        m.Content,
		ID:             &id,
		ConversationID: m.ConversationID,
		AudioURL:       m.AudioURL,
		CreatedAt:      m.CreatedAt,
		ClientID:       m.CorrelationID,
	}
}
