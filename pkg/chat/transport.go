package chat

import (
	"context"
	"io"
)

// SendRequest is the body of a send, streaming or not.
type SendRequest struct {
	Content  string  `json:"content"`
	AudioURL *string `json:"audio_url,omitempty"`

	// ClientID is the correlation token of the placeholder created for this
	// send. Servers may echo it back on the confirmed user record.
	ClientID string `json:"client_id,omitempty"`
}

// Exchange is the reply to a non-streaming send.
type Exchange struct {
	UserMessage *Message `json:"user_message,omitempty"`
	AIMessage   *Message `json:"ai_message,omitempty"`
}

// Transport carries sends to the chat service. Authentication is the
// transport's concern.
type Transport interface {
	// OpenStream posts req to the conversation's streaming endpoint and
	// returns the open event-stream body. A non-2xx status must be reported
	// as an error before any of the body is returned.
	OpenStream(ctx context.Context, conversationID int64, req SendRequest) (io.ReadCloser, error)

	// SendMessage posts req and waits for the complete exchange.
	SendMessage(ctx context.Context, conversationID int64, req SendRequest) (*Exchange, error)
}
