// Package chat holds the rolechat conversation state: the ordered message
// history, the busy flag shown while a reply is pending, and the engine that
// reconciles a streamed reply into that history one event at a time.
package chat

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PlaceholderIDFloor is the lowest id handed to a locally fabricated message.
// Placeholder ids are millisecond timestamps, far above any id the server
// issues for a persisted message.
const PlaceholderIDFloor int64 = 1_000_000_000_000

// Message is a single entry of a conversation's history.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id,omitempty"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	AudioURL       *string   `json:"audio_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	// Provisional marks a placeholder appended before the server confirmed
	// the message.
	Provisional bool `json:"-"`

	// CorrelationID is the client token sent along with the message that
	// created this placeholder.
	CorrelationID string `json:"-"`
}

// IsPlaceholderID reports whether id lies in the locally generated id space.
func IsPlaceholderID(id int64) bool {
	return id >= PlaceholderIDFloor
}
