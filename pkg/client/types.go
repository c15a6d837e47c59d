package client

import (
	"time"

	"github.com/papercomputeco/rolechat/pkg/chat"
)

// User is an account on the chat service.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Character is a persona the assistant can play.
type Character struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	AvatarURL    string    `json:"avatar_url"`
	SystemPrompt string    `json:"system_prompt"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Conversation is a chat thread between a user and one character.
type Conversation struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	CharacterID int64      `json:"character_id"`
	Title       string     `json:"title"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Character   *Character `json:"character,omitempty"`
}

// ConversationDetail is a conversation together with its message history.
type ConversationDetail struct {
	Conversation Conversation   `json:"conversation"`
	Messages     []chat.Message `json:"messages"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and registration.
type AuthResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

// CreateConversationRequest is the body of POST /conversations.
type CreateConversationRequest struct {
	CharacterID int64 `json:"character_id"`
}

// BatchDeleteRequest is the body of DELETE /conversations/batch.
type BatchDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

// ErrorResponse is the error body used by the chat service.
type ErrorResponse struct {
	Error string `json:"error"`
}
