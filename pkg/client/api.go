package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/papercomputeco/rolechat/pkg/chat"
)

// Login exchanges credentials for a bearer token. The token is not stored.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, loginPath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and returns its first token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, registerPath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Logout revokes the current token on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Characters lists every available character.
func (c *Client) Characters(ctx context.Context) ([]Character, error) {
	var out struct {
		Characters []Character `json:"characters"`
	}
	if err := c.do(ctx, http.MethodGet, "/characters", nil, &out); err != nil {
		return nil, err
	}
	return out.Characters, nil
}

// SearchCharacters lists the characters matching query.
func (c *Client) SearchCharacters(ctx context.Context, query string) ([]Character, error) {
	var out struct {
		Characters []Character `json:"characters"`
	}
	path := "/characters/search?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Characters, nil
}

// Character returns one character.
func (c *Client) Character(ctx context.Context, id int64) (*Character, error) {
	var out struct {
		Character Character `json:"character"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/characters/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Character, nil
}

// Conversations lists the user's conversations, most recent first.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var out struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// CreateConversation starts a conversation with a character.
func (c *Client) CreateConversation(ctx context.Context, characterID int64) (*Conversation, error) {
	var out struct {
		Conversation Conversation `json:"conversation"`
	}
	req := CreateConversationRequest{CharacterID: characterID}
	if err := c.do(ctx, http.MethodPost, "/conversations", req, &out); err != nil {
		return nil, err
	}
	return &out.Conversation, nil
}

// Conversation returns a conversation with its message history.
func (c *Client) Conversation(ctx context.Context, id int64) (*ConversationDetail, error) {
	var out ConversationDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/conversations/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation deletes one conversation.
func (c *Client) DeleteConversation(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/conversations/%d", id), nil, nil)
}

// BatchDeleteConversations deletes several conversations and returns how
// many were removed.
func (c *Client) BatchDeleteConversations(ctx context.Context, ids []int64) (int, error) {
	var out struct {
		DeletedCount int `json:"deleted_count"`
	}
	if err := c.do(ctx, http.MethodDelete, "/conversations/batch", BatchDeleteRequest{IDs: ids}, &out); err != nil {
		return 0, err
	}
	return out.DeletedCount, nil
}

// SendMessage posts a message and waits for the full reply.
func (c *Client) SendMessage(ctx context.Context, conversationID int64, req chat.SendRequest) (*chat.Exchange, error) {
	var out chat.Exchange
	path := fmt.Sprintf("/conversations/%d/messages", conversationID)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenStream posts a message to the streaming endpoint and returns the open
// event-stream body. Non-2xx responses are returned as errors and the body
// is closed.
func (c *Client) OpenStream(ctx context.Context, conversationID int64, req chat.SendRequest) (io.ReadCloser, error) {
	path := fmt.Sprintf("/conversations/%d/messages/stream", conversationID)

	httpReq, err := c.newRequest(ctx, http.MethodPost, path, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	start := time.Now()
	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}

	c.logger.Debug("chat service stream opened",
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if err := c.checkResponse(resp, path); err != nil {
		return nil, err
	}

	return resp.Body, nil
}

var _ chat.Transport = (*Client)(nil)
