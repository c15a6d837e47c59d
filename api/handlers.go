package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/rolechat/pkg/chat"
	"github.com/papercomputeco/rolechat/pkg/client"
)

type messageRequest struct {
	Content  string  `json:"content"`
	AudioURL *string `json:"audio_url,omitempty"`
	ClientID string  `json:"client_id,omitempty"`
}

type batchDeleteResponse struct {
	DeletedCount int    `json:"deleted_count"`
	Message      string `json:"message"`
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(client.ErrorResponse{Error: msg})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(client.ErrorResponse{Error: msg})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req client.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	switch {
	case len(strings.TrimSpace(req.Username)) < 3:
		return badRequest(c, "Username must be at least 3 characters")
	case !strings.Contains(req.Email, "@"):
		return badRequest(c, "A valid email is required")
	case len(req.Password) < 6:
		return badRequest(c, "Password must be at least 6 characters")
	}

	user, token, err := s.store.Register(strings.TrimSpace(req.Username), req.Email, req.Password)
	if errors.Is(err, errEmailTaken) {
		return c.Status(fiber.StatusConflict).JSON(client.ErrorResponse{Error: "Email already registered"})
	}
	if err != nil {
		s.logger.Error("registration failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to create user")
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return c.Status(fiber.StatusCreated).JSON(client.AuthResponse{
		Message: "User created successfully",
		Token:   token,
		User:    user,
	})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req client.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, token, err := s.store.Login(req.Email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(client.ErrorResponse{Error: "Invalid credentials"})
	}

	return c.JSON(client.AuthResponse{
		Message: "Login successful",
		Token:   token,
		User:    user,
	})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	if token, ok := bearerToken(c); ok {
		s.store.Revoke(token)
	}
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

func (s *Server) handleMe(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"user": currentUser(c)})
}

func (s *Server) handleListCharacters(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"characters": s.store.Characters()})
}

func (s *Server) handleSearchCharacters(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return badRequest(c, "Search query is required")
	}
	return c.JSON(fiber.Map{"characters": s.store.SearchCharacters(q)})
}

func (s *Server) handleGetCharacter(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "Invalid character ID")
	}

	ch, err := s.store.Character(int64(id))
	if err != nil {
		return notFound(c, "Character not found")
	}
	return c.JSON(fiber.Map{"character": ch})
}

func (s *Server) handleListConversations(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"conversations": s.store.Conversations(currentUser(c).ID)})
}

func (s *Server) handleCreateConversation(c *fiber.Ctx) error {
	var req client.CreateConversationRequest
	if err := c.BodyParser(&req); err != nil || req.CharacterID == 0 {
		return badRequest(c, "character_id is required")
	}

	conv, err := s.store.CreateConversation(currentUser(c).ID, req.CharacterID)
	if err != nil {
		return badRequest(c, "Character not found")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"conversation": conv})
}

func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	conv, ok, err := s.conversationParam(c)
	if !ok {
		return err
	}

	return c.JSON(client.ConversationDetail{
		Conversation: conv,
		Messages:     s.store.Messages(conv.ID),
	})
}

func (s *Server) handleDeleteConversation(c *fiber.Ctx) error {
	conv, ok, err := s.conversationParam(c)
	if !ok {
		return err
	}

	s.store.DeleteConversations(currentUser(c).ID, conv.ID)
	return c.JSON(fiber.Map{"message": "Conversation deleted successfully"})
}

func (s *Server) handleBatchDelete(c *fiber.Ctx) error {
	var req client.BatchDeleteRequest
	if err := c.BodyParser(&req); err != nil || len(req.IDs) == 0 {
		return badRequest(c, "ids must be a non-empty list")
	}

	n := s.store.DeleteConversations(currentUser(c).ID, req.IDs...)
	return c.JSON(batchDeleteResponse{
		DeletedCount: n,
		Message:      "Conversations deleted successfully",
	})
}

func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	conv, req, ok, err := s.messageParams(c)
	if !ok {
		return err
	}

	userMsg := s.saveUserMessage(conv, req)
	aiMsg := s.store.AddMessage(chat.Message{
		ConversationID: conv.ID,
		Role:           chat.RoleAssistant,
		Content:        strings.Join(s.reply(conv), ""),
	})

	return c.JSON(chat.Exchange{UserMessage: &userMsg, AIMessage: &aiMsg})
}

// conversationParam resolves :id to a conversation owned by the caller. When
// ok is false the response has been written and err must be returned as is.
func (s *Server) conversationParam(c *fiber.Ctx) (client.Conversation, bool, error) {
	id, err := c.ParamsInt("id")
	if err != nil {
		return client.Conversation{}, false, badRequest(c, "Invalid conversation ID")
	}

	conv, err := s.store.Conversation(int64(id), currentUser(c).ID)
	if err != nil {
		return client.Conversation{}, false, notFound(c, "Conversation not found")
	}
	return conv, true, nil
}

func (s *Server) messageParams(c *fiber.Ctx) (client.Conversation, messageRequest, bool, error) {
	conv, ok, err := s.conversationParam(c)
	if !ok {
		return conv, messageRequest{}, false, err
	}

	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return conv, req, false, badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return conv, req, false, badRequest(c, "Message content is required")
	}

	return conv, req, true, nil
}

// saveUserMessage persists the user's message. The returned copy carries the
// client token so it is echoed back to the sender.
func (s *Server) saveUserMessage(conv client.Conversation, req messageRequest) chat.Message {
	msg := s.store.AddMessage(chat.Message{
		ConversationID: conv.ID,
		Role:           chat.RoleUser,
		Content:        req.Content,
		AudioURL:       req.AudioURL,
	})
	msg.CorrelationID = req.ClientID
	return msg
}

func (s *Server) reply(conv client.Conversation) []string {
	character := client.Character{}
	if conv.Character != nil {
		character = *conv.Character
	}
	return s.config.Responder.Reply(character, s.store.Messages(conv.ID))
}
