package api

import (
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/papercomputeco/rolechat/pkg/client"
)

// BasePath is the prefix every route is mounted under.
const BasePath = "/api/v1"

const userLocal = "user"

// Server is the dev backend HTTP server.
type Server struct {
	config Config
	store  *Store
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new dev backend server.
// The store is injected so tests can seed and inspect it.
func NewServer(config Config, store *Store, logger *slog.Logger) *Server {
	if config.Responder == nil {
		config.Responder = EchoResponder{}
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())

	s := &Server{
		config: config,
		store:  store,
		logger: logger,
		app:    app,
	}

	app.Get("/health", s.handleHealth)

	v1 := app.Group(BasePath)

	auth := v1.Group("/auth")
	auth.Post("/register", s.handleRegister)
	auth.Post("/login", s.handleLogin)
	auth.Post("/logout", s.requireAuth, s.handleLogout)
	auth.Get("/me", s.requireAuth, s.handleMe)

	characters := v1.Group("/characters")
	characters.Get("/", s.handleListCharacters)
	characters.Get("/search", s.handleSearchCharacters)
	characters.Get("/:id", s.handleGetCharacter)

	conversations := v1.Group("/conversations", s.requireAuth)
	conversations.Get("/", s.handleListConversations)
	conversations.Post("/", s.handleCreateConversation)
	conversations.Delete("/batch", s.handleBatchDelete)
	conversations.Get("/:id", s.handleGetConversation)
	conversations.Delete("/:id", s.handleDeleteConversation)
	conversations.Post("/:id/messages", s.messageLimiter(), s.handleSendMessage)
	conversations.Post("/:id/messages/stream", s.messageLimiter(), s.handleSendMessageStream)

	return s
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting dev backend",
		"listen", s.config.ListenAddr,
		"base_path", BasePath,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting dev backend",
		"listen", listener.Addr().String(),
		"base_path", BasePath,
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// requireAuth resolves the bearer token into the request's user.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	token, ok := bearerToken(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(client.ErrorResponse{Error: "Authorization header required"})
	}

	user, ok := s.store.Authenticate(token)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(client.ErrorResponse{Error: "Invalid or expired token"})
	}

	c.Locals(userLocal, user)
	return c.Next()
}

// messageLimiter bounds message sends per user. It is a pass-through when
// no limit is configured.
func (s *Server) messageLimiter() fiber.Handler {
	if s.config.MessageRateLimit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return limiter.New(limiter.Config{
		Max:        s.config.MessageRateLimit,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return strconv.FormatInt(currentUser(c).ID, 10)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(client.ErrorResponse{Error: "Too many messages, slow down"})
		},
	})
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func currentUser(c *fiber.Ctx) client.User {
	u, _ := c.Locals(userLocal).(client.User)
	return u
}

// errorHandler renders unhandled errors in the service's error shape.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	return c.Status(code).JSON(client.ErrorResponse{Error: err.Error()})
}
