package api

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rolechat/pkg/chat"
	"github.com/papercomputeco/rolechat/pkg/client"
	"github.com/papercomputeco/rolechat/pkg/logger"
)

type memoryTokens struct {
	mu    sync.Mutex
	token string
}

func (m *memoryTokens) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memoryTokens) ClearToken() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

func (m *memoryTokens) set(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

type fixedResponder []string

func (r fixedResponder) Reply(client.Character, []chat.Message) []string {
	return r
}

// startServer runs a dev backend on a loopback port and returns its base URL.
func startServer(config Config, store *Store) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	server := NewServer(config, store, logger.Nop())
	go func() {
		defer GinkgoRecover()
		_ = server.RunWithListener(ln)
	}()
	DeferCleanup(server.Shutdown)

	return "http://" + ln.Addr().String() + BasePath
}

var _ = Describe("Server", func() {
	var (
		ctx     context.Context
		store   *Store
		config  Config
		tokens  *memoryTokens
		c       *client.Client
		baseURL string
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = NewStore(DefaultCharacters()...)
		config = Config{Responder: fixedResponder{"Hel", "lo", " there"}}
		tokens = &memoryTokens{}
	})

	JustBeforeEach(func() {
		baseURL = startServer(config, store)

		var err error
		c, err = client.New(baseURL, client.WithTokenStore(tokens))
		Expect(err).NotTo(HaveOccurred())
	})

	register := func() *client.AuthResponse {
		resp, err := c.Register(ctx, client.RegisterRequest{
			Username: "tester",
			Email:    "tester@example.com",
			Password: "secret123",
		})
		Expect(err).NotTo(HaveOccurred())
		tokens.set(resp.Token)
		return resp
	}

	Describe("health", func() {
		It("responds ok", func() {
			resp, err := http.Get(strings.TrimSuffix(baseURL, BasePath) + "/health")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("auth", func() {
		It("registers and returns a usable token", func() {
			resp := register()
			Expect(resp.Token).NotTo(BeEmpty())
			Expect(resp.User.Username).To(Equal("tester"))

			me, err := c.Me(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(me.Email).To(Equal("tester@example.com"))
		})

		It("validates registration input", func() {
			_, err := c.Register(ctx, client.RegisterRequest{Username: "ab", Email: "a@b.c", Password: "secret123"})
			var se *client.StatusError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects a duplicate email", func() {
			register()
			_, err := c.Register(ctx, client.RegisterRequest{Username: "other", Email: "TESTER@example.com", Password: "secret123"})
			var se *client.StatusError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Code).To(Equal(http.StatusConflict))
		})

		It("logs in with the registered password", func() {
			register()
			resp, err := c.Login(ctx, client.LoginRequest{Email: "tester@example.com", Password: "secret123"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Token).NotTo(BeEmpty())
		})

		It("rejects a wrong password with 401", func() {
			register()
			_, err := c.Login(ctx, client.LoginRequest{Email: "tester@example.com", Password: "nope"})
			var se *client.StatusError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Code).To(Equal(http.StatusUnauthorized))
			Expect(se.Message).To(Equal("Invalid credentials"))
		})

		It("revokes the token on logout and clears it on the next call", func() {
			register()
			Expect(c.Logout(ctx)).To(Succeed())

			_, err := c.Me(ctx)
			Expect(errors.Is(err, client.ErrUnauthorized)).To(BeTrue())
			Expect(tokens.Token()).To(BeEmpty())
		})
	})

	Describe("characters", func() {
		It("lists the seeded cast", func() {
			chars, err := c.Characters(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(chars).To(HaveLen(3))
		})

		It("searches case-insensitively", func() {
			chars, err := c.SearchCharacters(ctx, "STARSHIP")
			Expect(err).NotTo(HaveOccurred())
			Expect(chars).To(HaveLen(1))
			Expect(chars[0].Name).To(Equal("Captain Vale"))
		})

		It("requires a search query", func() {
			_, err := c.SearchCharacters(ctx, " ")
			var se *client.StatusError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for an unknown character", func() {
			_, err := c.Character(ctx, 999)
			var se *client.StatusError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("conversations", func() {
		var characterID int64

		JustBeforeEach(func() {
			register()
			chars, err := c.Characters(ctx)
			Expect(err).NotTo(HaveOccurred())
			characterID = chars[0].ID
		})

		It("requires authentication", func() {
			tokens.set("")
			_, err := c.Conversations(ctx)
			Expect(errors.Is(err, client.ErrUnauthorized)).To(BeTrue())
		})

		It("creates and lists a conversation", func() {
			conv, err := c.CreateConversation(ctx, characterID)
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Title).To(Equal("Chat with Aria"))

			list, err := c.Conversations(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].ID).To(Equal(conv.ID))
		})

		It("rejects an unknown character", func() {
			_, err := c.CreateConversation(ctx, 999)
			var se *client.StatusError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Code).To(Equal(http.StatusBadRequest))
		})

		It("deletes in batch and reports the count", func() {
			a, err := c.CreateConversation(ctx, characterID)
			Expect(err).NotTo(HaveOccurred())
			b, err := c.CreateConversation(ctx, characterID)
			Expect(err).NotTo(HaveOccurred())

			n, err := c.BatchDeleteConversations(ctx, []int64{a.ID, b.ID, 12345})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			list, err := c.Conversations(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})

		It("deletes a single conversation", func() {
			conv, err := c.CreateConversation(ctx, characterID)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.DeleteConversation(ctx, conv.ID)).To(Succeed())

			_, err = c.Conversation(ctx, conv.ID)
			var se *client.StatusError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("messages", func() {
		var conv *client.Conversation

		JustBeforeEach(func() {
			register()
			chars, err := c.Characters(ctx)
			Expect(err).NotTo(HaveOccurred())
			conv, err = c.CreateConversation(ctx, chars[0].ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("streams a reply that a session reconciles", func() {
			var busy []bool
			var observed []string
			var raw bytes.Buffer

			session := chat.NewSession(c, chat.WithBusyHook(func(b bool) { busy = append(busy, b) }))
			err := session.SendStreaming(ctx, conv.ID, "Hi",
				chat.WithObserver(func(ev chat.StreamEvent) { observed = append(observed, ev.Content) }),
				chat.WithRecorder(&raw),
			)
			Expect(err).NotTo(HaveOccurred())

			msgs := session.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Role).To(Equal(chat.RoleUser))
			Expect(msgs[0].Provisional).To(BeFalse())
			Expect(chat.IsPlaceholderID(msgs[0].ID)).To(BeFalse())
			Expect(msgs[1].Role).To(Equal(chat.RoleAssistant))
			Expect(msgs[1].Content).To(Equal("Hello there"))
			Expect(msgs[1].ID).NotTo(BeZero())

			Expect(busy).To(Equal([]bool{true, false}))
			Expect(observed).To(Equal([]string{"", "Hel", "Hello", "Hello there", "Hello there"}))
			Expect(raw.String()).To(HaveSuffix("data: [DONE]\n\n"))
			Expect(raw.String()).To(ContainSubstring(`"client_id":"` + msgs[0].CorrelationID + `"`))

			detail, err := c.Conversation(ctx, conv.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(detail.Messages).To(HaveLen(2))
			Expect(detail.Messages[1].ID).To(Equal(msgs[1].ID))
		})

		It("answers a non-streaming send", func() {
			session := chat.NewSession(c)
			Expect(session.Send(ctx, conv.ID, "Hi")).To(Succeed())

			msgs := session.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Provisional).To(BeFalse())
			Expect(msgs[1].Content).To(Equal("Hello there"))
		})

		It("rejects empty content", func() {
			_, err := c.SendMessage(ctx, conv.ID, chat.SendRequest{Content: "  "})
			var se *client.StatusError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Code).To(Equal(http.StatusBadRequest))
		})

		It("keeps the placeholder when the stream cannot be opened", func() {
			session := chat.NewSession(c)
			err := session.SendStreaming(ctx, 9999, "Hi")

			var te *chat.TransportError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Status).To(Equal(http.StatusNotFound))
			Expect(session.Busy()).To(BeFalse())
			Expect(session.Messages()).To(HaveLen(1))
			Expect(session.Messages()[0].Provisional).To(BeTrue())
		})

		Context("with a rate limit", func() {
			BeforeEach(func() {
				config.MessageRateLimit = 1
			})

			It("returns 429 once the limit is reached", func() {
				_, err := c.SendMessage(ctx, conv.ID, chat.SendRequest{Content: "one"})
				Expect(err).NotTo(HaveOccurred())

				_, err = c.SendMessage(ctx, conv.ID, chat.SendRequest{Content: "two"})
				var se *client.StatusError
				Expect(errors.As(err, &se)).To(BeTrue())
				Expect(se.Code).To(Equal(http.StatusTooManyRequests))
			})
		})
	})
})

var _ = Describe("EchoResponder", func() {
	It("quotes the latest user message in fragments", func() {
		fragments := EchoResponder{}.Reply(client.Character{Name: "Aria"}, []chat.Message{
			{Role: chat.RoleUser, Content: "first"},
			{Role: chat.RoleAssistant, Content: "reply"},
			{Role: chat.RoleUser, Content: "second"},
		})
		Expect(len(fragments)).To(BeNumerically(">", 1))
		Expect(strings.Join(fragments, "")).To(Equal(`Aria considers your words: "second"`))
	})
})

var _ = Describe("Store", func() {
	It("scopes conversations to their owner", func() {
		store := NewStore(DefaultCharacters()...)
		alice, _, err := store.Register("alice", "alice@example.com", "secret123")
		Expect(err).NotTo(HaveOccurred())
		bob, _, err := store.Register("bob", "bob@example.com", "secret123")
		Expect(err).NotTo(HaveOccurred())

		conv, err := store.CreateConversation(alice.ID, store.Characters()[0].ID)
		Expect(err).NotTo(HaveOccurred())

		_, err = store.Conversation(conv.ID, bob.ID)
		Expect(err).To(MatchError(errNotFound))
		Expect(store.DeleteConversations(bob.ID, conv.ID)).To(Equal(0))
		Expect(store.Conversations(alice.ID)).To(HaveLen(1))
	})
})
