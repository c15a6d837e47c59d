package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rolechat/pkg/chat"
	"github.com/papercomputeco/rolechat/pkg/client"
)

// memoryTokens is an in-memory TokenStore.
type memoryTokens struct {
	mu      sync.Mutex
	token   string
	cleared int
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
	m.cleared++
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var _ = Describe("Client", func() {
	var (
		mux    *http.ServeMux
		server *httptest.Server
		tokens *memoryTokens
		c      *client.Client
		ctx    context.Context
	)

	BeforeEach(func() {
		mux = http.NewServeMux()
		server = httptest.NewServer(mux)
		DeferCleanup(server.Close)

		tokens = &memoryTokens{token: "tok-1"}

		var err error
		c, err = client.New(server.URL+"/api/v1/", client.WithTokenStore(tokens))
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	Describe("New", func() {
		It("rejects non-http base URLs", func() {
			_, err := client.New("ftp://example.com")
			Expect(err).To(HaveOccurred())
		})

		It("trims the trailing slash", func() {
			Expect(c.BaseURL()).To(Equal(server.URL + "/api/v1"))
		})
	})

	Describe("request interceptor", func() {
		It("sends the stored bearer token", func() {
			var got string
			mux.HandleFunc("GET /api/v1/characters", func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
				writeJSON(w, http.StatusOK, map[string]any{"characters": []client.Character{{ID: 1, Name: "Aria"}}})
			})

			chars, err := c.Characters(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(chars).To(HaveLen(1))
			Expect(chars[0].Name).To(Equal("Aria"))
			Expect(got).To(Equal("Bearer tok-1"))
		})

		It("omits the header when logged out", func() {
			tokens.token = ""
			var got []string
			mux.HandleFunc("GET /api/v1/characters", func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Values("Authorization")
				writeJSON(w, http.StatusOK, map[string]any{"characters": []client.Character{}})
			})

			_, err := c.Characters(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})
	})

	Describe("response interceptor", func() {
		It("clears the token and returns ErrUnauthorized on a 401", func() {
			mux.HandleFunc("GET /api/v1/conversations", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnauthorized, client.ErrorResponse{Error: "Invalid token"})
			})

			_, err := c.Conversations(ctx)
			Expect(errors.Is(err, client.ErrUnauthorized)).To(BeTrue())

			var se *client.StatusError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Code).To(Equal(http.StatusUnauthorized))
			Expect(se.Message).To(Equal("Invalid token"))
			Expect(tokens.cleared).To(Equal(1))
		})

		It("keeps the token on a failed login", func() {
			mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnauthorized, client.ErrorResponse{Error: "Invalid credentials"})
			})

			_, err := c.Login(ctx, client.LoginRequest{Email: "a@b.c", Password: "x"})
			Expect(err).To(MatchError(ContainSubstring("Invalid credentials")))
			Expect(errors.Is(err, client.ErrUnauthorized)).To(BeFalse())
			Expect(tokens.cleared).To(BeZero())
		})

		It("keeps the token on a failed registration", func() {
			mux.HandleFunc("POST /api/v1/auth/register", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnauthorized, client.ErrorResponse{Error: "nope"})
			})

			_, err := c.Register(ctx, client.RegisterRequest{Username: "ada"})
			Expect(err).To(HaveOccurred())
			Expect(tokens.cleared).To(BeZero())
		})

		It("uses the raw body when it is not an error object", func() {
			mux.HandleFunc("GET /api/v1/characters/7", func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "gateway unhappy", http.StatusBadGateway)
			})

			_, err := c.Character(ctx, 7)

			var se *client.StatusError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.StatusCode()).To(Equal(http.StatusBadGateway))
			Expect(se.Message).To(Equal("gateway unhappy"))
		})
	})

	Describe("REST calls", func() {
		It("escapes search queries", func() {
			var q string
			mux.HandleFunc("GET /api/v1/characters/search", func(w http.ResponseWriter, r *http.Request) {
				q = r.URL.Query().Get("q")
				writeJSON(w, http.StatusOK, map[string]any{"characters": []client.Character{}})
			})

			_, err := c.SearchCharacters(ctx, "wise & old")
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(Equal("wise & old"))
		})

		It("decodes a conversation with its messages", func() {
			mux.HandleFunc("GET /api/v1/conversations/3", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{
					"conversation": client.Conversation{ID: 3, CharacterID: 1},
					"messages": []chat.Message{
						{ID: 1, Role: chat.RoleUser, Content: "hi"},
						{ID: 2, Role: chat.RoleAssistant, Content: "hello"},
					},
				})
			})

			detail, err := c.Conversation(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(detail.Conversation.ID).To(Equal(int64(3)))
			Expect(detail.Messages).To(HaveLen(2))
			Expect(detail.Messages[1].Content).To(Equal("hello"))
		})

		It("sends batch deletes as a body", func() {
			var req client.BatchDeleteRequest
			mux.HandleFunc("DELETE /api/v1/conversations/batch", func(w http.ResponseWriter, r *http.Request) {
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				writeJSON(w, http.StatusOK, map[string]any{"deleted_count": len(req.IDs)})
			})

			n, err := c.BatchDeleteConversations(ctx, []int64{4, 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(req.IDs).To(Equal([]int64{4, 5}))
		})

		It("applies the request timeout", func() {
			slow, err := client.New(server.URL+"/api/v1", client.WithTimeout(20*time.Millisecond))
			Expect(err).NotTo(HaveOccurred())

			release := make(chan struct{})
			DeferCleanup(func() { close(release) })
			mux.HandleFunc("GET /api/v1/auth/me", func(w http.ResponseWriter, _ *http.Request) {
				<-release
			})

			_, err = slow.Me(ctx)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("OpenStream", func() {
		It("returns the open event stream body", func() {
			var sent chat.SendRequest
			mux.HandleFunc("POST /api/v1/conversations/9/messages/stream", func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Header.Get("Accept")).To(Equal("text/event-stream"))
				Expect(json.NewDecoder(r.Body).Decode(&sent)).To(Succeed())
				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = io.WriteString(w, "data: [DONE]\n\n")
			})

			body, err := c.OpenStream(ctx, 9, chat.SendRequest{Content: "hi", ClientID: "tok"})
			Expect(err).NotTo(HaveOccurred())
			defer body.Close()

			data, err := io.ReadAll(body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("data: [DONE]\n\n"))
			Expect(sent.ClientID).To(Equal("tok"))
		})

		It("reports a non-2xx status before returning a body", func() {
			mux.HandleFunc("POST /api/v1/conversations/9/messages/stream", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusNotFound, client.ErrorResponse{Error: "Conversation not found"})
			})

			body, err := c.OpenStream(ctx, 9, chat.SendRequest{Content: "hi"})
			Expect(body).To(BeNil())

			var se *client.StatusError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Code).To(Equal(http.StatusNotFound))
		})

		It("feeds a session end to end", func() {
			mux.HandleFunc("POST /api/v1/conversations/9/messages/stream", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				flusher := w.(http.Flusher)
				for _, rec := range []string{
					`{"id":42,"role":"user","content":"hi"}`,
					`{"role":"assistant","content":"H"}`,
					`{"role":"assistant","content":"Hello"}`,
					`[DONE]`,
				} {
					_, _ = io.WriteString(w, "data: "+rec+"\n\n")
					flusher.Flush()
				}
			})

			session := chat.NewSession(c)
			Expect(session.SendStreaming(ctx, 9, "hi")).To(Succeed())

			msgs := session.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].ID).To(Equal(int64(42)))
			Expect(msgs[0].Provisional).To(BeFalse())
			Expect(msgs[1].Content).To(Equal("Hello"))
		})

		It("surfaces an expired session as a transport error", func() {
			mux.HandleFunc("POST /api/v1/conversations/9/messages/stream", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnauthorized, client.ErrorResponse{Error: "Invalid token"})
			})

			session := chat.NewSession(c)
			err := session.SendStreaming(ctx, 9, "hi")

			var te *chat.TransportError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Status).To(Equal(http.StatusUnauthorized))
			Expect(errors.Is(err, client.ErrUnauthorized)).To(BeTrue())
			Expect(session.Busy()).To(BeFalse())
		})
	})
})
