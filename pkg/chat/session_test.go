package chat_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rolechat/pkg/chat"
)

// fakeTransport serves canned stream bodies and exchanges.
type fakeTransport struct {
	mu       sync.Mutex
	requests []chat.SendRequest

	open     func(ctx context.Context, req chat.SendRequest) (io.ReadCloser, error)
	exchange func(req chat.SendRequest) (*chat.Exchange, error)
}

func (f *fakeTransport) OpenStream(ctx context.Context, _ int64, req chat.SendRequest) (io.ReadCloser, error) {
	f.record(req)
	return f.open(ctx, req)
}

func (f *fakeTransport) SendMessage(_ context.Context, _ int64, req chat.SendRequest) (*chat.Exchange, error) {
	f.record(req)
	return f.exchange(req)
}

func (f *fakeTransport) record(req chat.SendRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeTransport) lastRequest() chat.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func body(s string) func(context.Context, chat.SendRequest) (io.ReadCloser, error) {
	return func(context.Context, chat.SendRequest) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(s)), nil
	}
}

// failAfter yields s and then fails the read with err.
type failAfter struct {
	r   io.Reader
	err error
}

func (f *failAfter) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, f.err
	}
	return n, err
}

type statusErr int

func (s statusErr) Error() string   { return "bad status" }
func (s statusErr) StatusCode() int { return int(s) }

// busyLog records every busy transition.
type busyLog struct {
	mu  sync.Mutex
	log []bool
}

func (b *busyLog) hook(busy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = append(b.log, busy)
}

func (b *busyLog) transitions() []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bool(nil), b.log...)
}

const helloStream = `data: {"id":42,"role":"user","content":"Hi"}` + "\n\n" +
	`data: {"role":"assistant","content":""}` + "\n\n" +
	`data: {"role":"assistant","content":"Hel"}` + "\n\n" +
	`data: {"role":"assistant","content":"Hello"}` + "\n\n" +
	"data: [DONE]\n\n"

var _ = Describe("Session", func() {
	var (
		transport *fakeTransport
		busy      *busyLog
		session   *chat.Session
		ctx       context.Context
	)

	BeforeEach(func() {
		transport = &fakeTransport{}
		busy = &busyLog{}
		session = chat.NewSession(transport, chat.WithBusyHook(busy.hook))
		ctx = context.Background()
	})

	Describe("SendStreaming", func() {
		It("reconciles the user record and builds the reply", func() {
			transport.open = body(helloStream)

			Expect(session.SendStreaming(ctx, 1, "Hi")).To(Succeed())

			msgs := session.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].ID).To(Equal(int64(42)))
			Expect(msgs[0].Role).To(Equal(chat.RoleUser))
			Expect(msgs[0].Provisional).To(BeFalse())
			Expect(msgs[1].Role).To(Equal(chat.RoleAssistant))
			Expect(msgs[1].Content).To(Equal("Hello"))

			Expect(session.Busy()).To(BeFalse())
			Expect(busy.transitions()).To(Equal([]bool{true, false}))
		})

		It("produces the same history for any chunk size", func() {
			for _, size := range []int{1, 2, 3, 7, 64} {
				transport.open = body(helloStream)
				s := chat.NewSession(transport, chat.WithChunkSize(size))
				Expect(s.SendStreaming(ctx, 1, "Hi")).To(Succeed())

				msgs := s.Messages()
				Expect(msgs).To(HaveLen(2), "chunk size %d", size)
				Expect(msgs[0].ID).To(Equal(int64(42)))
				Expect(msgs[1].Content).To(Equal("Hello"))
			}
		})

		It("sends the placeholder token as client_id", func() {
			transport.open = body("data: [DONE]\n")
			Expect(session.SendStreaming(ctx, 1, "Hi", chat.WithAudioURL("http://a/clip.wav"))).To(Succeed())

			req := transport.lastRequest()
			Expect(req.Content).To(Equal("Hi"))
			Expect(req.ClientID).NotTo(BeEmpty())
			Expect(req.AudioURL).To(HaveValue(Equal("http://a/clip.wav")))
		})

		It("appends a placeholder before the request is issued", func() {
			transport.open = func(context.Context, chat.SendRequest) (io.ReadCloser, error) {
				msgs := session.Messages()
				Expect(msgs).To(HaveLen(1))
				Expect(msgs[0].Provisional).To(BeTrue())
				Expect(chat.IsPlaceholderID(msgs[0].ID)).To(BeTrue())
				Expect(session.Busy()).To(BeTrue())
				return io.NopCloser(strings.NewReader("")), nil
			}

			Expect(session.SendStreaming(ctx, 1, "Hi")).To(Succeed())
		})

		It("lowers busy at the first assistant event", func() {
			var busyAtObserver []bool
			transport.open = body(helloStream)

			Expect(session.SendStreaming(ctx, 1, "Hi", chat.WithObserver(func(chat.StreamEvent) {
				busyAtObserver = append(busyAtObserver, session.Busy())
			}))).To(Succeed())

			Expect(busyAtObserver).To(Equal([]bool{false, false, false}))
			Expect(busy.transitions()).To(Equal([]bool{true, false}))
		})

		It("hands every assistant event to the observer in order", func() {
			var seen []string
			transport.open = body(helloStream)

			Expect(session.SendStreaming(ctx, 1, "Hi", chat.WithObserver(func(ev chat.StreamEvent) {
				seen = append(seen, ev.Content)
			}))).To(Succeed())

			Expect(seen).To(Equal([]string{"", "Hel", "Hello"}))
		})

		It("settles busy when the stream carries no assistant event", func() {
			transport.open = body(`data: {"id":42,"role":"user","content":"Hi"}` + "\n\ndata: [DONE]\n\n")

			Expect(session.SendStreaming(ctx, 1, "Hi")).To(Succeed())
			Expect(session.Messages()).To(HaveLen(1))
			Expect(busy.transitions()).To(Equal([]bool{true, false}))
		})

		It("frames an unterminated last record at end of body", func() {
			transport.open = body(`data: {"role":"assistant","content":"tail"}`)

			Expect(session.SendStreaming(ctx, 1, "Hi")).To(Succeed())

			msgs := session.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[1].Content).To(Equal("tail"))
		})

		It("ignores records after the sentinel", func() {
			transport.open = body(helloStream + `data: {"role":"assistant","content":"late"}` + "\n")

			Expect(session.SendStreaming(ctx, 1, "Hi")).To(Succeed())
			Expect(session.Messages()[1].Content).To(Equal("Hello"))
		})

		It("skips malformed records and unknown roles", func() {
			transport.open = body(
				`data: {"role":"assistant","content":"He` + "\n" +
					`data: {"role":"system","content":"note"}` + "\n" +
					`data: {"role":"assistant","content":"Hey"}` + "\n" +
					"data: [DONE]\n")

			Expect(session.SendStreaming(ctx, 1, "Hi")).To(Succeed())

			msgs := session.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[1].Content).To(Equal("Hey"))
		})

		It("tees raw bytes to the recorder", func() {
			var rec bytes.Buffer
			transport.open = body(helloStream)

			Expect(session.SendStreaming(ctx, 1, "Hi", chat.WithRecorder(&rec))).To(Succeed())
			Expect(rec.String()).To(Equal(helloStream))
		})

		Context("when opening the stream fails", func() {
			It("reports a transport error with the status", func() {
				transport.open = func(context.Context, chat.SendRequest) (io.ReadCloser, error) {
					return nil, statusErr(500)
				}

				err := session.SendStreaming(ctx, 1, "Hi")

				var te *chat.TransportError
				Expect(errors.As(err, &te)).To(BeTrue())
				Expect(te.Op).To(Equal("open stream"))
				Expect(te.Status).To(Equal(500))

				msgs := session.Messages()
				Expect(msgs).To(HaveLen(1))
				Expect(msgs[0].Provisional).To(BeTrue())
				Expect(busy.transitions()).To(Equal([]bool{true, false}))
			})

			It("replaces the leftover placeholder on retry", func() {
				transport.open = func(context.Context, chat.SendRequest) (io.ReadCloser, error) {
					return nil, errors.New("connection refused")
				}
				Expect(session.SendStreaming(ctx, 1, "Hi")).NotTo(Succeed())
				firstToken := transport.lastRequest().ClientID

				transport.open = body(helloStream)
				Expect(session.SendStreaming(ctx, 1, "Hi")).To(Succeed())

				Expect(transport.lastRequest().ClientID).NotTo(Equal(firstToken))
				msgs := session.Messages()
				Expect(msgs).To(HaveLen(2))
				Expect(msgs[0].ID).To(Equal(int64(42)))
			})

			It("moves the retried message after exchanges made in between", func() {
				transport.open = func(context.Context, chat.SendRequest) (io.ReadCloser, error) {
					return nil, errors.New("connection refused")
				}
				Expect(session.SendStreaming(ctx, 1, "Hi")).NotTo(Succeed())

				transport.open = body(`data: {"id":50,"role":"user","content":"Bye"}` + "\n\n" +
					`data: {"id":51,"role":"assistant","content":"Bye reply"}` + "\n\n" +
					"data: [DONE]\n\n")
				Expect(session.SendStreaming(ctx, 1, "Bye")).To(Succeed())

				transport.open = body(`data: {"id":52,"role":"user","content":"Hi"}` + "\n\n" +
					`data: {"id":53,"role":"assistant","content":"Hi reply"}` + "\n\n" +
					"data: [DONE]\n\n")
				Expect(session.SendStreaming(ctx, 1, "Hi")).To(Succeed())

				var contents []string
				for _, m := range session.Messages() {
					Expect(m.Provisional).To(BeFalse())
					contents = append(contents, m.Content)
				}
				Expect(contents).To(Equal([]string{"Bye", "Bye reply", "Hi", "Hi reply"}))
			})
		})

		Context("when the stream fails midway", func() {
			It("keeps the partial reply and settles busy once", func() {
				transport.open = func(context.Context, chat.SendRequest) (io.ReadCloser, error) {
					return io.NopCloser(&failAfter{
						r:   strings.NewReader(`data: {"role":"assistant","content":"Hel"}` + "\n"),
						err: io.ErrUnexpectedEOF,
					}), nil
				}

				err := session.SendStreaming(ctx, 1, "Hi")

				var te *chat.TransportError
				Expect(errors.As(err, &te)).To(BeTrue())
				Expect(te.Op).To(Equal("read stream"))
				Expect(errors.Is(err, io.ErrUnexpectedEOF)).To(BeTrue())

				msgs := session.Messages()
				Expect(msgs).To(HaveLen(2))
				Expect(msgs[1].Content).To(Equal("Hel"))
				Expect(busy.transitions()).To(Equal([]bool{true, false}))
			})
		})

		It("settles busy when the send is cancelled", func() {
			started := make(chan struct{})
			transport.open = func(ctx context.Context, _ chat.SendRequest) (io.ReadCloser, error) {
				pr, pw := io.Pipe()
				go func() {
					<-ctx.Done()
					pw.CloseWithError(ctx.Err())
				}()
				close(started)
				return pr, nil
			}

			cctx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- session.SendStreaming(cctx, 1, "Hi") }()

			Eventually(started).Should(BeClosed())
			Expect(session.Busy()).To(BeTrue())
			cancel()

			var err error
			Eventually(done).Should(Receive(&err))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(session.Busy()).To(BeFalse())
			Expect(busy.transitions()).To(Equal([]bool{true, false}))
		})

		It("rejects a second send while one is in flight", func() {
			pr, pw := io.Pipe()
			transport.open = func(context.Context, chat.SendRequest) (io.ReadCloser, error) {
				return pr, nil
			}

			done := make(chan error, 1)
			go func() { done <- session.SendStreaming(ctx, 1, "Hi") }()
			Eventually(session.Busy).Should(BeTrue())

			Expect(session.SendStreaming(ctx, 1, "again")).To(MatchError(chat.ErrSendInFlight))

			_, err := pw.Write([]byte(helloStream))
			Expect(err).NotTo(HaveOccurred())
			Expect(pw.Close()).To(Succeed())

			Eventually(done).Should(Receive(BeNil()))
			Expect(session.Messages()).To(HaveLen(2))
			Expect(busy.transitions()).To(Equal([]bool{true, false}))
		})
	})

	Describe("Send", func() {
		It("replaces the placeholder and appends the reply", func() {
			now := time.Now()
			transport.exchange = func(req chat.SendRequest) (*chat.Exchange, error) {
				return &chat.Exchange{
					UserMessage: &chat.Message{ID: 10, Role: chat.RoleUser, Content: req.Content, CreatedAt: now},
					AIMessage:   &chat.Message{ID: 11, Role: chat.RoleAssistant, Content: "Hello", CreatedAt: now},
				}, nil
			}

			var seen []string
			Expect(session.Send(ctx, 1, "Hi", chat.WithObserver(func(ev chat.StreamEvent) {
				seen = append(seen, ev.Content)
			}))).To(Succeed())

			msgs := session.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].ID).To(Equal(int64(10)))
			Expect(msgs[0].Provisional).To(BeFalse())
			Expect(msgs[1].ID).To(Equal(int64(11)))
			Expect(seen).To(Equal([]string{"Hello"}))
			Expect(busy.transitions()).To(Equal([]bool{true, false}))
		})

		It("reports failures as transport errors", func() {
			transport.exchange = func(chat.SendRequest) (*chat.Exchange, error) {
				return nil, statusErr(401)
			}

			err := session.Send(ctx, 1, "Hi")

			var te *chat.TransportError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Status).To(Equal(401))
			Expect(session.Messages()[0].Provisional).To(BeTrue())
			Expect(busy.transitions()).To(Equal([]bool{true, false}))
		})
	})

	Describe("placeholder ids", func() {
		It("stay strictly increasing under a frozen clock", func() {
			frozen := time.UnixMilli(5)
			s := chat.NewSession(transport, chat.WithClock(func() time.Time { return frozen }))
			transport.open = func(context.Context, chat.SendRequest) (io.ReadCloser, error) {
				return nil, errors.New("offline")
			}

			Expect(s.SendStreaming(ctx, 1, "a")).NotTo(Succeed())
			Expect(s.SendStreaming(ctx, 1, "b")).NotTo(Succeed())

			msgs := s.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].ID).To(Equal(chat.PlaceholderIDFloor))
			Expect(msgs[1].ID).To(Equal(chat.PlaceholderIDFloor + 1))
		})
	})

	Describe("Load and Clear", func() {
		It("replaces and empties the history", func() {
			session.Load([]chat.Message{{ID: 1, Role: chat.RoleUser, Content: "x"}})
			Expect(session.Messages()).To(HaveLen(1))

			session.Clear()
			Expect(session.Messages()).To(BeEmpty())
		})
	})
})
