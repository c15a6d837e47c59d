package chat

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/rolechat/pkg/logger"
	"github.com/papercomputeco/rolechat/pkg/sse"
)

// Session holds the message history of the conversation on screen and the
// busy flag shown while a reply is pending.
//
// The history is only written by the goroutine running a send. The mutex
// exists so other goroutines can take snapshots; observers and the busy hook
// are always called with it released.
type Session struct {
	transport Transport
	logger    *slog.Logger
	busyHook  func(bool)
	now       func() time.Time
	chunkSize int

	idMu   sync.Mutex
	lastID int64

	mu       sync.Mutex
	messages []Message
	busy     bool
	inFlight bool
}

// NewSession returns an empty Session sending through transport.
func NewSession(transport Transport, opts ...SessionOption) *Session {
	s := &Session{
		transport: transport,
		logger:    logger.Nop(),
		now:       time.Now,
		chunkSize: sse.DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Messages returns a copy of the history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.messages)
}

// Busy reports whether a reply is pending.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.busy
}

// Load replaces the history, e.g. after fetching a conversation.
func (s *Session) Load(messages []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = slices.Clone(messages)
}

// Clear empties the history.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
}

// SendStreaming sends content to the conversation and reconciles the
// streamed reply into the history as it arrives.
//
// A provisional user message is appended before the request is issued. The
// busy flag is raised on entry and is guaranteed to be lowered exactly once
// before SendStreaming returns, on every path; it is lowered early, as soon
// as the first assistant event arrives. The only error returned is
// *TransportError (or ErrSendInFlight when another send has not settled).
// Malformed records and unknown events are logged and skipped. On failure
// the placeholder stays provisional and any partial reply stays in place.
func (s *Session) SendStreaming(ctx context.Context, conversationID int64, content string, opts ...SendOption) error {
	o := newSendOptions(opts)

	if err := s.begin(); err != nil {
		return err
	}
	defer s.settle()

	placeholder := s.appendPlaceholder(conversationID, content, o.audioURL)
	log := s.logger.With(
		"conversation_id", conversationID,
		"client_id", placeholder.CorrelationID,
	)

	log.Debug("opening message stream", "content_length", len(content))

	body, err := s.transport.OpenStream(ctx, conversationID, SendRequest{
		Content:  content,
		AudioURL: o.audioURL,
		ClientID: placeholder.CorrelationID,
	})
	if err != nil {
		te := asTransportError("open stream", err)
		log.Error("opening message stream failed", "error", te)
		return te
	}
	defer body.Close()

	cursor := NewCursor(content, placeholder.CorrelationID)
	records, err := s.drive(ctx, body, cursor, o, log)
	if err != nil {
		log.Error("message stream failed", "error", err, "records", records)
		return err
	}

	log.Debug("message stream settled",
		"records", records,
		"assistant_index", cursor.PendingAssistant(),
	)

	return nil
}

// drive pulls chunks from body until the sentinel or the end of the body and
// applies every framed record. It returns the number of records framed.
func (s *Session) drive(ctx context.Context, body io.Reader, cursor *Cursor, o sendOptions, log *slog.Logger) (int, error) {
	reader := sse.NewChunkReader(body, o.recorder, sse.WithChunkSize(s.chunkSize))
	framer := sse.NewFramer()
	count := 0

	for !framer.Done() {
		chunk, more, err := reader.Next(ctx)
		if err != nil {
			return count, &TransportError{Op: "read stream", Err: err}
		}

		var records []sse.Record
		if more {
			records = framer.Feed(chunk)
		} else {
			records = framer.Flush()
		}

		for _, rec := range records {
			count++
			s.ingest(cursor, rec, o.observer, log)
		}
	}

	return count, nil
}

// ingest decodes one record and applies it to the history.
func (s *Session) ingest(cursor *Cursor, rec sse.Record, observer func(StreamEvent), log *slog.Logger) {
	ev, err := DecodeEvent(rec.Data)
	if err != nil {
		log.Warn("discarding malformed stream record", "error", err)
		return
	}

	s.mu.Lock()
	var eff Effect
	s.messages, eff, err = cursor.Apply(s.messages, *ev)
	lowered := eff.FirstAssistant && s.busy
	if lowered {
		s.busy = false
	}
	s.mu.Unlock()

	if err != nil {
		log.Debug("ignoring stream event", "error", err)
		return
	}

	if lowered {
		s.notifyBusy(false)
	}

	switch eff.Kind {
	case EffectUserUnmatched:
		log.Debug("no provisional message matched the confirmed user message")
	case EffectUserReconciled, EffectAssistantAppended:
		log.Debug("applied stream event", "effect", eff.Kind.String(), "index", eff.Index)
	}

	if ev.Role == RoleAssistant && observer != nil {
		observer(*ev)
	}
}

// Send sends content and waits for the complete exchange. The placeholder is
// replaced by the confirmed user message and the reply is appended. Busy
// semantics match SendStreaming.
func (s *Session) Send(ctx context.Context, conversationID int64, content string, opts ...SendOption) error {
	o := newSendOptions(opts)

	if err := s.begin(); err != nil {
		return err
	}
	defer s.settle()

	placeholder := s.appendPlaceholder(conversationID, content, o.audioURL)
	log := s.logger.With(
		"conversation_id", conversationID,
		"client_id", placeholder.CorrelationID,
	)

	exchange, err := s.transport.SendMessage(ctx, conversationID, SendRequest{
		Content:  content,
		AudioURL: o.audioURL,
		ClientID: placeholder.CorrelationID,
	})
	if err != nil {
		te := asTransportError("send message", err)
		log.Error("sending message failed", "error", te)
		return te
	}

	cursor := NewCursor(content, placeholder.CorrelationID)

	s.mu.Lock()
	if exchange.UserMessage != nil {
		s.messages, _, _ = cursor.Apply(s.messages, EventFromMessage(*exchange.UserMessage))
	}
	if exchange.AIMessage != nil {
		s.messages = append(s.messages, *exchange.AIMessage)
	}
	s.mu.Unlock()

	if exchange.AIMessage == nil {
		log.Warn("no assistant message in response")
		return nil
	}

	if o.observer != nil {
		o.observer(EventFromMessage(*exchange.AIMessage))
	}

	return nil
}

// begin raises the busy flag for a new send.
func (s *Session) begin() error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	s.inFlight = true
	s.busy = true
	s.mu.Unlock()

	s.notifyBusy(true)
	return nil
}

// settle ends a send. It runs deferred on every path out of a send, so the
// busy flag always converges to false.
func (s *Session) settle() {
	s.mu.Lock()
	s.inFlight = false
	lowered := s.busy
	s.busy = false
	s.mu.Unlock()

	if lowered {
		s.notifyBusy(false)
	}
}

func (s *Session) notifyBusy(busy bool) {
	if s.busyHook != nil {
		s.busyHook(busy)
	}
}

// appendPlaceholder appends the provisional user message for a send. A
// provisional entry with the same content left behind by a failed send is
// dropped first, so at most one such entry is outstanding and the retried
// message lands after every exchange that happened since.
func (s *Session) appendPlaceholder(conversationID int64, content string, audioURL *string) Message {
	id := s.nextPlaceholderID()
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = slices.DeleteFunc(s.messages, func(m Message) bool {
		return m.Provisional && m.Role == RoleUser && m.Content == content
	})

	msg := Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           RoleUser,
		Content:        content,
		AudioURL:       audioURL,
		CreatedAt:      s.now(),
		Provisional:    true,
		CorrelationID:  token,
	}
	s.messages = append(s.messages, msg)

	return msg
}

// nextPlaceholderID returns a strictly increasing millisecond timestamp,
// never below PlaceholderIDFloor.
func (s *Session) nextPlaceholderID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	id := max(s.now().UnixMilli(), PlaceholderIDFloor)
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	return id
}
