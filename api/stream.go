package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/rolechat/pkg/chat"
	"github.com/papercomputeco/rolechat/pkg/sse"
)

// handleSendMessageStream persists the user's message and streams the reply
// as "data: " records: the confirmed user message, then the assistant reply
// accumulated so far after each fragment, then the persisted reply, then the
// sentinel.
func (s *Server) handleSendMessageStream(c *fiber.Ctx) error {
	conv, req, ok, err := s.messageParams(c)
	if !ok {
		return err
	}

	userMsg := s.saveUserMessage(conv, req)
	fragments := s.reply(conv)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	log := s.logger.With(
		"conversation_id", conv.ID,
		"client_id", req.ClientID,
	)

	// pw.Write blocks until fasthttp drains the pipe, so each record is
	// flushed to the client as it is written.
	pr, pw := io.Pipe()
	go s.writeReply(pw, conv.ID, userMsg, fragments, log)

	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

func (s *Server) writeReply(pw *io.PipeWriter, conversationID int64, userMsg chat.Message, fragments []string, log *slog.Logger) {
	err := s.streamReply(pw, conversationID, userMsg, fragments)
	if err != nil {
		log.Warn("reply stream aborted", "error", err)
	} else {
		log.Debug("reply stream complete", "fragments", len(fragments))
	}
	pw.CloseWithError(err)
}

func (s *Server) streamReply(w io.Writer, conversationID int64, userMsg chat.Message, fragments []string) error {
	if err := writeRecord(w, chat.EventFromMessage(userMsg)); err != nil {
		return err
	}

	started := time.Now()
	partial := chat.StreamEvent{
		Role:           chat.RoleAssistant,
		ConversationID: conversationID,
		CreatedAt:      started,
	}
	if err := writeRecord(w, partial); err != nil {
		return err
	}

	var reply strings.Builder
	for _, fragment := range fragments {
		if s.config.FragmentDelay > 0 {
			time.Sleep(s.config.FragmentDelay)
		}

		reply.WriteString(fragment)
		partial.Content = reply.String()
		if err := writeRecord(w, partial); err != nil {
			return err
		}
	}

	final := s.store.AddMessage(chat.Message{
		ConversationID: conversationID,
		Role:           chat.RoleAssistant,
		Content:        reply.String(),
	})
	if err := writeRecord(w, chat.EventFromMessage(final)); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%s%s\n\n", sse.DataPrefix, sse.DoneSentinel)
	return err
}

func writeRecord(w io.Writer, ev chat.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s%s\n\n", sse.DataPrefix, data)
	return err
}

