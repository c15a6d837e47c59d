package chat

import (
	"io"
	"log/slog"
	"time"
)

// SessionOption configures a Session created with NewSession.
type SessionOption func(*Session)

// WithLogger sets the diagnostics sink. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBusyHook registers fn to be called on every change of the busy flag.
// It is called without the session lock held.
func WithBusyHook(fn func(busy bool)) SessionOption {
	return func(s *Session) {
		s.busyHook = fn
	}
}

// WithClock overrides the time source used for placeholder ids and
// timestamps.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithChunkSize sets the read size used when pulling stream bodies.
func WithChunkSize(n int) SessionOption {
	return func(s *Session) {
		s.chunkSize = n
	}
}

// SendOption configures a single send.
type SendOption func(*sendOptions)

type sendOptions struct {
	audioURL *string
	observer func(StreamEvent)
	recorder io.Writer
}

// WithAudioURL attaches a recorded audio clip to the sent message.
func WithAudioURL(url string) SendOption {
	return func(o *sendOptions) {
		if url != "" {
			o.audioURL = &url
		}
	}
}

// WithObserver registers fn to receive each assistant event after it has
// been applied. fn must not modify the session.
func WithObserver(fn func(StreamEvent)) SendOption {
	return func(o *sendOptions) {
		o.observer = fn
	}
}

// WithRecorder tees the raw stream bytes of the send to w.
func WithRecorder(w io.Writer) SendOption {
	return func(o *sendOptions) {
		o.recorder = w
	}
}

func newSendOptions(opts []SendOption) sendOptions {
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
