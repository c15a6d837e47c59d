// Package api is a self-contained development backend for the role-play chat
// service. It speaks the same REST and streaming protocol as the real service
// from an in-memory store, so the CLI and its tests can run without one.
package api

import "time"

// Config is the dev backend configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Responder generates assistant replies. Defaults to EchoResponder.
	Responder Responder

	// FragmentDelay is the pause between streamed reply fragments.
	FragmentDelay time.Duration

	// MessageRateLimit caps message sends per user per minute. Zero disables
	// the limit.
	MessageRateLimit int
}
