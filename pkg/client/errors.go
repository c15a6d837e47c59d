package client

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the service rejects the stored token. The
// token has already been cleared from the store when it is returned.
var ErrUnauthorized = errors.New("session expired, log in again")

// StatusError is a non-2xx response from the chat service.
type StatusError struct {
	Method string
	Path   string
	Code   int

	// Message is the server's error text, or the raw body when the body is
	// not an ErrorResponse.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
}

// StatusCode returns the HTTP status of the response.
func (e *StatusError) StatusCode() int {
	return e.Code
}
