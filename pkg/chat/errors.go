package chat

import (
	"errors"
	"fmt"
)

// ErrSendInFlight is returned when a send is issued while another one on the
// same session has not settled.
var ErrSendInFlight = errors.New("a message is already being sent")

// TransportError is a connection or status failure that ends the current
// send. It is the only error a send reports to its caller.
type TransportError struct {
	// Op names the step that failed, e.g. "open stream" or "read stream".
	Op string

	// Status is the HTTP status code for non-2xx responses, 0 otherwise.
	Status int

	Err error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedRecordError reports a stream record whose payload could not be
// decoded. The record is skipped and the stream continues.
type MalformedRecordError struct {
	Payload string
	Err     error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed stream record %q: %v", e.Payload, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// UnsupportedEventError reports a decoded event whose role the engine does
// not handle.
type UnsupportedEventError struct {
	Role Role
}

func (e *UnsupportedEventError) Error() string {
	return fmt.Sprintf("unsupported stream event role %q", string(e.Role))
}

// statusCoder is implemented by transport errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// asTransportError wraps err as a *TransportError for op unless it already
// is one.
func asTransportError(op string, err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}

	te = &TransportError{Op: op, Err: err}

	var sc statusCoder
	if errors.As(err, &sc) {
		te.Status = sc.StatusCode()
	}

	return te
}
