// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// client-side framer for the rolechat streaming endpoint. It pulls raw byte
// chunks off a response body, optionally tees them verbatim to a recorder,
// and frames them into "data: " records regardless of where the transport
// happened to split the bytes.
//
// This package intentionally does NOT decode record payloads and does NOT
// provide SSE writer or server capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

const (
	// DataPrefix is the literal prefix that marks an event line.
	DataPrefix = "data: "

	// DoneSentinel is the payload that terminates a stream.
	DoneSentinel = "[DONE]"
)

// Record is a single framed event line with the "data: " prefix stripped.
type Record struct {
	// Data is the raw payload of the event line, typically a JSON object.
	Data string
}
