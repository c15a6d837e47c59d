package sse

import (
	"context"
	"errors"
	"io"
)

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 4096

// ChunkReader pulls raw byte chunks from a streaming response body while
// simultaneously writing every chunk verbatim to a destination io.Writer.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌─────────────────────┐   ┌───────────────────────┐
// │ ChunkReader.Next()  │──▶│ destination io.Writer │
// └─────────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │    raw chunk     │
// └──────────────────┘
//
// Chunks carry no framing guarantees: a chunk may end mid-record or hold
// several records. Framing is the job of Framer.
type ChunkReader struct {
	src  io.Reader
	dest io.Writer
	buf  []byte
	eof  bool

	// err is a source failure that arrived together with data. It is
	// reported on the call after that data is returned.
	err error
}

// ReaderOption configures a ChunkReader created with NewChunkReader.
type ReaderOption func(*ChunkReader)

// WithChunkSize sets the maximum number of bytes returned per Next call.
// Non-positive sizes are ignored.
func WithChunkSize(n int) ReaderOption {
	return func(r *ChunkReader) {
		if n > 0 {
			r.buf = make([]byte, n)
		}
	}
}

// NewChunkReader returns a ChunkReader over src. A nil dest discards the
// teed bytes.
func NewChunkReader(src io.Reader, dest io.Writer, opts ...ReaderOption) *ChunkReader {
	if dest == nil {
		dest = io.Discard
	}

	r := &ChunkReader{
		src:  src,
		dest: dest,
		buf:  make([]byte, DefaultChunkSize),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Next returns the next available chunk from the source.
//
//   - (chunk, true, nil) when bytes were read
//   - (nil, false, nil) on a clean end of stream
//   - (nil, false, err) when the source fails or ctx is done; bytes read
//     together with a failure are returned first
//
// The returned slice aliases an internal buffer and is only valid until the
// next call to Next.
func (r *ChunkReader) Next(ctx context.Context) ([]byte, bool, error) {
	for {
		if r.err != nil {
			return nil, false, r.err
		}
		if r.eof {
			return nil, false, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		n, err := r.src.Read(r.buf)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			r.eof = true
		default:
			// A cancelled request surfaces as a body read error; prefer the
			// context's own error so callers can tell an abort apart.
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			if n == 0 {
				return nil, false, err
			}
			r.err = err
		}

		if n == 0 {
			continue
		}

		chunk := r.buf[:n]
		if _, werr := r.dest.Write(chunk); werr != nil {
			return nil, false, werr
		}

		return chunk, true, nil
	}
}
