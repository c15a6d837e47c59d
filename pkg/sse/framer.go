package sse

import (
	"bytes"
	"strings"
)

// Framer splits a chunked byte stream into newline-delimited records.
//
// The unterminated tail of each chunk is held in carry and prepended to the
// next one, so a record whose newline arrives in a later chunk is framed
// exactly once. The carry stays as bytes: a newline byte never occurs inside
// a multi-byte UTF-8 sequence, so a rune split across chunks is only decoded
// once its line is complete.
type Framer struct {
	carry []byte
	done  bool
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends chunk to the carried fragment and returns every complete
// record it now holds. Once the sentinel is seen, Feed returns nothing.
func (f *Framer) Feed(chunk []byte) []Record {
	if f.done {
		return nil
	}

	f.carry = append(f.carry, chunk...)

	var records []Record
	for {
		idx := bytes.IndexByte(f.carry, '\n')
		if idx == -1 {
			break
		}

		line := string(f.carry[:idx])
		f.carry = f.carry[idx+1:]

		rec, ok := f.frame(line)
		if f.done {
			f.carry = nil
			return records
		}
		if ok {
			records = append(records, rec)
		}
	}

	// Compact so the backing array does not grow with the whole stream.
	if len(f.carry) == 0 {
		f.carry = nil
	} else {
		f.carry = append([]byte(nil), f.carry...)
	}

	return records
}

// Flush frames the carried fragment as a final, unterminated record and
// marks the framer done. It is called once the body is exhausted.
func (f *Framer) Flush() []Record {
	if f.done {
		return nil
	}

	line := string(f.carry)
	f.carry = nil

	rec, ok := f.frame(line)
	f.done = true
	if !ok {
		return nil
	}

	return []Record{rec}
}

// Done reports whether the stream has terminated, either by the sentinel or
// by Flush.
func (f *Framer) Done() bool {
	return f.done
}

// Pending returns the number of carried bytes not yet framed.
func (f *Framer) Pending() int {
	return len(f.carry)
}

// frame recognizes a single line. It returns ok=false for lines that are not
// event lines and for the sentinel, which also marks the framer done.
func (f *Framer) frame(line string) (Record, bool) {
	line = strings.TrimSuffix(line, "\r")

	data, ok := strings.CutPrefix(line, DataPrefix)
	if !ok {
		// Blank separators, comments, and other SSE fields are ignored.
		return Record{}, false
	}

	if data == DoneSentinel {
		f.done = true
		return Record{}, false
	}

	return Record{Data: data}, true
}
