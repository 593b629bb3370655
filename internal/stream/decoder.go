// Package stream turns a chunked NDJSON response body into complete lines.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// DefaultChunkSize is the read size used by Lines when none is given.
const DefaultChunkSize = 4 * 1024

// MaxLineBytes bounds the unterminated tail. A backend that never sends a
// newline would otherwise grow the buffer for the whole stream.
const MaxLineBytes = 1024 * 1024

// ErrLineTooLong is returned when the pending tail exceeds MaxLineBytes.
var ErrLineTooLong = errors.New("stream: line exceeds maximum length")

// Decoder splits incoming bytes on '\n'. Bytes are only converted to text
// once a line is complete, so a multi-byte rune split across chunks is
// reassembled before decoding. Not safe for concurrent use.
type Decoder struct {
	pending []byte
}

// Feed appends chunk and returns every line it completed, trimmed of
// surrounding whitespace. The unterminated remainder stays buffered.
func (d *Decoder) Feed(chunk []byte) ([]string, error) {
	d.pending = append(d.pending, chunk...)

	var lines []string
	start := 0
	for {
		i := bytes.IndexByte(d.pending[start:], '\n')
		if i < 0 {
			break
		}
		lines = append(lines, clean(d.pending[start:start+i]))
		start += i + 1
	}

	if start > 0 {
		n := copy(d.pending, d.pending[start:])
		d.pending = d.pending[:n]
	}

	if len(d.pending) > MaxLineBytes {
		return lines, fmt.Errorf("%w (%d bytes pending)", ErrLineTooLong, len(d.pending))
	}
	return lines, nil
}

// Pending returns the number of buffered bytes without a terminating newline.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

// Reset drops any buffered bytes.
func (d *Decoder) Reset() {
	d.pending = d.pending[:0]
}

func clean(b []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(b), "\uFFFD"))
}

// Lines reads r in chunks of size bytes and yields complete lines as they
// become available. The sequence ends at EOF, silently discarding an
// unterminated final line. A read error or a cancelled ctx is yielded once
// as the final element. The sequence is single-use.
func Lines(ctx context.Context, r io.Reader, size int) iter.Seq2[string, error] {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return func(yield func(string, error) bool) {
		var d Decoder
		buf := make([]byte, size)
		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}

			n, err := r.Read(buf)
			if n > 0 {
				lines, ferr := d.Feed(buf[:n])
				for _, line := range lines {
					if !yield(line, nil) {
						return
					}
				}
				if ferr != nil {
					yield("", ferr)
					return
				}
			}

			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				// A read that failed because the request was cancelled
				// reports the cancellation, not the transport symptom.
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				}
				yield("", err)
				return
			}
		}
	}
}
