// Package sse reads the data payloads of a server-sent event stream.
//
// Only "data: " lines are surfaced; every other line is ignored. Framing
// works on raw bytes and a line is only decoded once its terminating newline
// has arrived, so a multi-byte character split across reads is never seen
// half-formed.
package sse

import (
	"bufio"
	"bytes"
	"io"
)

const (
	// DataPrefix marks a line that carries a payload.
	DataPrefix = "data: "
	// Done is the payload that ends a stream.
	Done = "[DONE]"
)

type Reader struct {
	r    *bufio.Reader
	done bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next data payload. It returns io.EOF once the stream ends
// or the Done sentinel is read. A trailing line without a newline is dropped.
// Any other error comes from the underlying reader.
func (r *Reader) Next() (string, error) {
	for {
		if r.done {
			return "", io.EOF
		}

		line, err := r.r.ReadBytes('\n')
		if err != nil {
			// ReadBytes hands back the unterminated tail together with the
			// error; it is not a complete frame.
			if err == io.EOF {
				r.done = true
			}
			return "", err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 || !bytes.HasPrefix(line, []byte(DataPrefix)) {
			continue
		}

		payload := string(line[len(DataPrefix):])
		if payload == Done {
			r.done = true
			return "", io.EOF
		}
		return payload, nil
	}
}

// Finished reports whether the stream ended cleanly.
func (r *Reader) Finished() bool {
	return r.done
}
