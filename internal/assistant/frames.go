// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// MaxFrameSize is the maximum allowed size of a single stream line (1MB).
const MaxFrameSize = 1024 * 1024

// doneMarker terminates OpenAI-style SSE streams.
var doneMarker = []byte("[DONE]")

// Frame is one undecoded unit of the event stream. Event is empty for
// newline-delimited JSON lines, which carry their name inside Data.
type Frame struct {
	Event string
	Data  []byte
}

// FrameReader splits a response body into frames. It understands
// server-sent events (event:/data: fields separated by blank lines) and
// bare JSON lines, and may see both in one stream.
type FrameReader struct {
	scanner *bufio.Scanner
}

// NewFrameReader creates a frame reader over r.
func NewFrameReader(r io.Reader) *FrameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxFrameSize)
	return &FrameReader{scanner: scanner}
}

// Next returns the next frame. It returns io.EOF at the end of the stream
// or when a [DONE] marker is read.
func (f *FrameReader) Next() (Frame, error) {
	var (
		event string
		data  [][]byte
	)

	flush := func() (Frame, error) {
		joined := bytes.Join(data, []byte("\n"))
		if bytes.Equal(joined, doneMarker) {
			return Frame{}, io.EOF
		}
		return Frame{Event: event, Data: joined}, nil
	}

	for f.scanner.Scan() {
		line := f.scanner.Bytes()

		// Blank line ends an SSE event.
		if len(line) == 0 {
			if len(data) > 0 {
				return flush()
			}
			event = ""
			continue
		}

		// A bare JSON line outside an SSE event is a frame of its own.
		if line[0] == '{' && event == "" && len(data) == 0 {
			return Frame{Data: bytes.Clone(line)}, nil
		}

		// Comments (":keep-alive") and unknown fields are ignored.
		if line[0] == ':' {
			continue
		}
		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		switch string(field) {
		case "event":
			event = string(value)
		case "data":
			data = append(data, bytes.Clone(value))
		}
	}

	if err := f.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Frame{}, ErrFrameTooLarge
		}
		return Frame{}, err
	}
	if len(data) > 0 {
		return flush()
	}
	return Frame{}, io.EOF
}
