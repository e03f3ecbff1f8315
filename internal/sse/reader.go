// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sse

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// Frame is one parsed Server-Sent Event.
type Frame struct {
	Event string
	Data  []byte
	ID    string
}

// Reader parses an event stream as produced by ServeSSE.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader wraps r. Frames larger than 1 MiB are rejected.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	return &Reader{sc: sc}
}

// Next returns the next complete frame, or io.EOF when the stream ends.
// Comment lines are skipped and multiple data lines are joined by newlines.
func (r *Reader) Next() (Frame, error) {
	var (
		f       Frame
		data    bytes.Buffer
		hasData bool
	)
	for r.sc.Scan() {
		line := r.sc.Text()
		if line == "" {
			if !hasData && f.Event == "" {
				continue
			}
			if f.Event == "" {
				f.Event = "message"
			}
			f.Data = data.Bytes()
			return f, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			f.Event = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			f.ID = value
		}
	}
	if err := r.sc.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}
