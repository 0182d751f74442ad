// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"errors"
	"fmt"
)

// DefaultMaxFrameSize bounds a single line held in the carry-over buffer (1MB).
const DefaultMaxFrameSize = 1 << 20

// ErrFrameTooLarge is returned when a line grows past the splitter's limit
// without a terminating newline.
var ErrFrameTooLarge = errors.New("stream: frame exceeds maximum size")

// FrameSplitter splits an arbitrarily chunked byte stream into lines.
//
// Partial lines are carried over between Push calls, so frame boundaries do
// not depend on how the transport chunked the body. Bytes are kept raw until
// a full line is available; a multi-byte UTF-8 rune split across two chunks
// is therefore reassembled intact.
type FrameSplitter struct {
	carry   []byte
	maxSize int
}

// NewFrameSplitter creates a splitter. maxSize <= 0 selects DefaultMaxFrameSize.
func NewFrameSplitter(maxSize int) *FrameSplitter {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &FrameSplitter{maxSize: maxSize}
}

// Push appends chunk to the carry-over buffer and returns every complete,
// non-empty line in arrival order. A trailing '\r' is removed from each line.
func (s *FrameSplitter) Push(chunk []byte) ([]string, error) {
	s.carry = append(s.carry, chunk...)

	var frames []string
	for {
		i := bytes.IndexByte(s.carry, '\n')
		if i < 0 {
			break
		}
		if line := trimCR(s.carry[:i]); len(line) > 0 {
			frames = append(frames, string(line))
		}
		s.carry = s.carry[i+1:]
	}

	if len(s.carry) > s.maxSize {
		size := len(s.carry)
		s.carry = nil
		return frames, fmt.Errorf("%w: %d bytes buffered without newline", ErrFrameTooLarge, size)
	}

	// Compact so a long stream does not pin the first chunk's backing array.
	if cap(s.carry) > 4096 && len(s.carry) < cap(s.carry)/4 {
		s.carry = append([]byte(nil), s.carry...)
	}
	return frames, nil
}

// Flush returns the remaining carry-over as a final frame, if it is
// non-empty, and resets the splitter.
func (s *FrameSplitter) Flush() (string, bool) {
	line := trimCR(s.carry)
	s.carry = nil
	if len(line) == 0 {
		return "", false
	}
	return string(line), true
}

// Pending reports how many bytes are waiting for a newline.
func (s *FrameSplitter) Pending() int {
	return len(s.carry)
}

func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}
