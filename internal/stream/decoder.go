// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// =============================================================================
// DECODE RESULTS
// =============================================================================

// DoneSentinel is the payload that marks the end of a completions stream.
const DoneSentinel = "[DONE]"

// ErrDone signals the end-of-stream sentinel. It is not a failure.
var ErrDone = errors.New("stream: done")

// ErrIgnoredFrame is returned for SSE comments and non-data fields
// (event:, id:, retry:). Such frames carry no content.
var ErrIgnoredFrame = errors.New("stream: ignored frame")

// Delta is the incremental content carried by one envelope, plus the
// metadata the provider sent alongside it.
type Delta struct {
	Content      string
	Role         string
	FinishReason string
	Model        string
	ID           string
}

// Empty reports whether the delta adds nothing to the transcript.
func (d Delta) Empty() bool {
	return d.Content == ""
}

// MalformedFrameError describes a frame whose payload is not valid JSON.
// It is always skippable.
type MalformedFrameError struct {
	Frame string
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("stream: malformed frame %q", truncateFrame(e.Frame, 80))
}

// ProviderError is an error envelope sent by the provider in place of a
// completion chunk. Unlike a malformed frame it ends the stream.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error (%s): %s", e.Code, e.Message)
	}
	return "provider error: " + e.Message
}

// Skippable reports whether err from DecodeFrame should be dropped so the
// read loop can carry on with the next frame.
func Skippable(err error) bool {
	if errors.Is(err, ErrIgnoredFrame) {
		return true
	}
	var malformed *MalformedFrameError
	return errors.As(err, &malformed)
}

// =============================================================================
// DECODER
// =============================================================================

// DecodeFrame decodes a single frame.
//
// It returns a Delta (possibly empty) on success, ErrDone for the sentinel,
// a skippable error for comments and malformed payloads, or a
// *ProviderError for an error envelope.
func DecodeFrame(frame string) (Delta, error) {
	payload, ok := framePayload(frame)
	if !ok {
		return Delta{}, ErrIgnoredFrame
	}

	if payload == DoneSentinel {
		return Delta{}, ErrDone
	}
	if payload == "" || !gjson.Valid(payload) {
		return Delta{}, &MalformedFrameError{Frame: frame}
	}

	if e := gjson.Get(payload, "error"); e.IsObject() {
		msg := e.Get("message").String()
		if msg == "" {
			msg = e.Raw
		}
		return Delta{}, &ProviderError{
			Code:    e.Get("code").String(),
			Message: msg,
		}
	}

	fields := gjson.GetMany(payload,
		"choices.0.delta.content",
		"choices.0.delta.role",
		"choices.0.finish_reason",
		"model",
		"id",
	)
	d := Delta{
		Role:         fields[1].String(),
		FinishReason: fields[2].String(),
		Model:        fields[3].String(),
		ID:           fields[4].String(),
	}
	// Only string content is text; numbers, bools and objects are dropped.
	if fields[0].Type == gjson.String {
		d.Content = fields[0].Str
	}
	return d, nil
}

// framePayload strips the "data:" field name. Lines without a field name are
// treated as bare payloads; other SSE fields and comments report false.
func framePayload(frame string) (string, bool) {
	line := strings.TrimSpace(frame)
	switch {
	case strings.HasPrefix(line, "data:"):
		return strings.TrimSpace(line[len("data:"):]), true
	case strings.HasPrefix(line, ":"):
		return "", false
	case strings.HasPrefix(line, "event:"),
		strings.HasPrefix(line, "id:"),
		strings.HasPrefix(line, "retry:"):
		return "", false
	}
	return line, true
}

func truncateFrame(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
