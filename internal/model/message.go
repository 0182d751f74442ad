// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	// RoleError marks a locally generated error notice. It is never sent.
	RoleError Role = "error"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	case RoleError:
		return "Error"
	default:
		return string(r)
	}
}

// Sendable reports whether messages of this role go to the provider.
func (r Role) Sendable() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Stats are the streaming statistics recorded on an assistant message.
type Stats struct {
	Deltas       int           `json:"deltas"`
	TTFT         time.Duration `json:"ttft_ns,omitempty"`
	Duration     time.Duration `json:"duration_ns,omitempty"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

// DeltasPerSec returns the streaming rate, or 0 if unknown.
func (s Stats) DeltasPerSec() float64 {
	if s.Duration <= 0 || s.Deltas == 0 {
		return 0
	}
	return float64(s.Deltas) / s.Duration.Seconds()
}

// Message is a single entry in a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Model is the model that produced an assistant message.
	Model string `json:"model,omitempty"`

	// Generating is true while the message is being streamed into.
	Generating bool `json:"-"`

	Stats *Stats `json:"stats,omitempty"`
}

// NewMessage creates a message with a fresh id.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewErrorMessage creates the error notice shown after a failed turn.
func NewErrorMessage(err error) Message {
	return NewMessage(RoleError, "Error: "+err.Error())
}
