// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"slices"
	"strings"
)

// State is the whole chat application state. It is a value: every update
// function below returns a new State and leaves its argument untouched.
type State struct {
	Settings Settings
	Messages []Message

	// Pending is the id of the assistant message being streamed, if any.
	Pending string
}

// NewState returns an empty conversation with settings s.
func NewState(s Settings) State {
	return State{Settings: s.Normalize()}
}

// Generating reports whether a turn is in flight.
func (s State) Generating() bool {
	return s.Pending != ""
}

// CanSubmit reports whether Submit would accept input.
func (s State) CanSubmit(input string) bool {
	return strings.TrimSpace(input) != "" && s.Settings.HasAPIKey() && !s.Generating()
}

// Turn is everything needed to request one assistant reply.
type Turn struct {
	// AssistantID is the placeholder message the reply streams into.
	AssistantID string
	Model       string
	MaxTokens   int
	// History is the outgoing message list, system prompt first.
	History []Message
}

// Submit starts a turn with input as the user message.
//
// It appends the user message and an empty generating assistant message and
// returns the request to send. Blank input, a missing API key or a turn
// already in flight leave the state unchanged and report false.
func Submit(s State, input string) (State, Turn, bool) {
	if !s.CanSubmit(input) {
		return s, Turn{}, false
	}

	user := NewMessage(RoleUser, strings.TrimSpace(input))
	reply := NewMessage(RoleAssistant, "")
	reply.Generating = true
	reply.Model = s.Settings.SelectedModel

	history := make([]Message, 0, len(s.Messages)+2)
	if s.Settings.SystemPrompt != "" {
		history = append(history, NewMessage(RoleSystem, s.Settings.SystemPrompt))
	}
	for _, m := range s.Messages {
		if !m.Role.Sendable() || (m.Role == RoleAssistant && m.Content == "") {
			continue
		}
		history = append(history, m)
	}
	history = append(history, user)

	next := s
	next.Messages = append(slices.Clone(s.Messages), user, reply)
	next.Pending = reply.ID

	return next, Turn{
		AssistantID: reply.ID,
		Model:       s.Settings.SelectedModel,
		MaxTokens:   s.Settings.MaxTokens,
		History:     history,
	}, true
}

// ApplyDelta sets the streamed transcript of message id.
func ApplyDelta(s State, id, transcript string) State {
	return update(s, id, func(m *Message) {
		m.Content = transcript
	})
}

// Complete ends the turn for id normally.
func Complete(s State, id, transcript string, stats Stats) State {
	s = update(s, id, func(m *Message) {
		m.Content = transcript
		m.Generating = false
		m.Stats = &stats
	})
	return settle(s, id)
}

// Cancel ends the turn for id at the user's request. Partial content is
// kept; an empty placeholder is removed.
func Cancel(s State, id, partial string) State {
	s = update(s, id, func(m *Message) {
		m.Content = partial
		m.Generating = false
	})
	return settle(dropEmpty(s, id), id)
}

// Fail ends the turn for id with err. Partial content is kept and a
// separate error message is appended after it.
func Fail(s State, id, partial string, err error) State {
	s = update(s, id, func(m *Message) {
		m.Content = partial
		m.Generating = false
	})
	s = dropEmpty(s, id)
	if err != nil {
		s.Messages = append(slices.Clone(s.Messages), NewErrorMessage(err))
	}
	return settle(s, id)
}

// ClearConversation removes all messages. It is refused while a turn is in
// flight.
func ClearConversation(s State) (State, bool) {
	if s.Generating() {
		return s, false
	}
	s.Messages = nil
	return s, true
}

// Find returns the message with id.
func Find(s State, id string) (Message, bool) {
	for _, m := range s.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// LastReply returns the most recent assistant or error message with content.
func LastReply(s State) (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if (m.Role == RoleAssistant || m.Role == RoleError) && m.Content != "" {
			return m, true
		}
	}
	return Message{}, false
}

func update(s State, id string, fn func(*Message)) State {
	i := slices.IndexFunc(s.Messages, func(m Message) bool { return m.ID == id })
	if i < 0 {
		return s
	}
	s.Messages = slices.Clone(s.Messages)
	fn(&s.Messages[i])
	return s
}

func dropEmpty(s State, id string) State {
	i := slices.IndexFunc(s.Messages, func(m Message) bool { return m.ID == id })
	if i < 0 || s.Messages[i].Content != "" {
		return s
	}
	s.Messages = slices.Delete(slices.Clone(s.Messages), i, i+1)
	return s
}

func settle(s State, id string) State {
	if s.Pending == id {
		s.Pending = ""
	}
	return s
}
