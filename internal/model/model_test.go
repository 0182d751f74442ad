// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyState() State {
	s := DefaultSettings()
	s.APIKey = "sk-or-test"
	return NewState(s)
}

// =============================================================================
// SETTINGS TESTS
// =============================================================================

func TestSettings_Normalize(t *testing.T) {
	s := Settings{
		Models:    []string{" a ", "b", "a", ""},
		MaxTokens: 100000,
	}.Normalize()

	assert.Equal(t, []string{"a", "b"}, s.Models)
	assert.Equal(t, "a", s.SelectedModel)
	assert.Equal(t, MaxMaxTokens, s.MaxTokens)

	empty := Settings{}.Normalize()
	assert.Equal(t, []string{DefaultModel}, empty.Models)
	assert.Equal(t, DefaultModel, empty.SelectedModel)
	assert.Equal(t, DefaultMaxTokens, empty.MaxTokens)
}

func TestSettings_AddModel(t *testing.T) {
	s := DefaultSettings()

	s2, ok := s.AddModel("  openai/gpt-4o ")
	require.True(t, ok)
	assert.Equal(t, []string{DefaultModel, "openai/gpt-4o"}, s2.Models)
	assert.Equal(t, "openai/gpt-4o", s2.SelectedModel)
	assert.Equal(t, []string{DefaultModel}, s.Models, "original settings must not change")

	_, ok = s2.AddModel("openai/gpt-4o")
	assert.False(t, ok)
	_, ok = s2.AddModel("   ")
	assert.False(t, ok)
}

func TestSettings_RemoveModel(t *testing.T) {
	s := DefaultSettings()
	s, _ = s.AddModel("x")

	s, ok := s.RemoveModel("x")
	require.True(t, ok)
	assert.Equal(t, DefaultModel, s.SelectedModel)

	_, ok = s.RemoveModel(DefaultModel)
	assert.False(t, ok, "last model cannot be removed")
}

func TestSettings_CycleModel(t *testing.T) {
	s := Settings{Models: []string{"a", "b", "c"}, SelectedModel: "a"}
	assert.Equal(t, "b", s.CycleModel(1).SelectedModel)
	assert.Equal(t, "c", s.CycleModel(-1).SelectedModel)
	assert.Equal(t, "a", s.CycleModel(3).SelectedModel)
}

func TestSettings_MaxTokens(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 2176, s.StepMaxTokens(1).MaxTokens)
	assert.Equal(t, 1920, s.StepMaxTokens(-1).MaxTokens)
	assert.Equal(t, MaxMaxTokens, s.StepMaxTokens(100).MaxTokens)
	assert.Equal(t, MinMaxTokens, s.StepMaxTokens(-100).MaxTokens)
	assert.Equal(t, 2048, s.SetMaxTokens(2000).StepMaxTokens(1).MaxTokens)
	assert.Equal(t, MinMaxTokens, s.SetMaxTokens(1).MaxTokens)
}

// =============================================================================
// TURN TESTS
// =============================================================================

func TestSubmit_Preconditions(t *testing.T) {
	st := readyState()

	_, _, ok := Submit(st, "   ")
	assert.False(t, ok, "blank input")

	noKey := NewState(DefaultSettings())
	_, _, ok = Submit(noKey, "hi")
	assert.False(t, ok, "missing key")

	busy, _, ok := Submit(st, "hi")
	require.True(t, ok)
	again, _, ok := Submit(busy, "again")
	assert.False(t, ok, "turn in flight")
	assert.Len(t, again.Messages, 2)
}

func TestSubmit_BuildsHistory(t *testing.T) {
	st := readyState()
	st.Settings = st.Settings.SetSystemPrompt("Be terse.")
	st.Messages = []Message{
		NewMessage(RoleUser, "first"),
		NewMessage(RoleAssistant, "answer"),
		NewMessage(RoleError, "Error: API error: 500"),
	}

	next, turn, ok := Submit(st, "second")
	require.True(t, ok)

	roles := make([]Role, len(turn.History))
	for i, m := range turn.History {
		roles[i] = m.Role
	}
	assert.Equal(t, []Role{RoleSystem, RoleUser, RoleAssistant, RoleUser}, roles)
	assert.Equal(t, "Be terse.", turn.History[0].Content)
	assert.Equal(t, "second", turn.History[3].Content)
	assert.Equal(t, DefaultModel, turn.Model)
	assert.Equal(t, DefaultMaxTokens, turn.MaxTokens)

	require.Len(t, next.Messages, 5)
	placeholder := next.Messages[4]
	assert.Equal(t, turn.AssistantID, placeholder.ID)
	assert.True(t, placeholder.Generating)
	assert.Empty(t, placeholder.Content)
	assert.Equal(t, turn.AssistantID, next.Pending)
	assert.Len(t, st.Messages, 3, "input state must not change")
}

func TestTurn_Complete(t *testing.T) {
	st, turn, _ := Submit(readyState(), "hi")
	st = ApplyDelta(st, turn.AssistantID, "H")
	st = ApplyDelta(st, turn.AssistantID, "Hi")
	st = Complete(st, turn.AssistantID, "Hi!", Stats{Deltas: 3, Duration: time.Second})

	assert.False(t, st.Generating())
	m, ok := Find(st, turn.AssistantID)
	require.True(t, ok)
	assert.Equal(t, "Hi!", m.Content)
	assert.False(t, m.Generating)
	require.NotNil(t, m.Stats)
	assert.InDelta(t, 3.0, m.Stats.DeltasPerSec(), 0.001)
}

func TestTurn_CancelKeepsPartial(t *testing.T) {
	st, turn, _ := Submit(readyState(), "hi")
	st = ApplyDelta(st, turn.AssistantID, "Hel")
	st = Cancel(st, turn.AssistantID, "Hel")

	assert.False(t, st.Generating())
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "Hel", st.Messages[1].Content)
	assert.False(t, st.Messages[1].Generating)
}

func TestTurn_CancelDropsEmptyPlaceholder(t *testing.T) {
	st, turn, _ := Submit(readyState(), "hi")
	st = Cancel(st, turn.AssistantID, "")

	require.Len(t, st.Messages, 1)
	assert.Equal(t, RoleUser, st.Messages[0].Role)
}

func TestTurn_FailAppendsErrorAfterPartial(t *testing.T) {
	st, turn, _ := Submit(readyState(), "hi")
	st = Fail(st, turn.AssistantID, "partial", errors.New("API error: 502"))

	require.Len(t, st.Messages, 3)
	assert.Equal(t, "partial", st.Messages[1].Content)
	assert.Equal(t, RoleError, st.Messages[2].Role)
	assert.Equal(t, "Error: API error: 502", st.Messages[2].Content)
	assert.False(t, st.Generating())

	last, ok := LastReply(st)
	require.True(t, ok)
	assert.Equal(t, RoleError, last.Role)
}

func TestTurn_FailWithoutContent(t *testing.T) {
	st, turn, _ := Submit(readyState(), "hi")
	st = Fail(st, turn.AssistantID, "", errors.New("request failed"))

	require.Len(t, st.Messages, 2)
	assert.Equal(t, RoleUser, st.Messages[0].Role)
	assert.Equal(t, RoleError, st.Messages[1].Role)
}

func TestTurn_StaleIDIgnored(t *testing.T) {
	st, turn, _ := Submit(readyState(), "hi")
	after := Complete(st, "someone-else", "x", Stats{})

	assert.Equal(t, turn.AssistantID, after.Pending)
	m, _ := Find(after, turn.AssistantID)
	assert.True(t, m.Generating)
}

func TestClearConversation(t *testing.T) {
	st, turn, _ := Submit(readyState(), "hi")
	_, ok := ClearConversation(st)
	assert.False(t, ok, "refused while generating")

	st = Complete(st, turn.AssistantID, "done", Stats{})
	st, ok = ClearConversation(st)
	assert.True(t, ok)
	assert.Empty(t, st.Messages)
}
