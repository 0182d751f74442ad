// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/openchat-tui/internal/export"
	"github.com/jeranaias/openchat-tui/internal/model"
)

// =============================================================================
// CLIPBOARD AND EXPORT HANDLERS
// =============================================================================

// copyLastReply copies the newest assistant or error message.
func (m Model) copyLastReply() (tea.Model, tea.Cmd) {
	msg, ok := model.LastReply(m.state)
	if !ok {
		return m.setStatus("Nothing to copy yet", true)
	}
	text := msg.Content
	return m, func() tea.Msg {
		return CopiedMsg{Err: export.CopyToClipboard(text)}
	}
}

// exportConversation writes the conversation as Markdown into the
// working directory.
func (m Model) exportConversation() (tea.Model, tea.Cmd) {
	if len(m.state.Messages) == 0 {
		return m.setStatus("Nothing to export yet", true)
	}
	state := m.state
	opts := export.DefaultOptions()
	return m, func() tea.Msg {
		path, err := export.ExportState(state, export.FormatMarkdown, opts)
		return ExportedMsg{Path: path, Err: err}
	}
}
