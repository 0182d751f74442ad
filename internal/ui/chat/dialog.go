// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// MODAL DIALOGS
// =============================================================================

type dialogKind int

const (
	dialogNone dialogKind = iota
	dialogAPIKey
	dialogAddModel
	dialogSystemPrompt
)

// dialog is a single-line modal prompt.
type dialog struct {
	kind  dialogKind
	input textinput.Model
}

func (d dialog) open() bool {
	return d.kind != dialogNone
}

func (d dialog) title() string {
	switch d.kind {
	case dialogAPIKey:
		return "OpenRouter API key"
	case dialogAddModel:
		return "Add model"
	case dialogSystemPrompt:
		return "System prompt"
	}
	return ""
}

func (d dialog) hint() string {
	switch d.kind {
	case dialogAPIKey:
		return "Stored locally. enter save, esc cancel"
	case dialogAddModel:
		return "e.g. anthropic/claude-3.5-sonnet. enter add, esc cancel"
	case dialogSystemPrompt:
		return "Empty clears it. enter save, esc cancel"
	}
	return ""
}

// openDialog shows a dialog of kind, prefilled from the current settings.
func (m Model) openDialog(kind dialogKind) Model {
	ti := textinput.New()
	ti.CharLimit = 0
	ti.Width = 60
	ti.Prompt = "> "

	switch kind {
	case dialogAPIKey:
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '*'
		ti.Placeholder = "sk-or-..."
	case dialogAddModel:
		ti.Placeholder = "provider/model"
	case dialogSystemPrompt:
		ti.Placeholder = "You are a helpful assistant."
		ti.SetValue(m.state.Settings.SystemPrompt)
		ti.CursorEnd()
	}
	ti.Focus()

	m.input.Blur()
	m.dialog = dialog{kind: kind, input: ti}
	return m
}

func (m Model) closeDialog() Model {
	m.dialog = dialog{}
	m.input.Focus()
	return m
}

// updateDialog handles input while a dialog is open.
func (m Model) updateDialog(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m.closeDialog(), nil
	case tea.KeyEnter:
		return m.commitDialog()
	}

	var cmd tea.Cmd
	m.dialog.input, cmd = m.dialog.input.Update(msg)
	return m, cmd
}

// commitDialog applies the dialog's value to the settings.
func (m Model) commitDialog() (Model, tea.Cmd) {
	value := strings.TrimSpace(m.dialog.input.Value())
	kind := m.dialog.kind
	m = m.closeDialog()

	switch kind {
	case dialogAPIKey:
		if value == "" {
			return m.setStatus("API key not changed", true)
		}
		m.state.Settings = m.state.Settings.SetAPIKey(value)
		m.keyFromEnv = false
		var cmd tea.Cmd
		m, cmd = m.setStatus("API key saved", false)
		return m, tea.Batch(cmd, m.saveSettingsCmd(true))

	case dialogAddModel:
		s, ok := m.state.Settings.AddModel(value)
		if !ok {
			return m.setStatus("Model is empty or already listed", true)
		}
		m.state.Settings = s
		var cmd tea.Cmd
		m, cmd = m.setStatus("Added "+value, false)
		return m, tea.Batch(cmd, m.saveSettingsCmd(true))

	case dialogSystemPrompt:
		m.state.Settings = m.state.Settings.SetSystemPrompt(value)
		m.refreshViewport()
		return m, m.saveSettingsCmd(true)
	}
	return m, nil
}

// renderDialog draws the open dialog centered over the screen.
func (m Model) renderDialog() string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		m.theme.ModalTitle.Render(m.dialog.title()),
		m.dialog.input.View(),
		m.theme.ModalHint.Render(m.dialog.hint()),
	)
	box := m.theme.Modal.Render(body)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
