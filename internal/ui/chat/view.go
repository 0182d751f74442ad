// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/openchat-tui/internal/model"
	"github.com/jeranaias/openchat-tui/internal/util"
)

// cursorGlyph trails a message that is still streaming.
const cursorGlyph = "█"

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.dialog.open() {
		return m.renderDialog()
	}
	if m.showHelp {
		return m.renderHelp()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderPanel(),
		m.viewport.View(),
		m.renderInput(),
		m.renderStatusBar(),
	)
}

// =============================================================================
// HEADER AND SETTINGS PANEL
// =============================================================================

func (m Model) renderHeader() string {
	s := m.state.Settings
	title := m.theme.HeaderTitle.Render("OpenChat")
	count := m.theme.HeaderMuted.Render(fmt.Sprintf("%d models", len(s.Models)))

	room := m.width - lipgloss.Width(title) - lipgloss.Width(count) - 6
	selected := m.theme.HeaderModel.Render(util.TruncateWidth(s.SelectedModel, max(room, 8)))

	line := title + "  " + selected + "  " + count
	return m.theme.Header.Width(max(m.width, 1)).Render(line)
}

func (m Model) renderPanel() string {
	s := m.state.Settings
	prompt := s.SystemPrompt
	if prompt == "" {
		prompt = "(none)"
	}
	tokens := m.theme.PanelLabel.Render("Max tokens ") + m.theme.PanelValue.Render(maxTokensLabel(s.MaxTokens))
	room := m.width - lipgloss.Width(tokens) - 16
	system := m.theme.PanelLabel.Render("System ") + m.theme.PanelValue.Render(util.Preview(prompt, max(room, 10)))

	return m.theme.Panel.Width(max(m.width-2, 1)).Render(system + "   " + tokens)
}

// =============================================================================
// MESSAGE LIST
// =============================================================================

// refreshViewport re-renders the message list, keeping the view pinned to
// the bottom if it was there.
func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom() || m.state.Generating()
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderMessages() string {
	if len(m.state.Messages) == 0 {
		return m.renderEmptyState()
	}

	now := time.Now()
	blocks := make([]string, 0, len(m.state.Messages))
	for _, msg := range m.state.Messages {
		blocks = append(blocks, m.renderMessage(msg, now))
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderMessage(msg model.Message, now time.Time) string {
	width := contentWidth(m.width)
	stamp := m.theme.HeaderMuted.Render(formatTimestamp(msg.Timestamp, now))

	switch msg.Role {
	case model.RoleUser:
		label := m.theme.UserLabel.Render(msg.Role.DisplayName())
		body := m.theme.UserText.Width(width).Render(msg.Content)
		return label + " " + stamp + "\n" + body

	case model.RoleError:
		label := m.theme.ErrorLabel.Render(msg.Role.DisplayName())
		body := m.theme.ErrorText.Width(width).Render(msg.Content)
		return label + " " + stamp + "\n" + body

	case model.RoleSystem:
		label := m.theme.SystemLabel.Render(msg.Role.DisplayName())
		return label + "\n" + m.md.render(msg.ID, msg.Content)
	}

	header := m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	if msg.Model != "" {
		header += " " + m.theme.HeaderMuted.Render(util.TruncateWidth(msg.Model, 40))
	}
	header += " " + stamp

	if msg.Generating && msg.Content == "" {
		return header + "\n" + m.theme.Thinking.Render(m.spinner.View()+" Thinking...")
	}

	body := m.md.render(msg.ID, msg.Content)
	if msg.Generating {
		body += m.theme.Cursor.Render(cursorGlyph)
	}
	if stats := statsLine(msg); stats != "" && !msg.Generating {
		body += "\n" + m.theme.Stats.Render(stats)
	}
	return header + "\n" + body
}

func (m *Model) renderEmptyState() string {
	lines := []string{
		m.theme.HeaderTitle.Render("Start a conversation"),
		"",
		m.theme.HeaderMuted.Render("Type a message and press enter. tab switches models, ctrl+n adds one."),
		m.theme.HeaderMuted.Render("Press F1 for all shortcuts."),
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}

// =============================================================================
// INPUT AND STATUS BAR
// =============================================================================

func (m Model) renderInput() string {
	if m.state.Generating() {
		return m.theme.InputDisabled.Render(m.input.View())
	}
	return m.theme.InputContainer.Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	if m.status != "" {
		if m.statusErr {
			return m.theme.StatusBar.Render(m.theme.StatusError.Render(m.status))
		}
		return m.theme.StatusBar.Render(m.theme.StatusInfo.Render(m.status))
	}
	if m.state.Generating() {
		return m.theme.StatusBar.Render(m.theme.StatusDesc.Render("Generating... ") +
			m.theme.StatusKey.Render("esc") + " " + m.theme.StatusDesc.Render("stop"))
	}
	line := helpLine(m.keys.ShortHelp(), m.theme.StatusKey.Render, m.theme.StatusDesc.Render)
	return m.theme.StatusBar.MaxWidth(max(m.width, 10)).Render(line)
}

func (m Model) renderHelp() string {
	title := m.theme.ModalTitle.Render("Keyboard shortcuts")
	body := m.help.FullHelpView(m.keys.FullHelp())
	hint := m.theme.ModalHint.Render("F1 or esc to close")
	box := m.theme.Modal.Render(lipgloss.JoinVertical(lipgloss.Left, title, body, hint))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
