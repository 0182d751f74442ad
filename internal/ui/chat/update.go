// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/openchat-tui/internal/cloud"
	"github.com/jeranaias/openchat-tui/internal/model"
	"github.com/jeranaias/openchat-tui/internal/storage"
	"github.com/jeranaias/openchat-tui/internal/stream"
	"github.com/jeranaias/openchat-tui/internal/ui/styles"
)

// Layout rows outside the viewport.
const (
	headerHeight = 2
	panelHeight  = 3
	inputHeight  = 5
	statusHeight = 1
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg.Width, msg.Height), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if !m.state.Generating() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshViewport()
		return m, cmd

	case StreamDeltaMsg:
		if msg.MessageID != m.state.Pending {
			return m, nil
		}
		m.state = model.ApplyDelta(m.state, msg.MessageID, msg.Transcript)
		ok, cmd := m.throttle.request()
		if ok {
			m.refreshViewport()
		}
		return m, cmd

	case renderTickMsg:
		m.throttle.ticked()
		m.refreshViewport()
		return m, nil

	case StreamDoneMsg:
		if msg.MessageID != m.state.Pending {
			return m, nil
		}
		m.streams.release(msg.MessageID)
		if msg.Result.State == stream.StateCancelled {
			m.state = model.Cancel(m.state, msg.MessageID, msg.Result.Text)
		} else {
			m.state = model.Complete(m.state, msg.MessageID, msg.Result.Text, msg.Result.MessageStats())
		}
		return m.finishTurn(), nil

	case StreamErrorMsg:
		if msg.MessageID != m.state.Pending {
			return m, nil
		}
		m.streams.release(msg.MessageID)
		m.state = model.Fail(m.state, msg.MessageID, msg.Err.Partial, msg.Err.Err)
		return m.finishTurn(), nil

	case SettingsSavedMsg:
		if msg.Err != nil {
			m.log.Error("failed to save settings", "error", msg.Err)
			return m.setStatus("Save failed: "+msg.Err.Error(), true)
		}
		if !msg.Quiet {
			return m.setStatus("Settings saved", false)
		}
		return m, nil

	case ConfigChangedMsg:
		return m.applyConfig(msg)

	case CopiedMsg:
		if msg.Err != nil {
			return m.setStatus("Copy failed: "+msg.Err.Error(), true)
		}
		return m.setStatus("Copied to clipboard", false)

	case ExportedMsg:
		if msg.Err != nil {
			return m.setStatus("Export failed: "+msg.Err.Error(), true)
		}
		return m.setStatus("Exported to "+msg.Path, false)

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
			m.statusErr = false
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.streams.cancel()
		return m, tea.Quit
	}

	if m.dialog.open() {
		return m.updateDialog(msg)
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Help) || msg.Type == tea.KeyEsc {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Stop):
		return m.stop()

	case key.Matches(msg, m.keys.Send):
		return m.submit()

	case key.Matches(msg, m.keys.SaveSettings):
		return m, m.saveSettingsCmd(false)

	case key.Matches(msg, m.keys.AddModel):
		return m.openDialog(dialogAddModel), nil

	case key.Matches(msg, m.keys.SystemPrompt):
		return m.openDialog(dialogSystemPrompt), nil

	case key.Matches(msg, m.keys.APIKey):
		return m.openDialog(dialogAPIKey), nil

	case key.Matches(msg, m.keys.RemoveModel):
		selected := m.state.Settings.SelectedModel
		s, ok := m.state.Settings.RemoveModel(selected)
		if !ok {
			return m.setStatus("Cannot remove the last model", true)
		}
		m.state.Settings = s
		var cmd tea.Cmd
		m, cmd = m.setStatus("Removed "+selected, false)
		return m, tea.Batch(cmd, m.saveSettingsCmd(true))

	case key.Matches(msg, m.keys.CycleModel):
		m.state.Settings = m.state.Settings.CycleModel(1)
		return m, m.saveSettingsCmd(true)

	case key.Matches(msg, m.keys.TokensUp):
		m.state.Settings = m.state.Settings.StepMaxTokens(1)
		return m, m.saveSettingsCmd(true)

	case key.Matches(msg, m.keys.TokensDown):
		m.state.Settings = m.state.Settings.StepMaxTokens(-1)
		return m, m.saveSettingsCmd(true)

	case key.Matches(msg, m.keys.Copy):
		return m.copyLastReply()

	case key.Matches(msg, m.keys.Export):
		return m.exportConversation()

	case key.Matches(msg, m.keys.Clear):
		next, ok := model.ClearConversation(m.state)
		if !ok {
			return m.setStatus("Stop the current reply first", true)
		}
		m.state = next
		m.md.forget()
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.state.Generating() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// TURN LIFECYCLE
// =============================================================================

// submit sends the input as a new user turn.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if !m.state.Settings.HasAPIKey() {
		return m.openDialog(dialogAPIKey), nil
	}

	next, turn, ok := model.Submit(m.state, m.input.Value())
	if !ok {
		return m, nil
	}
	m.state = next
	m.input.Reset()
	m.input.Blur()

	id := turn.AssistantID
	h, err := m.client().StartStream(m.ctx, cloud.RequestFromTurn(turn), m.callbacks(id))
	if err != nil {
		m.log.Warn("stream not started", "error", err)
		m.state = model.Fail(m.state, id, "", err)
		return m.finishTurn(), nil
	}
	m.streams.set(id, h)

	m.refreshViewport()
	m.viewport.GotoBottom()
	return m, m.spinner.Tick
}

// callbacks forward stream events for message id into the program.
func (m Model) callbacks(id string) cloud.Callbacks {
	s := m.sender
	return cloud.Callbacks{
		OnDelta: func(_ stream.Delta, transcript string) {
			s.send(StreamDeltaMsg{MessageID: id, Transcript: transcript})
		},
		OnDone: func(r cloud.Result) {
			s.send(StreamDoneMsg{MessageID: id, Result: r})
		},
		OnError: func(err *cloud.StreamError) {
			s.send(StreamErrorMsg{MessageID: id, Err: err})
		},
	}
}

// stop cancels the reply in flight, keeping what has arrived.
func (m Model) stop() (tea.Model, tea.Cmd) {
	if !m.state.Generating() {
		return m, nil
	}
	id := m.state.Pending
	partial, _ := m.streams.cancel()
	if partial == "" {
		if msg, ok := model.Find(m.state, id); ok {
			partial = msg.Content
		}
	}
	m.state = model.Cancel(m.state, id, partial)
	m = m.finishTurn()
	return m.setStatus("Stopped", false)
}

// finishTurn re-enables input and renders the final transcript.
func (m Model) finishTurn() Model {
	m.throttle.ticked()
	m.input.Focus()
	m.refreshViewport()
	return m
}

// =============================================================================
// SIDE EFFECTS
// =============================================================================

func (m Model) saveSettingsCmd(quiet bool) tea.Cmd {
	if m.store == nil {
		if quiet {
			return nil
		}
		return func() tea.Msg { return SettingsSavedMsg{Quiet: quiet} }
	}
	store := m.store
	settings := m.state.Settings
	if m.keyFromEnv {
		settings = settings.SetAPIKey(m.storedKey)
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return SettingsSavedMsg{Err: storage.SaveSettings(ctx, store, settings), Quiet: quiet}
	}
}

func (m Model) applyConfig(msg ConfigChangedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.log.Warn("config reload failed", "error", msg.Err)
		return m.setStatus("Config reload failed: "+msg.Err.Error(), true)
	}
	cfg := msg.Config
	if cfg.UI.Theme != m.cfg.UI.Theme {
		m.theme = styles.NewTheme(cfg.UI.Theme)
		m.spinner.Style = m.theme.Thinking
	}
	m.cfg = cfg
	m.throttle.setFPS(cfg.UI.RenderFPS)
	m.md.configure(m.theme.GlamourStyle(), wrapWidth(cfg, m.width))
	m.refreshViewport()
	m.log.Info("config reloaded", "base_url", cfg.API.BaseURL)
	return m.setStatus("Config reloaded", false)
}

// setStatus shows a notice in the status bar for statusTimeout.
func (m Model) setStatus(text string, isErr bool) (Model, tea.Cmd) {
	m.statusSeq++
	m.status = text
	m.statusErr = isErr
	seq := m.statusSeq
	return m, tea.Tick(statusTimeout, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

func (m Model) resize(width, height int) Model {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	vh := height - headerHeight - panelHeight - inputHeight - statusHeight
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = width
	m.viewport.Height = vh
	m.input.SetWidth(max(width-2, 10))
	m.md.configure(m.theme.GlamourStyle(), wrapWidth(m.cfg, width))
	m.ready = true
	m.refreshViewport()
	return m
}

// maxTokensLabel is the settings panel value for max tokens.
func maxTokensLabel(n int) string {
	return fmt.Sprintf("%d (%d-%d)", n, model.MinMaxTokens, model.MaxMaxTokens)
}
