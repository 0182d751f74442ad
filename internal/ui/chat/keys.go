// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings of the chat screen.
type KeyMap struct {
	Send         key.Binding
	Newline      key.Binding
	Stop         key.Binding
	Quit         key.Binding
	SaveSettings key.Binding
	AddModel     key.Binding
	RemoveModel  key.Binding
	CycleModel   key.Binding
	SystemPrompt key.Binding
	APIKey       key.Binding
	TokensUp     key.Binding
	TokensDown   key.Binding
	Copy         key.Binding
	Export       key.Binding
	Clear        key.Binding
	PageUp       key.Binding
	PageDown     key.Binding
	Help         key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("alt+enter", "newline"),
		),
		Stop: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		SaveSettings: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "save settings"),
		),
		AddModel: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "add model"),
		),
		RemoveModel: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "remove model"),
		),
		CycleModel: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next model"),
		),
		SystemPrompt: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "system prompt"),
		),
		APIKey: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("C-k", "api key"),
		),
		TokensUp: key.NewBinding(
			key.WithKeys("alt+up"),
			key.WithHelp("M-up", "max tokens +"),
		),
		TokensDown: key.NewBinding(
			key.WithKeys("alt+down"),
			key.WithHelp("M-down", "max tokens -"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "copy reply"),
		),
		Export: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "export"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "clear chat"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Stop, k.CycleModel, k.AddModel, k.SystemPrompt, k.Help, k.Quit}
}

// FullHelp returns every binding, grouped for the help overlay.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Newline, k.Stop, k.Clear, k.Quit},
		{k.CycleModel, k.AddModel, k.RemoveModel, k.SystemPrompt, k.APIKey},
		{k.TokensUp, k.TokensDown, k.SaveSettings, k.Copy, k.Export},
		{k.PageUp, k.PageDown, k.Help},
	}
}

// helpLine renders bindings as "key desc" pairs.
func helpLine(bindings []key.Binding, keyStyle, descStyle func(...string) string) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, keyStyle(h.Key)+" "+descStyle(h.Desc))
	}
	return strings.Join(parts, "  ")
}
