// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme holds the styled components of the chat screen.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderModel lipgloss.Style
	HeaderMuted lipgloss.Style

	// Settings panel
	Panel      lipgloss.Style
	PanelLabel lipgloss.Style
	PanelValue lipgloss.Style

	// Messages
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	ErrorLabel     lipgloss.Style
	UserText       lipgloss.Style
	ErrorText      lipgloss.Style
	Stats          lipgloss.Style
	Cursor         lipgloss.Style
	Thinking       lipgloss.Style

	// Input area
	InputContainer lipgloss.Style
	InputDisabled  lipgloss.Style

	// Status bar
	StatusBar   lipgloss.Style
	StatusKey   lipgloss.Style
	StatusDesc  lipgloss.Style
	StatusError lipgloss.Style
	StatusInfo  lipgloss.Style

	// Modal dialogs (API key, add model, system prompt)
	Modal      lipgloss.Style
	ModalTitle lipgloss.Style
	ModalHint  lipgloss.Style
}

// NewTheme creates a theme for mode ("auto", "dark" or "light"). A forced
// mode overrides lipgloss's background detection so adaptive colors agree.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(mode) {
	case ThemeDark:
		isDark = true
		lipgloss.SetHasDarkBackground(true)
	case ThemeLight:
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.HeaderModel = lipgloss.NewStyle().Foreground(Purple)
	t.HeaderMuted = lipgloss.NewStyle().Foreground(TextMuted)

	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.PanelLabel = lipgloss.NewStyle().Foreground(TextSecondary)
	t.PanelValue = lipgloss.NewStyle().Foreground(TextPrimary).Bold(true)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.SystemLabel = lipgloss.NewStyle().Bold(true).Foreground(Amber)
	t.ErrorLabel = lipgloss.NewStyle().Bold(true).Foreground(Rose)
	t.UserText = lipgloss.NewStyle().Foreground(TextPrimary).PaddingLeft(2)
	t.ErrorText = lipgloss.NewStyle().Foreground(Rose).PaddingLeft(2)
	t.Stats = lipgloss.NewStyle().Foreground(TextMuted).Italic(true).PaddingLeft(2)
	t.Cursor = lipgloss.NewStyle().Foreground(Purple)
	t.Thinking = lipgloss.NewStyle().Foreground(TextMuted).Italic(true).PaddingLeft(2)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Cyan)
	t.InputDisabled = t.InputContainer.BorderForeground(Overlay)

	t.StatusBar = lipgloss.NewStyle().Foreground(TextSecondary).Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.StatusDesc = lipgloss.NewStyle().Foreground(TextMuted)
	t.StatusError = lipgloss.NewStyle().Foreground(Rose)
	t.StatusInfo = lipgloss.NewStyle().Foreground(Emerald)

	t.Modal = lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(Purple).
		Padding(1, 2)
	t.ModalTitle = lipgloss.NewStyle().Bold(true).Foreground(Purple).MarginBottom(1)
	t.ModalHint = lipgloss.NewStyle().Foreground(TextMuted).MarginTop(1)
}

// GlamourStyle returns the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return ThemeDark
	}
	return ThemeLight
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
