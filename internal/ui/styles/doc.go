// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the openchat terminal UI.
//
// Colors are lipgloss AdaptiveColor values so they follow the terminal
// background. The theme mode from config ("auto", "dark", "light") can pin
// the background instead:
//
//	theme := styles.NewTheme(cfg.UI.Theme)
//	header := theme.HeaderTitle.Render("OpenChat")
//
// Markdown rendering uses the glamour style returned by Theme.GlamourStyle.
package styles
