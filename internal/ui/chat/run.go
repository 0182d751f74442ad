// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/openchat-tui/internal/config"
	"github.com/jeranaias/openchat-tui/internal/model"
)

// Run shows the chat screen until the user quits or ctx is cancelled and
// returns the final conversation state. Any reply still streaming is
// cancelled on exit.
func Run(ctx context.Context, opts Options) (model.State, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	opts.Context = ctx

	m := New(opts)

	progOpts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithMouseCellMotion()}
	if m.cfg.UI.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	p := tea.NewProgram(m, progOpts...)
	m.Bind(p.Send)

	if opts.ConfigPath != "" {
		err := config.Watch(ctx, opts.ConfigPath, 0, func(cfg *config.Config, err error) {
			p.Send(ConfigChangedMsg{Config: cfg, Err: err})
		})
		if err != nil {
			m.log.Warn("config watch disabled", "path", opts.ConfigPath, "error", err)
		}
	}

	final, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}
	fm, ok := final.(Model)
	if !ok {
		m.streams.cancel()
		return m.state, err
	}
	fm.streams.cancel()
	return fm.state, err
}
