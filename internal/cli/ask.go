// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/openchat-tui/internal/cloud"
	"github.com/jeranaias/openchat-tui/internal/model"
	"github.com/jeranaias/openchat-tui/internal/stream"
)

// askResult is the data of an ask --json response.
type askResult struct {
	Model        string `json:"model"`
	Content      string `json:"content"`
	State        string `json:"state"`
	FinishReason string `json:"finish_reason,omitempty"`
	Chunks       int    `json:"chunks"`
	DurationMs   int64  `json:"duration_ms"`
}

func newAskCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a single question and stream the answer",
		Long: `Ask a single question and stream the answer to stdout.

The question is read from stdin when no arguments are given. On a terminal
the answer is rendered as markdown once complete; otherwise deltas are
written as they arrive. Ctrl+C stops the answer and keeps what arrived.`,
		Example: `  openchat ask "What is the capital of France?"
  git diff | openchat ask -m openai/gpt-4o
  openchat ask --json "Say hi"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := readQuestion(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.ask(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), question, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// readQuestion joins args, or reads stdin when there are none and it is
// not a terminal.
func readQuestion(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if isTerminal(in) {
		return "", errors.New("no question given")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read question: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("no question given")
	}
	return string(data), nil
}

func (a *app) ask(ctx context.Context, out, errOut io.Writer, question string, asJSON bool) error {
	settings, err := a.sessionSettings(ctx)
	if err != nil {
		return err
	}
	if !settings.HasAPIKey() {
		return errNoAPIKey
	}

	_, turn, ok := model.Submit(model.NewState(settings), question)
	if !ok {
		return errors.New("no question given")
	}

	render := !asJSON && isTerminal(out)
	var onDelta stream.DeltaFunc
	switch {
	case asJSON:
	case render:
		fmt.Fprint(errOut, DimStyle.Render("Thinking...")+"\r")
	default:
		onDelta = func(d stream.Delta, _ string) {
			io.WriteString(out, d.Content)
		}
	}

	res, err := a.client(settings.APIKey).Complete(ctx, cloud.RequestFromTurn(turn), onDelta)
	if render {
		fmt.Fprint(errOut, "\r\033[K")
	}

	if asJSON {
		data := askResult{
			Model:        turn.Model,
			Content:      res.Text,
			State:        res.State.String(),
			FinishReason: res.Stats.FinishReason,
			Chunks:       res.Stats.Deltas,
			DurationMs:   res.Stats.TotalTime.Milliseconds(),
		}
		if res.Stats.Model != "" {
			data.Model = res.Stats.Model
		}
		if err != nil {
			NewJSONErrorResponse("ask", data, err).Print(out)
			return err
		}
		return NewJSONResponse("ask", data).Print(out)
	}

	if render {
		fmt.Fprintln(out, renderMarkdown(res.Text, terminalWidth(out)))
	} else if res.Text != "" && !strings.HasSuffix(res.Text, "\n") {
		fmt.Fprintln(out)
	}

	if err != nil {
		return err
	}
	if res.State == stream.StateCancelled {
		fmt.Fprintln(errOut, WarningStyle.Render("[Cancelled]"))
	}
	return nil
}

// renderMarkdown renders text with glamour, falling back to the raw text.
func renderMarkdown(text string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
