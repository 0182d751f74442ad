// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/openchat-tui/internal/cloud"
	"github.com/jeranaias/openchat-tui/internal/config"
	"github.com/jeranaias/openchat-tui/internal/export"
	"github.com/jeranaias/openchat-tui/internal/model"
	"github.com/jeranaias/openchat-tui/internal/storage"
	"github.com/jeranaias/openchat-tui/internal/stream"
	"github.com/jeranaias/openchat-tui/internal/util"
)

func newChatCmd(a *app) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the chat screen",
		Long: `Open the chat screen. With --plain, chat in a line-edited REPL
instead; type /help there for the slash commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if plain {
				return a.runREPL(cmd)
			}
			return a.runTUI(cmd)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "use a line-edited REPL instead of the chat screen")
	return cmd
}

// =============================================================================
// REPL SESSION
// =============================================================================

// repl is a plain-terminal chat session.
type repl struct {
	out    io.Writer
	client *cloud.Client
	store  storage.KV
	state  model.State

	// Saves write storedKey while the session key came from the
	// environment.
	keyFromEnv bool
	storedKey  string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (a *app) runREPL(cmd *cobra.Command) error {
	ctx := cmd.Context()
	settings, err := a.sessionSettings(ctx)
	if err != nil {
		return err
	}
	if !settings.HasAPIKey() {
		return errNoAPIKey
	}

	r := &repl{
		out:    cmd.OutOrStdout(),
		client: a.client(settings.APIKey),
		store:  a.store,
		state:  model.NewState(settings),

		keyFromEnv: a.keyFromEnv,
		storedKey:  a.storedKey,
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	history := historyPath()
	loadHistory(line, history)
	defer saveHistory(line, history)

	// Ctrl+C while a reply streams stops the reply; at the prompt liner
	// reports it as ErrPromptAborted instead.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
			r.stop()
		}
	}()

	fmt.Fprintf(r.out, "%s %s\n", TitleStyle.Render("openchat"),
		DimStyle.Render("model "+settings.SelectedModel+", /help for commands"))

	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				return err
			}
			fmt.Fprintln(r.out)
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			more, err := r.command(ctx, input)
			if err != nil {
				fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !more {
				return nil
			}
			continue
		}

		if err := r.send(ctx, input); err != nil {
			fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
	}
}

// send streams one turn to the terminal.
func (r *repl) send(ctx context.Context, input string) error {
	next, turn, ok := model.Submit(r.state, input)
	if !ok {
		return nil
	}
	r.state = next
	id := turn.AssistantID

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
	}()

	res, err := r.client.Complete(turnCtx, cloud.RequestFromTurn(turn), func(d stream.Delta, _ string) {
		io.WriteString(r.out, d.Content)
	})
	if res.Text != "" {
		fmt.Fprintln(r.out)
	}

	if err != nil {
		var se *cloud.StreamError
		if errors.As(err, &se) {
			r.state = model.Fail(r.state, id, se.Partial, se.Err)
			return se.Err
		}
		r.state = model.Fail(r.state, id, "", err)
		return err
	}
	if res.State == stream.StateCancelled {
		r.state = model.Cancel(r.state, id, res.Text)
		fmt.Fprintln(r.out, WarningStyle.Render("[Cancelled]"))
		return nil
	}
	r.state = model.Complete(r.state, id, res.Text, res.MessageStats())
	return nil
}

// stop cancels the reply in flight, if any.
func (r *repl) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const replHelp = `  /model [id]       show or select the model (adds unknown ids)
  /models           list models
  /system [text]    show or set the system prompt; "/system off" clears it
  /tokens [n]       show or set max tokens
  /clear            clear the conversation
  /save [format]    export the conversation (md, json, html)
  /quit             leave`

// command runs a slash command and reports whether the session goes on.
func (r *repl) command(ctx context.Context, input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	s := r.state.Settings

	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		return false, nil

	case "/help", "/?":
		fmt.Fprintln(r.out, replHelp)

	case "/model":
		if arg == "" {
			printField(r.out, "Model", s.SelectedModel)
			return true, nil
		}
		next, ok := s.SelectModel(arg)
		if !ok {
			next, ok = s.AddModel(arg)
		}
		if !ok {
			return true, fmt.Errorf("invalid model %q", arg)
		}
		return true, r.saveSettings(ctx, next, "Model: "+next.SelectedModel)

	case "/models":
		for _, m := range s.Models {
			marker := "  "
			if m == s.SelectedModel {
				marker = SuccessStyle.Render("* ")
			}
			fmt.Fprintln(r.out, marker+m)
		}

	case "/system":
		switch arg {
		case "":
			prompt := s.SystemPrompt
			if prompt == "" {
				prompt = "(none)"
			}
			printField(r.out, "System prompt", prompt)
			return true, nil
		case "off":
			arg = ""
		}
		return true, r.saveSettings(ctx, s.SetSystemPrompt(arg), "System prompt updated")

	case "/tokens":
		if arg == "" {
			printField(r.out, "Max tokens", strconv.Itoa(s.MaxTokens))
			return true, nil
		}
		n, err := strconv.Atoi(arg)
		if err != nil {
			return true, fmt.Errorf("max tokens must be a number, got %q", arg)
		}
		next := s.SetMaxTokens(n)
		return true, r.saveSettings(ctx, next, fmt.Sprintf("Max tokens: %d", next.MaxTokens))

	case "/clear":
		next, ok := model.ClearConversation(r.state)
		if !ok {
			return true, errors.New("a reply is still streaming")
		}
		r.state = next
		printOK(r.out, "Conversation cleared")

	case "/save":
		format, err := export.ParseFormat(arg)
		if err != nil {
			return true, err
		}
		path, err := export.ExportState(r.state, format, export.DefaultOptions())
		if err != nil {
			return true, err
		}
		printOK(r.out, "Saved to %s", path)

	default:
		return true, fmt.Errorf("unknown command %s, try /help", name)
	}
	return true, nil
}

// saveSettings applies s to the session and persists it.
func (r *repl) saveSettings(ctx context.Context, s model.Settings, notice string) error {
	r.state.Settings = s
	if r.keyFromEnv {
		s = s.SetAPIKey(r.storedKey)
	}
	if r.store != nil {
		if err := storage.SaveSettings(ctx, r.store, s); err != nil {
			return err
		}
	}
	printOK(r.out, "%s", notice)
	return nil
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

func historyPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chat_history")
}

func loadHistory(line *liner.State, path string) {
	if f, err := os.Open(path); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
}

// saveHistory persists the REPL history readable only by the owner.
func saveHistory(line *liner.State, path string) {
	var buf bytes.Buffer
	if _, err := line.WriteHistory(&buf); err != nil {
		return
	}
	util.AtomicWriteFile(path, buf.Bytes(), 0600)
}
