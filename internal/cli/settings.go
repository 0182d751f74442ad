// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/openchat-tui/internal/cloud"
	"github.com/jeranaias/openchat-tui/internal/storage"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change stored chat settings",
	}
	cmd.AddCommand(
		newSettingsShowCmd(a),
		newSettingsSetKeyCmd(a),
		newSettingsSystemCmd(a),
		newSettingsMaxTokensCmd(a),
		newSettingsResetCmd(a),
	)
	return cmd
}

func newSettingsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, store, err := a.storedSettings(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			key := cloud.MaskKey(s.APIKey)
			if s.APIKey == "" && a.cfg.APIKey != "" {
				key = cloud.MaskKey(a.cfg.APIKey) + " (environment)"
			}
			prompt := s.SystemPrompt
			if prompt == "" {
				prompt = "(none)"
			}
			fmt.Fprintln(out, TitleStyle.Render("Settings"))
			printField(out, "API key", key)
			printField(out, "Model", s.SelectedModel)
			printField(out, "Models", strings.Join(s.Models, ", "))
			printField(out, "Max tokens", strconv.Itoa(s.MaxTokens))
			printField(out, "System prompt", prompt)
			printField(out, "Store", store.Path())
			return nil
		},
	}
}

func newSettingsSetKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-key [key]",
		Short: "Store the OpenRouter API key",
		Long: `Store the OpenRouter API key. Without an argument the key is read
from the terminal without echo, or from stdin when piped. An empty key
removes the stored one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				var err error
				key, err = readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "API key: ")
				if err != nil {
					return err
				}
			}
			key = strings.TrimSpace(key)

			s, store, err := a.storedSettings(ctx)
			if err != nil {
				return err
			}
			if err := storage.SaveSettings(ctx, store, s.SetAPIKey(key)); err != nil {
				return err
			}
			if key == "" {
				printOK(cmd.OutOrStdout(), "API key removed")
			} else {
				printOK(cmd.OutOrStdout(), "API key saved (%s)", cloud.MaskKey(key))
			}
			return nil
		},
	}
}

// readSecret reads one line from in, without echo when in is a terminal.
func readSecret(in io.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return line, nil
}

func newSettingsSystemCmd(a *app) *cobra.Command {
	var clearPrompt bool
	cmd := &cobra.Command{
		Use:   "system [prompt...]",
		Short: "Show or set the system prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, store, err := a.storedSettings(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 0 && !clearPrompt {
				if s.SystemPrompt == "" {
					fmt.Fprintln(out, DimStyle.Render("(none)"))
				} else {
					fmt.Fprintln(out, s.SystemPrompt)
				}
				return nil
			}

			prompt := strings.Join(args, " ")
			if clearPrompt {
				prompt = ""
			}
			if err := storage.SaveSettings(ctx, store, s.SetSystemPrompt(prompt)); err != nil {
				return err
			}
			if prompt == "" {
				printOK(out, "System prompt cleared")
			} else {
				printOK(out, "System prompt saved")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearPrompt, "clear", false, "remove the system prompt")
	return cmd
}

func newSettingsMaxTokensCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "max-tokens [n]",
		Short: "Show or set the reply length limit",
		Long:  "Show or set the reply length limit. Values are clamped to 512..4096.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, store, err := a.storedSettings(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				fmt.Fprintln(out, s.MaxTokens)
				return nil
			}
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("max tokens must be a number, got %q", args[0])
			}
			next := s.SetMaxTokens(n)
			if err := storage.SaveSettings(ctx, store, next); err != nil {
				return err
			}
			printOK(out, "Max tokens: %d", next.MaxTokens)
			return nil
		},
	}
}

func newSettingsResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored setting, including the API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !yes {
				fmt.Fprint(out, "Reset all settings? [y/N] ")
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if ans := strings.ToLower(strings.TrimSpace(answer)); ans != "y" && ans != "yes" {
					fmt.Fprintln(out, "Aborted")
					return nil
				}
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if err := storage.ResetSettings(cmd.Context(), store); err != nil {
				return err
			}
			printOK(out, "Settings reset")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
