// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/openchat-tui/internal/model"
	"github.com/jeranaias/openchat-tui/internal/storage"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage the model list",
	}
	cmd.AddCommand(
		newModelsListCmd(a),
		newModelsEditCmd(a, "add <id>", "Add a model and select it", "added",
			func(s model.Settings, id string) (model.Settings, bool) { return s.AddModel(id) }),
		newModelsEditCmd(a, "remove <id>", "Remove a model", "removed",
			func(s model.Settings, id string) (model.Settings, bool) { return s.RemoveModel(id) }),
		newModelsEditCmd(a, "select <id>", "Select the model used for new turns", "selected",
			func(s model.Settings, id string) (model.Settings, bool) { return s.SelectModel(id) }),
		newModelsRemoteCmd(a),
	)
	return cmd
}

func newModelsListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured models",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := a.storedSettings(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return NewJSONResponse("models list", map[string]any{
					"models":   s.Models,
					"selected": s.SelectedModel,
				}).Print(out)
			}
			for _, m := range s.Models {
				if m == s.SelectedModel {
					fmt.Fprintln(out, SuccessStyle.Render("* ")+m)
				} else {
					fmt.Fprintln(out, "  "+m)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// newModelsEditCmd builds a subcommand that applies one settings update
// to the model list and saves it.
func newModelsEditCmd(a *app, use, short, verb string, apply func(model.Settings, string) (model.Settings, bool)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, store, err := a.storedSettings(ctx)
			if err != nil {
				return err
			}
			next, ok := apply(s, args[0])
			if !ok {
				return modelEditError(verb, args[0], s)
			}
			if err := storage.SaveSettings(ctx, store, next); err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "Model %s %s (selected: %s)", args[0], verb, next.SelectedModel)
			return nil
		},
	}
}

func modelEditError(verb, id string, s model.Settings) error {
	switch verb {
	case "added":
		return fmt.Errorf("model %q is empty or already in the list", id)
	case "removed":
		if len(s.Models) == 1 {
			return fmt.Errorf("cannot remove %q: it is the last model", id)
		}
	}
	return fmt.Errorf("model %q is not in the list", id)
}

func newModelsRemoteCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "remote [filter]",
		Short: "List the models the provider offers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.sessionSettings(ctx)
			if err != nil {
				return err
			}
			if !s.HasAPIKey() {
				return errNoAPIKey
			}
			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}

			models, err := a.client(s.APIKey).ListModels(ctx, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return NewJSONResponse("models remote", models).Print(out)
			}
			for _, m := range models {
				line := m.ID
				if m.Created > 0 {
					line += DimStyle.Render("  " + time.Unix(m.Created, 0).UTC().Format("2006-01-02"))
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, DimStyle.Render(fmt.Sprintf("%d models", len(models))))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
