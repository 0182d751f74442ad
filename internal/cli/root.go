// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jeranaias/openchat-tui/internal/cloud"
	"github.com/jeranaias/openchat-tui/internal/config"
	"github.com/jeranaias/openchat-tui/internal/logging"
	"github.com/jeranaias/openchat-tui/internal/model"
	"github.com/jeranaias/openchat-tui/internal/storage"
	"github.com/jeranaias/openchat-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// errNoAPIKey is returned by commands that call the API without a key.
var errNoAPIKey = errors.New("no API key: run 'openchat settings set-key' or set OPENROUTER_API_KEY")

// app is the state every command shares: global flags, the loaded config,
// the logger and the settings store, which is opened on first use.
type app struct {
	configPath string
	storePath  string
	model      string
	verbose    bool

	cfg      *config.Config
	log      *slog.Logger
	closeLog func() error
	store    *storage.Store

	// Set by sessionSettings when the environment key replaced the stored
	// one.
	keyFromEnv bool
	storedKey  string
}

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	a := &app{}
	defer a.close()
	return newRootCmd(a).ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "openchat",
		Short: "Chat with OpenRouter models in the terminal",
		Long: `openchat streams chat completions from OpenRouter (or any
OpenAI-compatible endpoint) into a terminal chat screen.

Run without arguments to open the chat screen. A key is asked for on
first start and kept in the local settings store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.openchat/config.toml)")
	flags.StringVar(&a.storePath, "store", "", "settings database (default ~/.openchat/openchat.db)")
	flags.StringVarP(&a.model, "model", "m", "", "model to use, added to the model list if missing")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newChatCmd(a),
		newAskCmd(a),
		newModelsCmd(a),
		newSettingsCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration and starts logging.
func (a *app) setup(cmd *cobra.Command) error {
	if a.configPath == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		a.configPath = p
	}

	cfg, err := config.LoadFromPath(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	config.SetGlobal(cfg)
	a.cfg = cfg

	closeLog, err := logging.Setup(logging.Options{
		Path:    cfg.Log.Path,
		Level:   cfg.Log.Level,
		Verbose: a.verbose,
	})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s logging disabled: %v\n", WarningStyle.Render("[!]"), err)
	}
	a.closeLog = closeLog
	a.log = slog.Default().With("cmd", cmd.CommandPath())
	a.log.Debug("config loaded", "path", a.configPath, "base_url", cfg.API.BaseURL)
	return nil
}

// close releases the store and the log file.
func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.log != nil {
			a.log.Warn("failed to close store", "error", err)
		}
		a.store = nil
	}
	if a.closeLog != nil {
		a.closeLog()
		a.closeLog = nil
	}
}

// openStore opens the settings store: --store, then storage.path from the
// config, then the default location.
func (a *app) openStore() (*storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	path := a.storePath
	if path == "" {
		path = a.cfg.Storage.Path
	}
	if path == "" {
		p, err := storage.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	s, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

// storedSettings returns the settings as persisted.
func (a *app) storedSettings(ctx context.Context) (model.Settings, *storage.Store, error) {
	store, err := a.openStore()
	if err != nil {
		return model.Settings{}, nil, err
	}
	s, err := storage.LoadSettings(ctx, store)
	if err != nil {
		return model.Settings{}, nil, err
	}
	return s, store, nil
}

// sessionSettings returns the stored settings with the environment API key
// and --model applied. The environment key is for this session only: saves
// write a.storedKey in its place.
func (a *app) sessionSettings(ctx context.Context) (model.Settings, error) {
	s, _, err := a.storedSettings(ctx)
	if err != nil {
		return s, err
	}
	a.storedKey = s.APIKey
	a.keyFromEnv = a.cfg.APIKey != ""
	if a.keyFromEnv {
		s = s.SetAPIKey(a.cfg.APIKey)
	}
	if a.model != "" {
		if next, ok := s.AddModel(a.model); ok {
			s = next
		} else {
			s, _ = s.SelectModel(a.model)
		}
	}
	return s, nil
}

// client returns an API client configured from the loaded config.
func (a *app) client(key string) *cloud.Client {
	return cloud.NewClient(key).
		WithBaseURL(a.cfg.API.BaseURL).
		WithTimeout(a.cfg.Timeout()).
		WithSiteURL(a.cfg.API.SiteURL).
		WithSiteName(a.cfg.API.SiteName).
		WithMaxFrameSize(a.cfg.API.MaxFrameBytes).
		WithLogger(a.log)
}

// runTUI opens the chat screen.
func (a *app) runTUI(cmd *cobra.Command) error {
	ctx := cmd.Context()
	settings, err := a.sessionSettings(ctx)
	if err != nil {
		return err
	}

	final, err := chat.Run(ctx, chat.Options{
		Config:       a.cfg,
		Store:        a.store,
		Settings:     settings,
		Logger:       a.log,
		ConfigPath:   a.configPath,
		KeyFromEnv:   a.keyFromEnv,
		StoredAPIKey: a.storedKey,
	})
	if err != nil {
		return fmt.Errorf("chat screen: %w", err)
	}
	a.log.Info("chat closed", "messages", len(final.Messages))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "openchat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}
