// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/openchat-tui/internal/cloud"
	"github.com/jeranaias/openchat-tui/internal/config"
	"github.com/jeranaias/openchat-tui/internal/model"
	"github.com/jeranaias/openchat-tui/internal/storage"
	"github.com/jeranaias/openchat-tui/internal/ui/styles"
)

// Options configures a chat screen.
type Options struct {
	// Config supplies the endpoint and UI settings. Nil uses defaults.
	Config *config.Config
	// Store persists settings. Nil keeps them in memory only.
	Store storage.KV
	// Settings is the initial state, usually from storage.LoadSettings.
	Settings model.Settings
	Logger   *slog.Logger
	// HTTPClient overrides the streaming HTTP client.
	HTTPClient *http.Client
	// Context bounds every stream. Nil uses context.Background.
	Context context.Context
	// ConfigPath is watched for edits while the screen runs. Empty disables
	// the watcher.
	ConfigPath string
	// KeyFromEnv marks Settings.APIKey as coming from the environment. Saves
	// then write StoredAPIKey in its place.
	KeyFromEnv   bool
	StoredAPIKey string
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen. All conversation
// state lives in state and changes only through the model package's pure
// update functions.
type Model struct {
	state model.State

	cfg        *config.Config
	store      storage.KV
	log        *slog.Logger
	httpClient *http.Client
	ctx        context.Context

	// Set while the session key came from the environment.
	keyFromEnv bool
	storedKey  string

	theme *styles.Theme
	keys  KeyMap

	width  int
	height int
	ready  bool

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model
	dialog   dialog

	// Shared across Bubble Tea's value copies.
	streams  *streamManager
	sender   *sender
	md       *markdownRenderer
	throttle *renderThrottle

	showHelp  bool
	status    string
	statusErr bool
	statusSeq int
}

// New creates a chat model. With no API key in opts.Settings the API key
// dialog opens first.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	theme := styles.NewTheme(cfg.UI.Theme)

	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Thinking

	m := Model{
		state:      model.NewState(opts.Settings),
		cfg:        cfg,
		store:      opts.Store,
		log:        log,
		httpClient: opts.HTTPClient,
		ctx:        ctx,
		keyFromEnv: opts.KeyFromEnv,
		storedKey:  opts.StoredAPIKey,
		theme:      theme,
		keys:       DefaultKeyMap(),
		viewport:   viewport.New(80, 20),
		input:      ta,
		spinner:    sp,
		help:       help.New(),
		streams:    newStreamManager(),
		sender:     &sender{},
		md:         newMarkdownRenderer(theme.GlamourStyle(), wrapWidth(cfg, 80)),
		throttle:   newRenderThrottle(cfg.UI.RenderFPS),
	}

	if !m.state.Settings.HasAPIKey() {
		m = m.openDialog(dialogAPIKey)
	}
	return m
}

// State returns the conversation state.
func (m Model) State() model.State {
	return m.state
}

// Bind connects stream callbacks to the running program. Call it with
// p.Send after tea.NewProgram.
func (m Model) Bind(send func(tea.Msg)) {
	m.sender.bind(send)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// client builds the API client for the current key and config.
func (m Model) client() *cloud.Client {
	c := cloud.NewClient(m.state.Settings.APIKey).
		WithBaseURL(m.cfg.API.BaseURL).
		WithTimeout(m.cfg.Timeout()).
		WithSiteURL(m.cfg.API.SiteURL).
		WithSiteName(m.cfg.API.SiteName).
		WithMaxFrameSize(m.cfg.API.MaxFrameBytes).
		WithLogger(m.log)
	if m.httpClient != nil {
		c = c.WithHTTPClient(m.httpClient)
	}
	return c
}

// wrapWidth is the markdown wrap width: the configured value, or the
// terminal-derived width when that is 0.
func wrapWidth(cfg *config.Config, termWidth int) int {
	if cfg.UI.WordWrap > 0 {
		return cfg.UI.WordWrap
	}
	return contentWidth(termWidth)
}
