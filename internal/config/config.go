// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/openchat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete openchat configuration. User chat preferences
// (models, system prompt, API key) live in the settings store, not here.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	UI      UIConfig      `toml:"ui"`
	Log     LogConfig     `toml:"log"`

	// APIKey comes only from the environment and is never written to disk.
	APIKey string `toml:"-"`
}

// APIConfig configures the completions endpoint.
type APIConfig struct {
	// BaseURL is the OpenAI-compatible API root.
	BaseURL string `toml:"base_url"`
	// TimeoutSeconds bounds connection setup and non-streaming calls.
	TimeoutSeconds int `toml:"timeout_seconds"`
	// SiteURL and SiteName are sent as OpenRouter attribution headers.
	SiteURL  string `toml:"site_url"`
	SiteName string `toml:"site_name"`
	// MaxFrameBytes is the longest single stream line accepted.
	MaxFrameBytes int `toml:"max_frame_bytes"`
}

// StorageConfig locates the settings database.
type StorageConfig struct {
	Path string `toml:"path"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme"`
	// WordWrap is the markdown wrap width; 0 follows the terminal.
	WordWrap int `toml:"word_wrap"`
	// RenderFPS caps markdown re-rendering while streaming.
	RenderFPS int `toml:"render_fps"`
	// AltScreen runs the chat screen in the alternate buffer.
	AltScreen bool `toml:"alt_screen"`
}

// LogConfig controls the log file.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`
	// Path is the log file; empty selects ~/.openchat/openchat.log.
	Path string `toml:"path"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "https://openrouter.ai/api/v1",
			TimeoutSeconds: 60,
			SiteURL:        "https://github.com/jeranaias/openchat-tui",
			SiteName:       "OpenChat",
			MaxFrameBytes:  1 << 20,
		},
		UI: UIConfig{
			Theme:     "auto",
			RenderFPS: 20,
			AltScreen: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Timeout returns the API timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the openchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".openchat"), nil
}

// ConfigPath returns the config file path, honouring OPENCHAT_CONFIG.
func ConfigPath() (string, error) {
	if p := os.Getenv("OPENCHAT_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads the configuration from ConfigPath.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from path. A missing file yields the
// defaults. Environment overrides are applied last, then the result is
// validated.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TOML file: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config: %w", statErr)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to ConfigPath.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# openchat configuration file\n")
	buf.WriteString("# Chat settings (models, system prompt, API key) are kept in the settings store.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL %q, must be http(s)://host[/path]", c.API.BaseURL),
		})
	}
	if c.API.TimeoutSeconds < 1 || c.API.TimeoutSeconds > 3600 {
		errs = append(errs, ValidationError{
			Field:   "api.timeout_seconds",
			Message: fmt.Sprintf("must be between 1 and 3600, got %d", c.API.TimeoutSeconds),
		})
	}
	if c.API.MaxFrameBytes < 1024 {
		errs = append(errs, ValidationError{
			Field:   "api.max_frame_bytes",
			Message: fmt.Sprintf("must be at least 1024, got %d", c.API.MaxFrameBytes),
		})
	}

	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}
	if c.UI.WordWrap < 0 {
		errs = append(errs, ValidationError{Field: "ui.word_wrap", Message: "must not be negative"})
	}
	if c.UI.RenderFPS < 1 || c.UI.RenderFPS > 120 {
		errs = append(errs, ValidationError{
			Field:   "ui.render_fps",
			Message: fmt.Sprintf("must be between 1 and 120, got %d", c.UI.RenderFPS),
		})
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values left by a partial config file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	c.API.BaseURL = strings.TrimSuffix(c.API.BaseURL, "/")
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = d.API.TimeoutSeconds
	}
	if c.API.MaxFrameBytes == 0 {
		c.API.MaxFrameBytes = d.API.MaxFrameBytes
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.RenderFPS == 0 {
		c.UI.RenderFPS = d.UI.RenderFPS
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - OPENCHAT_BASE_URL: overrides api.base_url
//   - OPENCHAT_API_KEY, OPENROUTER_API_KEY: session API key (first wins)
//   - OPENCHAT_STORE: overrides storage.path
//   - OPENCHAT_LOG_LEVEL: overrides log.level
//   - OPENCHAT_THEME: overrides ui.theme
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("OPENCHAT_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("OPENCHAT_API_KEY"); v != "" {
		c.APIKey = v
	} else if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("OPENCHAT_STORE"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("OPENCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("OPENCHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// field binds a dot-notation key to a config value.
type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringField(p func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, v string) error { *p(c) = v; return nil },
	}
}

func intField(p func(c *Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("expected an integer, got %q", v)
			}
			*p(c) = n
			return nil
		},
	}
}

func boolField(p func(c *Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*p(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("expected true or false, got %q", v)
			}
			*p(c) = b
			return nil
		},
	}
}

var fields = map[string]field{
	"api.base_url":        stringField(func(c *Config) *string { return &c.API.BaseURL }),
	"api.timeout_seconds": intField(func(c *Config) *int { return &c.API.TimeoutSeconds }),
	"api.site_url":        stringField(func(c *Config) *string { return &c.API.SiteURL }),
	"api.site_name":       stringField(func(c *Config) *string { return &c.API.SiteName }),
	"api.max_frame_bytes": intField(func(c *Config) *int { return &c.API.MaxFrameBytes }),
	"storage.path":        stringField(func(c *Config) *string { return &c.Storage.Path }),
	"ui.theme":            stringField(func(c *Config) *string { return &c.UI.Theme }),
	"ui.word_wrap":        intField(func(c *Config) *int { return &c.UI.WordWrap }),
	"ui.render_fps":       intField(func(c *Config) *int { return &c.UI.RenderFPS }),
	"ui.alt_screen":       boolField(func(c *Config) *bool { return &c.UI.AltScreen }),
	"log.level":           stringField(func(c *Config) *string { return &c.Log.Level }),
	"log.path":            stringField(func(c *Config) *string { return &c.Log.Path }),
}

// Keys returns every settable key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value at key as a string (e.g. "ui.theme").
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return "", fmt.Errorf("unknown field: %s", key)
	}
	return f.get(c), nil
}

// Set parses value into the field at key and re-validates.
func (c *Config) Set(key, value string) error {
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("unknown field: %s", key)
	}
	next := c.Clone()
	if err := f.set(next, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	next.SetDefaults()
	if err := next.Validate(); err != nil {
		return err
	}
	*c = *next
	return nil
}

// Clone returns a copy of c.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access. Load errors fall back to defaults.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
			cfg.ApplyEnvOverrides()
			cfg.SetDefaults()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
