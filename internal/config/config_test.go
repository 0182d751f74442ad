// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// clearEnv unsets every variable ApplyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENCHAT_CONFIG", "OPENCHAT_BASE_URL", "OPENCHAT_API_KEY", "OPENROUTER_API_KEY",
		"OPENCHAT_STORE", "OPENCHAT_LOG_LEVEL", "OPENCHAT_THEME",
	} {
		t.Setenv(k, "")
	}
}

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.API.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Timeout() != 60*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout())
	}
}

func TestLoadFromPath_PartialFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[api]\nbase_url = \"http://localhost:8080/v1/\"\n\n[ui]\ntheme = \"light\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.API.BaseURL)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("Theme = %q", cfg.UI.Theme)
	}
	if cfg.UI.RenderFPS != 20 {
		t.Errorf("RenderFPS = %d, want default 20", cfg.UI.RenderFPS)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[ui]\ntheme = \"neon\"\nrender_fps = 500\n"), 0600)

	_, err := LoadFromPath(path)
	var verrs ValidateErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("err = %v, want ValidateErrors", err)
	}
	if len(verrs) != 2 {
		t.Errorf("got %d validation errors, want 2: %v", len(verrs), verrs)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENCHAT_BASE_URL", "https://example.test/api")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-env")
	t.Setenv("OPENCHAT_LOG_LEVEL", "debug")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.API.BaseURL != "https://example.test/api" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.APIKey != "sk-or-env" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}

	t.Setenv("OPENCHAT_API_KEY", "sk-or-preferred")
	cfg.ApplyEnvOverrides()
	if cfg.APIKey != "sk-or-preferred" {
		t.Errorf("OPENCHAT_API_KEY should win, got %q", cfg.APIKey)
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	cfg := Default()
	cfg.APIKey = "sk-or-secret"
	cfg.UI.WordWrap = 100
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-or-secret") {
		t.Error("API key written to config file")
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.UI.WordWrap != 100 {
		t.Errorf("WordWrap = %d", loaded.UI.WordWrap)
	}
}

// =============================================================================
// GET/SET TESTS
// =============================================================================

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("ui.render_fps", "30"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := cfg.Get("ui.render_fps"); v != "30" {
		t.Errorf("Get = %q", v)
	}
	if err := cfg.Set("UI.Alt_Screen", "false"); err != nil || cfg.UI.AltScreen {
		t.Errorf("Set bool: err=%v alt=%v", err, cfg.UI.AltScreen)
	}

	if err := cfg.Set("ui.render_fps", "fast"); err == nil {
		t.Error("expected parse error")
	}
	if err := cfg.Set("ui.theme", "neon"); err == nil {
		t.Error("expected validation error")
	}
	if cfg.UI.Theme != "auto" {
		t.Errorf("failed Set modified config: theme = %q", cfg.UI.Theme)
	}
	if _, err := cfg.Get("routing.mode"); err == nil {
		t.Error("expected unknown field error")
	}
	if len(Keys()) != len(fields) {
		t.Error("Keys() incomplete")
	}
}

// =============================================================================
// WATCH TESTS
// =============================================================================

func TestWatch_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	err := Watch(ctx, path, 20*time.Millisecond, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	next := Default()
	next.UI.Theme = "dark"
	if err := SaveTOML(next, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changes:
		if cfg.UI.Theme != "dark" {
			t.Errorf("reloaded theme = %q", cfg.UI.Theme)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
}

// =============================================================================
// CONCURRENT ACCESS TESTS
// =============================================================================

// TestConfig_ConcurrentAccess checks Global and SetGlobal under -race.
func TestConfig_ConcurrentAccess(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENCHAT_CONFIG", filepath.Join(t.TempDir(), "config.toml"))
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := Default()
			c.UI.Theme = "dark"
			SetGlobal(c)
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestConfig_ConcurrentReload(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENCHAT_CONFIG", filepath.Join(t.TempDir(), "config.toml"))
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()
	_ = Global()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ReloadGlobal(); err != nil {
				t.Errorf("ReloadGlobal: %v", err)
			}
		}()
	}
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
