// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jeranaias/openchat-tui/internal/model"
)

// Persisted setting keys.
const (
	KeyAPIKey        = "openrouter_api_key"
	KeyModels        = "openrouter_models"
	KeySelectedModel = "openrouter_selected_model"
	KeySystemPrompt  = "openrouter_system_prompt"
	KeyMaxTokens     = "openrouter_max_tokens"
)

// SettingKeys lists every key LoadSettings reads.
var SettingKeys = []string{KeyAPIKey, KeyModels, KeySelectedModel, KeySystemPrompt, KeyMaxTokens}

// LoadSettings reads settings from kv. Missing or unreadable values fall
// back to model.DefaultSettings; only storage failures are returned.
func LoadSettings(ctx context.Context, kv KV) (model.Settings, error) {
	s := model.DefaultSettings()

	get := func(key string) (string, bool, error) {
		v, err := kv.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return v, true, nil
	}

	if v, ok, err := get(KeyAPIKey); err != nil {
		return s, err
	} else if ok {
		s.APIKey = v
	}

	if v, ok, err := get(KeyModels); err != nil {
		return s, err
	} else if ok {
		var models []string
		if err := json.Unmarshal([]byte(v), &models); err != nil {
			slog.Warn("ignoring unreadable stored model list", "key", KeyModels, "error", err)
		} else {
			s.Models = models
		}
	}

	if v, ok, err := get(KeySelectedModel); err != nil {
		return s, err
	} else if ok && v != "" {
		s.SelectedModel = v
	}

	if v, ok, err := get(KeySystemPrompt); err != nil {
		return s, err
	} else if ok {
		s.SystemPrompt = v
	}

	if v, ok, err := get(KeyMaxTokens); err != nil {
		return s, err
	} else if ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.MaxTokens = n
		} else {
			slog.Warn("ignoring unreadable stored max tokens", "value", v)
		}
	}

	return s.Normalize(), nil
}

// SaveSettings writes every setting in one transaction. An empty API key
// removes the stored key.
func SaveSettings(ctx context.Context, kv KV, s model.Settings) error {
	s = s.Normalize()

	models, err := json.Marshal(s.Models)
	if err != nil {
		return fmt.Errorf("encode models: %w", err)
	}

	values := map[string]string{
		KeyModels:        string(models),
		KeySelectedModel: s.SelectedModel,
		KeySystemPrompt:  s.SystemPrompt,
		KeyMaxTokens:     strconv.Itoa(s.MaxTokens),
	}
	if s.APIKey != "" {
		values[KeyAPIKey] = s.APIKey
	}
	if err := kv.SetMany(ctx, values); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if s.APIKey == "" {
		return kv.Delete(ctx, KeyAPIKey)
	}
	return nil
}

// ResetSettings removes every stored setting.
func ResetSettings(ctx context.Context, kv KV) error {
	return kv.Delete(ctx, SettingKeys...)
}
