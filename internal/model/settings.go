// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"slices"
	"strings"
)

// Settings defaults and limits.
const (
	DefaultModel     = "deepseek-ai/deepseek-llm-r1-chat"
	DefaultMaxTokens = 2048
	MinMaxTokens     = 512
	MaxMaxTokens     = 4096
	MaxTokensStep    = 128
)

// Settings are the user's persisted chat preferences.
type Settings struct {
	APIKey        string   `json:"-"`
	Models        []string `json:"models"`
	SelectedModel string   `json:"selected_model"`
	SystemPrompt  string   `json:"system_prompt"`
	MaxTokens     int      `json:"max_tokens"`
}

// DefaultSettings returns the settings of a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Models:        []string{DefaultModel},
		SelectedModel: DefaultModel,
		MaxTokens:     DefaultMaxTokens,
	}
}

// HasAPIKey reports whether a key is set.
func (s Settings) HasAPIKey() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// Normalize trims and de-duplicates the model list, fills defaults and
// clamps MaxTokens.
func (s Settings) Normalize() Settings {
	s.APIKey = strings.TrimSpace(s.APIKey)

	models := make([]string, 0, len(s.Models))
	for _, m := range s.Models {
		m = strings.TrimSpace(m)
		if m != "" && !slices.Contains(models, m) {
			models = append(models, m)
		}
	}
	if len(models) == 0 {
		models = []string{DefaultModel}
	}
	s.Models = models

	s.SelectedModel = strings.TrimSpace(s.SelectedModel)
	if s.SelectedModel == "" {
		s.SelectedModel = s.Models[0]
	}

	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	s.MaxTokens = clampTokens(s.MaxTokens)
	return s
}

// AddModel appends id to the model list and selects it. Blank or duplicate
// ids leave the settings unchanged and report false.
func (s Settings) AddModel(id string) (Settings, bool) {
	id = strings.TrimSpace(id)
	if id == "" || slices.Contains(s.Models, id) {
		return s, false
	}
	s.Models = append(slices.Clone(s.Models), id)
	s.SelectedModel = id
	return s, true
}

// RemoveModel drops id from the list. The last model cannot be removed.
// If id was selected, the first remaining model is selected.
func (s Settings) RemoveModel(id string) (Settings, bool) {
	i := slices.Index(s.Models, id)
	if i < 0 || len(s.Models) == 1 {
		return s, false
	}
	s.Models = slices.Delete(slices.Clone(s.Models), i, i+1)
	if s.SelectedModel == id {
		s.SelectedModel = s.Models[0]
	}
	return s, true
}

// SelectModel selects id if it is in the model list.
func (s Settings) SelectModel(id string) (Settings, bool) {
	id = strings.TrimSpace(id)
	if !slices.Contains(s.Models, id) {
		return s, false
	}
	s.SelectedModel = id
	return s, true
}

// CycleModel moves the selection by step positions, wrapping around.
func (s Settings) CycleModel(step int) Settings {
	if len(s.Models) == 0 {
		return s
	}
	i := slices.Index(s.Models, s.SelectedModel)
	if i < 0 {
		i = 0
	} else {
		n := len(s.Models)
		i = ((i+step)%n + n) % n
	}
	s.SelectedModel = s.Models[i]
	return s
}

// SetMaxTokens clamps n to the allowed range.
func (s Settings) SetMaxTokens(n int) Settings {
	s.MaxTokens = clampTokens(n)
	return s
}

// StepMaxTokens moves MaxTokens by steps increments of MaxTokensStep,
// snapping to the step grid.
func (s Settings) StepMaxTokens(steps int) Settings {
	n := (s.MaxTokens/MaxTokensStep + steps) * MaxTokensStep
	s.MaxTokens = clampTokens(n)
	return s
}

// SetSystemPrompt replaces the system prompt.
func (s Settings) SetSystemPrompt(prompt string) Settings {
	s.SystemPrompt = strings.TrimSpace(prompt)
	return s
}

// SetAPIKey replaces the API key.
func (s Settings) SetAPIKey(key string) Settings {
	s.APIKey = strings.TrimSpace(key)
	return s
}

func clampTokens(n int) int {
	return min(max(n, MinMaxTokens), MaxMaxTokens)
}
