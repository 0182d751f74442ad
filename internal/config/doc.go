// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for openchat.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (OPENCHAT_*, and OPENROUTER_API_KEY)
//   - ~/.openchat/config.toml (or $OPENCHAT_CONFIG)
//   - Built-in defaults
//
// A .env file in the working directory is loaded into the environment by
// main before any of this runs.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := cloud.NewClient(key).WithBaseURL(cfg.API.BaseURL)
//
// Follow edits while the chat screen is open:
//
//	err := config.Watch(ctx, path, 0, func(cfg *config.Config, err error) { ... })
package config
