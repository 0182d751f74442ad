// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage is the local settings store for openchat.
//
// Settings live in a flat string key-value table in a SQLite file, one row
// per setting, using the same key names as the browser edition's local
// storage.
//
// # Key Types
//
//   - Store: SQLite-backed key-value store
//   - KV: the interface LoadSettings and SaveSettings depend on
//
// # Usage
//
//	store, err := storage.Open(path)
//	settings, err := storage.LoadSettings(ctx, store)
//	settings, _ = settings.AddModel("openai/gpt-4o")
//	err = storage.SaveSettings(ctx, store, settings)
//
// # Storage Location
//
// The database defaults to ~/.openchat/openchat.db and is created with
// 0600 permissions because it holds the API key.
package storage
