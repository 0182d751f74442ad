// openchat - stream OpenRouter chat completions in the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/jeranaias/openchat-tui/internal/cli"
	"github.com/jeranaias/openchat-tui/internal/ui/styles"
)

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, styles.RenderError("Error: "+err.Error()))
		os.Exit(1)
	}
}
