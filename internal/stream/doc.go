// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream turns a chunked chat-completions response body into a
// running transcript.
//
// The pipeline has three stages, each usable on its own:
//
//   - FrameSplitter: raw byte chunks -> newline-delimited frames
//   - DecodeFrame: one frame -> Delta, ErrDone, or a skippable error
//   - Accumulator: deltas -> transcript with a terminal state
//
// Assemble drives all three over an io.Reader:
//
//	acc := stream.NewAccumulator()
//	err := stream.Assemble(ctx, resp.Body, acc, func(d stream.Delta, text string) {
//	    fmt.Print(d.Content)
//	})
//
// # States
//
// An Accumulator starts in StateStreaming and moves exactly once to
// StateCompleted, StateCancelled or StateFailed. Appends after that point
// are ignored, so a late chunk racing a cancellation can never change a
// frozen transcript.
package stream
