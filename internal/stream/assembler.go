// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// DefaultChunkSize is the read buffer used for each body read.
const DefaultChunkSize = 4096

// DeltaFunc receives each non-empty delta together with the transcript it
// produced. It runs on the reading goroutine; the next chunk is not read
// until it returns.
type DeltaFunc func(d Delta, transcript string)

// Option configures Assemble.
type Option func(*assembler)

// WithMaxFrameSize sets the longest line accepted before the stream fails.
func WithMaxFrameSize(n int) Option {
	return func(a *assembler) { a.maxFrame = n }
}

// WithChunkSize sets the read buffer size.
func WithChunkSize(n int) Option {
	return func(a *assembler) {
		if n > 0 {
			a.chunkSize = n
		}
	}
}

// WithLogger sets the logger used for skipped frames.
func WithLogger(l *slog.Logger) Option {
	return func(a *assembler) {
		if l != nil {
			a.log = l
		}
	}
}

type assembler struct {
	acc       *Accumulator
	onDelta   DeltaFunc
	maxFrame  int
	chunkSize int
	log       *slog.Logger
	skipped   int
}

// Assemble reads body until the sentinel, EOF, cancellation or a transport
// error, feeding every delta into acc.
//
// The body is always closed before Assemble returns. Cancelling ctx closes
// the body immediately so a blocked Read returns; acc then ends in
// StateCancelled and ctx.Err() is returned. On EOF or the sentinel acc ends
// in StateCompleted and nil is returned. Any other error leaves acc in
// StateFailed with its content intact.
func Assemble(ctx context.Context, body io.ReadCloser, acc *Accumulator, onDelta DeltaFunc, opts ...Option) error {
	a := &assembler{
		acc:       acc,
		onDelta:   onDelta,
		chunkSize: DefaultChunkSize,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	defer body.Close()
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	err := a.run(ctx, body)
	switch {
	case err == nil:
		acc.Finalize()
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		acc.Cancel()
		err = ctx.Err()
	case ctx.Err() != nil:
		acc.Fail(ctx.Err())
		err = ctx.Err()
	default:
		acc.Fail(err)
	}

	if a.skipped > 0 {
		a.log.Debug("skipped stream frames", "count", a.skipped)
	}
	return err
}

func (a *assembler) run(ctx context.Context, body io.Reader) error {
	splitter := NewFrameSplitter(a.maxFrame)
	buf := make([]byte, a.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.acc.State().Terminal() {
			return nil
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			frames, splitErr := splitter.Push(buf[:n])
			done, err := a.consume(ctx, frames)
			if err != nil || done {
				return err
			}
			if splitErr != nil {
				return splitErr
			}
		}

		if readErr == io.EOF {
			if last, ok := splitter.Flush(); ok {
				if _, err := a.consume(ctx, []string{last}); err != nil {
					return err
				}
			}
			return nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return readErr
		}
	}
}

// consume decodes frames in order. It reports true once the sentinel is seen.
func (a *assembler) consume(ctx context.Context, frames []string) (bool, error) {
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		d, err := DecodeFrame(frame)
		switch {
		case errors.Is(err, ErrDone):
			return true, nil
		case Skippable(err):
			a.skipped++
			continue
		case err != nil:
			return false, err
		}

		a.acc.Observe(d)
		if d.Empty() {
			continue
		}
		text := a.acc.Append(d.Content)
		if a.onDelta != nil {
			a.onDelta(d, text)
		}
	}
	return false, nil
}
