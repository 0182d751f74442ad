// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader returns one scripted chunk per Read call.
type chunkReader struct {
	chunks [][]byte
	closed bool
}

func newChunkReader(chunks ...string) *chunkReader {
	r := &chunkReader{}
	for _, c := range chunks {
		r.chunks = append(r.chunks, []byte(c))
	}
	return r
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errors.New("read on closed body")
	}
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}

func envelope(content string) string {
	return fmt.Sprintf(`data: {"id":"gen-1","model":"m","choices":[{"delta":{"content":%q}}]}`, content)
}

// =============================================================================
// FRAME SPLITTER TESTS
// =============================================================================

func TestFrameSplitter_ChunkBoundaries(t *testing.T) {
	lines := []string{envelope("a"), envelope("héllo"), "data: [DONE]"}
	body := strings.Join(lines, "\n") + "\n"

	splits := map[string][]string{
		"whole":      {body},
		"mid-line":   {body[:10], body[10:40], body[40:]},
		"at-newline": {body[:len(lines[0])+1], body[len(lines[0])+1:]},
	}
	for i := 1; i < len(body); i += 7 {
		splits[fmt.Sprintf("offset-%d", i)] = []string{body[:i], body[i:]}
	}

	for name, chunks := range splits {
		t.Run(name, func(t *testing.T) {
			s := NewFrameSplitter(0)
			var got []string
			for _, c := range chunks {
				frames, err := s.Push([]byte(c))
				require.NoError(t, err)
				got = append(got, frames...)
			}
			assert.Equal(t, lines, got)
			assert.Zero(t, s.Pending())
		})
	}
}

func TestFrameSplitter_OneBytePerChunk(t *testing.T) {
	lines := []string{envelope("日本語"), envelope("x"), ": keep-alive", "data: [DONE]"}
	body := strings.Join(lines, "\n") + "\n"

	s := NewFrameSplitter(0)
	var got []string
	for i := 0; i < len(body); i++ {
		frames, err := s.Push([]byte{body[i]})
		require.NoError(t, err)
		got = append(got, frames...)
	}
	assert.Equal(t, lines, got)
}

func TestFrameSplitter_FiltersEmptyLinesAndCR(t *testing.T) {
	s := NewFrameSplitter(0)
	frames, err := s.Push([]byte("a\r\n\r\n\nb\n\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, frames)
}

func TestFrameSplitter_Flush(t *testing.T) {
	s := NewFrameSplitter(0)
	frames, err := s.Push([]byte("first\nsecond"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, frames)

	last, ok := s.Flush()
	assert.True(t, ok)
	assert.Equal(t, "second", last)

	_, ok = s.Flush()
	assert.False(t, ok)
}

func TestFrameSplitter_TooLarge(t *testing.T) {
	s := NewFrameSplitter(16)
	_, err := s.Push([]byte(strings.Repeat("x", 17)))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Zero(t, s.Pending())
}

// =============================================================================
// DECODER TESTS
// =============================================================================

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		content string
		done    bool
		skip    bool
	}{
		{name: "data prefix", frame: envelope("Hi"), content: "Hi"},
		{name: "no space after prefix", frame: `data:{"choices":[{"delta":{"content":"x"}}]}`, content: "x"},
		{name: "bare json", frame: `{"choices":[{"delta":{"content":"y"}}]}`, content: "y"},
		{name: "sentinel", frame: "data: [DONE]", done: true},
		{name: "sentinel with spaces", frame: "data:  [DONE]  ", done: true},
		{name: "invalid json", frame: "data: {not json", skip: true},
		{name: "empty data", frame: "data:", skip: true},
		{name: "comment", frame: ": OPENROUTER PROCESSING", skip: true},
		{name: "event field", frame: "event: message", skip: true},
		{name: "missing content", frame: `data: {"choices":[{"delta":{"role":"assistant"}}]}`},
		{name: "no choices", frame: `data: {"id":"x"}`},
		{name: "null content", frame: `data: {"choices":[{"delta":{"content":null}}]}`},
		{name: "numeric content", frame: `data: {"choices":[{"delta":{"content":42}}]}`},
		{name: "bool content", frame: `data: {"choices":[{"delta":{"content":true}}]}`},
		{name: "object content", frame: `data: {"choices":[{"delta":{"content":{"text":"x"}}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := DecodeFrame(tt.frame)
			switch {
			case tt.done:
				assert.ErrorIs(t, err, ErrDone)
				assert.True(t, d.Empty())
			case tt.skip:
				require.Error(t, err)
				assert.True(t, Skippable(err), "expected skippable error, got %v", err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.content, d.Content)
			}
		})
	}
}

func TestDecodeFrame_Metadata(t *testing.T) {
	d, err := DecodeFrame(`data: {"id":"gen-7","model":"deepseek","choices":[{"delta":{"role":"assistant","content":""},"finish_reason":"stop"}]}`)
	require.NoError(t, err)
	assert.Equal(t, "gen-7", d.ID)
	assert.Equal(t, "deepseek", d.Model)
	assert.Equal(t, "assistant", d.Role)
	assert.Equal(t, "stop", d.FinishReason)
	assert.True(t, d.Empty())
}

func TestDecodeFrame_ProviderError(t *testing.T) {
	_, err := DecodeFrame(`data: {"error":{"code":502,"message":"upstream overloaded"}}`)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "502", perr.Code)
	assert.Equal(t, "upstream overloaded", perr.Message)
	assert.False(t, Skippable(err))
}

// =============================================================================
// ACCUMULATOR TESTS
// =============================================================================

func TestAccumulator_Append(t *testing.T) {
	acc := NewAccumulator()
	var last string
	for _, d := range []string{"Hel", "lo, ", "world"} {
		last = acc.Append(d)
	}
	assert.Equal(t, "Hello, world", last)
	assert.Equal(t, "Hello, world", acc.Text())
	assert.Equal(t, StateStreaming, acc.State())
	assert.Equal(t, 3, acc.Stats().Deltas)
}

func TestAccumulator_CancelFreezes(t *testing.T) {
	acc := NewAccumulator()
	acc.Append("partial")
	acc.Cancel()

	assert.Equal(t, "partial", acc.Append(" more"))
	assert.Equal(t, StateCancelled, acc.State())
	assert.NoError(t, acc.Err())

	acc.Fail(errors.New("late"))
	acc.Finalize()
	assert.Equal(t, StateCancelled, acc.State())
	assert.NoError(t, acc.Err())
}

func TestAccumulator_Fail(t *testing.T) {
	boom := errors.New("boom")
	acc := NewAccumulator()
	acc.Append("kept")
	acc.Fail(boom)

	assert.Equal(t, StateFailed, acc.State())
	assert.ErrorIs(t, acc.Err(), boom)
	assert.Equal(t, "kept", acc.Text())
	assert.True(t, acc.State().Terminal())
}

func TestAccumulator_Stats(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := base
	acc := &Accumulator{now: func() time.Time { return tick }}
	acc.start = acc.now()

	tick = base.Add(200 * time.Millisecond)
	acc.Append("a")
	tick = base.Add(time.Second)
	acc.Append("b")
	acc.Observe(Delta{Model: "m", FinishReason: "stop"})
	acc.Finalize()
	tick = base.Add(time.Hour)

	st := acc.Stats()
	assert.Equal(t, 200*time.Millisecond, st.FirstDeltaTime)
	assert.Equal(t, time.Second, st.TotalTime)
	assert.Equal(t, 2, st.Deltas)
	assert.Equal(t, "m", st.Model)
	assert.Equal(t, "stop", st.FinishReason)
}

func TestAccumulator_ConcurrentCancel(t *testing.T) {
	acc := NewAccumulator()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			acc.Append("x")
		}
	}()
	go func() {
		defer wg.Done()
		acc.Cancel()
	}()
	wg.Wait()

	frozen := acc.Text()
	acc.Append("y")
	assert.Equal(t, frozen, acc.Text())
	assert.Equal(t, StateCancelled, acc.State())
}

// =============================================================================
// ASSEMBLE TESTS
// =============================================================================

func TestAssemble_EndToEnd(t *testing.T) {
	body := newChunkReader(
		`data: {"choices":[{"delta":{"content":"H"}}]}`+"\n",
		`data: {"choices":[{"delta":{"content":"i"}}]}`+"\n"+"data: [DONE]\n",
	)
	acc := NewAccumulator()

	var seen []string
	err := Assemble(context.Background(), body, acc, func(d Delta, text string) {
		seen = append(seen, text)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi", acc.Text())
	assert.Equal(t, StateCompleted, acc.State())
	assert.Equal(t, []string{"H", "Hi"}, seen)
	assert.True(t, body.closed)
}

func TestAssemble_MalformedThenValid(t *testing.T) {
	body := newChunkReader(
		envelope("a")+"\n",
		"data: {garbage\n",
		envelope("b")+"\n",
	)
	acc := NewAccumulator()
	require.NoError(t, Assemble(context.Background(), body, acc, nil))
	assert.Equal(t, "ab", acc.Text())
	assert.Equal(t, StateCompleted, acc.State())
}

func TestAssemble_StopsAtSentinel(t *testing.T) {
	body := newChunkReader(envelope("a") + "\ndata: [DONE]\n" + envelope("ignored") + "\n")
	acc := NewAccumulator()
	require.NoError(t, Assemble(context.Background(), body, acc, nil))
	assert.Equal(t, "a", acc.Text())
}

func TestAssemble_FlushesTrailingFrame(t *testing.T) {
	body := newChunkReader(envelope("a")+"\n", envelope("b"))
	acc := NewAccumulator()
	require.NoError(t, Assemble(context.Background(), body, acc, nil))
	assert.Equal(t, "ab", acc.Text())
}

func TestAssemble_ProviderErrorFails(t *testing.T) {
	body := newChunkReader(envelope("part")+"\n", `data: {"error":{"message":"rate limited"}}`+"\n")
	acc := NewAccumulator()

	err := Assemble(context.Background(), body, acc, nil)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StateFailed, acc.State())
	assert.Equal(t, "part", acc.Text())
}

func TestAssemble_ReadErrorKeepsPartial(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		pw.Write([]byte(envelope("part") + "\n"))
		pw.CloseWithError(errors.New("connection reset"))
	}()

	acc := NewAccumulator()
	err := Assemble(context.Background(), pr, acc, nil)
	require.EqualError(t, err, "connection reset")
	assert.Equal(t, StateFailed, acc.State())
	assert.Equal(t, "part", acc.Text())
}

func TestAssemble_CancelUnblocksRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithCancel(context.Background())

	acc := NewAccumulator()
	first := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- Assemble(ctx, pr, acc, func(Delta, string) { close(first) })
	}()

	_, err := pw.Write([]byte(envelope("Hi") + "\n"))
	require.NoError(t, err)
	<-first
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Assemble did not return after cancellation")
	}
	assert.Equal(t, StateCancelled, acc.State())
	assert.Equal(t, "Hi", acc.Text())
	assert.Equal(t, "Hi", acc.Append("!"))
}

func TestAssemble_OneBytePerRead(t *testing.T) {
	payload := envelope("Hello, ") + "\n" + ": ping\n" + envelope("wörld") + "\n" + "data: [DONE]\n"
	acc := NewAccumulator()
	err := Assemble(context.Background(), io.NopCloser(strings.NewReader(payload)), acc, nil, WithChunkSize(1))
	require.NoError(t, err)
	assert.Equal(t, "Hello, wörld", acc.Text())
}

func TestAssemble_OversizedFrameFails(t *testing.T) {
	body := newChunkReader(envelope("ok")+"\n", strings.Repeat("x", 64))
	acc := NewAccumulator()
	err := Assemble(context.Background(), body, acc, nil, WithMaxFrameSize(32))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Equal(t, StateFailed, acc.State())
	assert.Equal(t, "ok", acc.Text())
}
