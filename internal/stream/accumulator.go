// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"
	"sync"
	"time"
)

// State is the lifecycle state of a transcript.
type State int

const (
	// StateStreaming accepts appends.
	StateStreaming State = iota
	// StateCompleted means the stream ended normally.
	StateCompleted
	// StateCancelled means the caller stopped the stream.
	StateCancelled
	// StateFailed means a transport or provider error ended the stream.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further appends will be accepted.
func (s State) Terminal() bool {
	return s != StateStreaming
}

// Stats holds statistics collected while a transcript was streaming.
type Stats struct {
	Deltas         int
	FirstDeltaTime time.Duration
	TotalTime      time.Duration
	Model          string
	FinishReason   string
}

// Accumulator concatenates deltas into a transcript.
//
// A single goroutine appends; any goroutine may read or move it to a
// terminal state. The first terminal transition wins and later ones are
// no-ops.
type Accumulator struct {
	mu    sync.RWMutex
	text  strings.Builder
	state State
	err   error

	start      time.Time
	firstDelta time.Time
	end        time.Time
	deltas     int
	model      string
	finish     string

	now func() time.Time
}

// NewAccumulator returns an accumulator in StateStreaming.
func NewAccumulator() *Accumulator {
	a := &Accumulator{now: time.Now}
	a.start = a.now()
	return a
}

// Append adds delta to the transcript and returns the full transcript.
// After a terminal transition it changes nothing and returns the frozen text.
func (a *Accumulator) Append(delta string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateStreaming || delta == "" {
		return a.text.String()
	}
	if a.firstDelta.IsZero() {
		a.firstDelta = a.now()
	}
	a.deltas++
	a.text.WriteString(delta)
	return a.text.String()
}

// Observe records envelope metadata without touching the transcript.
func (a *Accumulator) Observe(d Delta) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateStreaming {
		return
	}
	if d.Model != "" {
		a.model = d.Model
	}
	if d.FinishReason != "" {
		a.finish = d.FinishReason
	}
}

// Finalize marks the transcript completed.
func (a *Accumulator) Finalize() {
	a.terminate(StateCompleted, nil)
}

// Cancel marks the transcript cancelled. Content received so far is kept.
func (a *Accumulator) Cancel() {
	a.terminate(StateCancelled, nil)
}

// Fail marks the transcript failed with err. Content received so far is kept.
func (a *Accumulator) Fail(err error) {
	a.terminate(StateFailed, err)
}

func (a *Accumulator) terminate(s State, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateStreaming {
		return
	}
	a.state = s
	a.err = err
	a.end = a.now()
}

// Text returns the current transcript.
func (a *Accumulator) Text() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.text.String()
}

// State returns the current lifecycle state.
func (a *Accumulator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Err returns the error recorded by Fail, if any.
func (a *Accumulator) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// Stats returns the statistics gathered so far.
func (a *Accumulator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	end := a.end
	if end.IsZero() {
		end = a.now()
	}
	st := Stats{
		Deltas:       a.deltas,
		TotalTime:    end.Sub(a.start),
		Model:        a.model,
		FinishReason: a.finish,
	}
	if !a.firstDelta.IsZero() {
		st.FirstDeltaTime = a.firstDelta.Sub(a.start)
	}
	return st
}
