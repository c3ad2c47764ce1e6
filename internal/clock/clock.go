// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package clock provides logical tick sources for the buffer cache.
package clock

import (
	"sync/atomic"
	"time"

	"github.com/cockroachdb/crlib/crtime"
	"github.com/teachos/kcore/internal/base"
)

// Manual is a clock that only moves when told to. It is used by tests that
// need exact control over buffer release stamps.
type Manual struct {
	ticks atomic.Uint64
}

var _ base.Clock = (*Manual)(nil)

// NewManual returns a manual clock starting at the given tick.
func NewManual(start uint64) *Manual {
	m := &Manual{}
	m.ticks.Store(start)
	return m
}

// Ticks implements base.Clock.
func (m *Manual) Ticks() uint64 {
	return m.ticks.Load()
}

// Advance moves the clock forward by n ticks and returns the new value.
func (m *Manual) Advance(n uint64) uint64 {
	return m.ticks.Add(n)
}

// Set moves the clock to t. Moving a clock backwards panics.
func (m *Manual) Set(t uint64) {
	for {
		cur := m.ticks.Load()
		if t < cur {
			panic(base.ContractViolationf("clock: cannot move from tick %d back to %d", cur, t))
		}
		if m.ticks.CompareAndSwap(cur, t) {
			return
		}
	}
}

// Ticker derives ticks from the monotonic clock: one tick per interval since
// the ticker was created, the way a timer interrupt increments a kernel's
// tick counter.
type Ticker struct {
	start    crtime.Mono
	interval time.Duration
}

var _ base.Clock = (*Ticker)(nil)

// NewTicker returns a ticker advancing once per interval.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		panic(base.ContractViolationf("clock: non-positive tick interval %s", interval))
	}
	return &Ticker{start: crtime.NowMono(), interval: interval}
}

// Ticks implements base.Clock.
func (t *Ticker) Ticks() uint64 {
	return uint64(t.start.Elapsed() / t.interval)
}

// Interval returns the duration of one tick.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}
