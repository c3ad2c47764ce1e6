// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package spinlock implements a mutual exclusion lock that never parks the
// calling goroutine. It is meant for short critical sections that do not
// block: chain scans and pointer updates in the buffer cache shards and the
// page allocator pools.
package spinlock

import (
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/teachos/kcore/internal/base"
	"github.com/teachos/kcore/internal/invariants"
)

const (
	// Number of busy iterations before yielding the processor.
	activeSpin = 4
	// Busy iterations per active spin.
	activeSpinCount = 30
)

// Mutex is a spin lock. The zero value is unlocked. A Mutex must not be
// copied after first use.
type Mutex struct {
	state atomic.Uint32
	// spins counts contended acquisition attempts, for metrics.
	spins atomic.Uint64
}

// Lock acquires m, spinning until it is available. The calling goroutine is
// never parked: after a few rounds of busy waiting it yields the processor to
// let the holder run.
func (m *Mutex) Lock() {
	if m.state.CompareAndSwap(0, 1) {
		return
	}
	for i := 0; ; i++ {
		if m.state.Load() == 0 && m.state.CompareAndSwap(0, 1) {
			return
		}
		m.spins.Add(1)
		if i < activeSpin {
			for j := 0; j < activeSpinCount; j++ {
				if m.state.Load() == 0 {
					break
				}
			}
		} else {
			runtime.Gosched()
		}
	}
}

// Unlock releases m. Unlocking a free lock is a contract violation.
func (m *Mutex) Unlock() {
	if m.state.Swap(0) == 0 {
		panic(base.ContractViolationf("spinlock: unlock of unlocked mutex"))
	}
}

// Held reports whether m is currently locked by someone. It cannot tell which
// goroutine holds it.
func (m *Mutex) Held() bool {
	return m.state.Load() != 0
}

// AssertHeld panics in invariant builds if m is not locked. Like Held, it
// cannot tell whether the caller is the holder.
func (m *Mutex) AssertHeld() {
	if invariants.Enabled && !m.Held() {
		panic(errors.AssertionFailedf("spinlock: mutex not held"))
	}
}

// Spins returns the number of contended acquisition rounds observed so far.
func (m *Mutex) Spins() uint64 {
	return m.spins.Load()
}
