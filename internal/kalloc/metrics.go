// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kalloc

// Metrics holds metrics for the allocator.
type Metrics struct {
	// Pages is the number of managed pages.
	Pages int64
	// FreePages is the length of each core's free list.
	FreePages []int64
	// Allocs and Frees count successful operations.
	Allocs int64
	Frees  int64
	// Steals is the number of times a core refilled its pool from another
	// core, moving PagesStolen pages in total.
	Steals      int64
	PagesStolen int64
	// Failures is the number of Alloc calls that found no free page.
	Failures int64
	// PoolSpins is the number of contended pool lock acquisition rounds.
	PoolSpins int64
}

// Free returns the number of free pages across all cores.
func (m Metrics) Free() int64 {
	var n int64
	for _, f := range m.FreePages {
		n += f
	}
	return n
}

// Metrics returns the current metrics for the allocator.
func (a *Allocator) Metrics() Metrics {
	m := Metrics{
		Pages:       int64(len(a.next)),
		FreePages:   make([]int64, len(a.pools)),
		Allocs:      a.counters.allocs.Load(),
		Frees:       a.counters.frees.Load(),
		Steals:      a.counters.steals.Load(),
		PagesStolen: a.counters.stolen.Load(),
		Failures:    a.counters.failures.Load(),
	}
	for i := range a.pools {
		p := &a.pools[i]
		p.mu.Lock()
		m.FreePages[i] = int64(p.n)
		p.mu.Unlock()
		m.PoolSpins += int64(p.mu.Spins())
	}
	return m
}
