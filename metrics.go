// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kcore

import (
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
	"github.com/teachos/kcore/internal/base"
	"github.com/teachos/kcore/internal/bcache"
	"github.com/teachos/kcore/internal/kalloc"
	"github.com/teachos/kcore/internal/manual"
)

// CacheMetrics holds metrics for the buffer cache.
type CacheMetrics = bcache.Metrics

// AllocMetrics holds metrics for the page allocator.
type AllocMetrics = kalloc.Metrics

// Metrics holds metrics for both subsystems of a kernel.
type Metrics struct {
	Cache CacheMetrics
	Alloc AllocMetrics
	// Memory is the manually managed memory in use, process wide.
	Memory struct {
		PageBytes   uint64
		BufferBytes uint64
	}
}

// Metrics returns the current metrics.
func (k *Kernel) Metrics() *Metrics {
	m := &Metrics{
		Cache: k.cache.Metrics(),
		Alloc: k.alloc.Metrics(),
	}
	mm := manual.GetMetrics()
	m.Memory.PageBytes = mm[manual.PhysicalPages].InUseBytes
	m.Memory.BufferBytes = mm[manual.BufferData].InUseBytes
	return m
}

// HitRate returns the fraction of cache lookups that found their block.
func (m *Metrics) HitRate() float64 {
	total := m.Cache.Hits + m.Cache.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Cache.Hits) / float64(total)
}

func (m *Metrics) String() string {
	return redact.StringWithoutMarkers(m)
}

func humanCount[T int64 | uint64](v T) redact.SafeString {
	return redact.SafeString(crhumanize.Count(v, crhumanize.Compact))
}

func humanBytes[T int64 | uint64](v T) redact.SafeString {
	return redact.SafeString(crhumanize.Bytes(v, crhumanize.Compact, crhumanize.OmitI))
}

// SafeFormat implements redact.SafeFormatter.
func (m *Metrics) SafeFormat(w redact.SafePrinter, _ rune) {
	c := &m.Cache
	w.Printf("cache: %s buffers (%s), %s assigned, %s referenced\n",
		humanCount(c.Buffers), humanBytes(c.Buffers*base.BlockSize), humanCount(c.Assigned), humanCount(c.Referenced))
	w.Printf("  hits: %s  misses: %s  hit rate: %.1f%%\n",
		humanCount(c.Hits), humanCount(c.Misses), redact.SafeFloat(100*m.HitRate()))
	w.Printf("  evictions: %s  exhausted: %s  reads: %s  writes: %s  spins: %s\n",
		humanCount(c.Evictions), humanCount(c.Exhaustions), humanCount(c.Reads), humanCount(c.Writes), humanCount(c.ShardSpins))

	a := &m.Alloc
	w.Printf("alloc: %s pages (%s), %s free\n",
		humanCount(a.Pages), humanBytes(a.Pages*base.PageSize), humanCount(a.Free()))
	w.Printf("  free per core:")
	for _, n := range a.FreePages {
		w.Printf(" %s", humanCount(n))
	}
	w.Printf("\n")
	w.Printf("  allocs: %s  frees: %s  steals: %s (%s pages)  failures: %s  spins: %s\n",
		humanCount(a.Allocs), humanCount(a.Frees), humanCount(a.Steals), humanCount(a.PagesStolen),
		humanCount(a.Failures), humanCount(a.PoolSpins))

	w.Printf("memory: pages %s  buffers %s\n", humanBytes(m.Memory.PageBytes), humanBytes(m.Memory.BufferBytes))
}
