// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bcache

// Metrics holds metrics for the cache.
type Metrics struct {
	// Buffers is the size of the pool.
	Buffers int64
	// Assigned is the number of buffers currently associated with a block.
	Assigned int64
	// Referenced is the number of buffers with outstanding holders or pins.
	Referenced int64
	// Hits is the number of Get calls that found their block cached.
	Hits int64
	// Misses is the number of Get calls that had to repurpose a buffer.
	Misses int64
	// Evictions is the number of misses that displaced a cached block.
	Evictions int64
	// Exhaustions is the number of misses that found no evictable buffer.
	Exhaustions int64
	// Reads and Writes count device transfers issued by the cache.
	Reads  int64
	Writes int64
	// ShardSpins is the number of contended shard lock acquisition rounds.
	ShardSpins int64
}

// Metrics returns the current metrics for the cache.
func (c *Cache) Metrics() Metrics {
	m := Metrics{
		Buffers:     int64(len(c.bufs)),
		Hits:        c.counters.hits.Load(),
		Misses:      c.counters.misses.Load(),
		Evictions:   c.counters.evictions.Load(),
		Exhaustions: c.counters.exhaustions.Load(),
		Reads:       c.counters.reads.Load(),
		Writes:      c.counters.writes.Load(),
	}
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for slot := s.head; slot != nilSlot; slot = c.bufs[slot].next {
			b := &c.bufs[slot]
			if b.assigned {
				m.Assigned++
			}
			if b.refcnt > 0 {
				m.Referenced++
			}
		}
		s.mu.Unlock()
		m.ShardSpins += int64(s.mu.Spins())
	}
	return m
}
