// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bcache

import "github.com/teachos/kcore/internal/base"

// shardGuard owns the lock of at most one shard. Ownership is handed over
// with swap, which releases the previously owned lock, so the guard can never
// hold two locks.
type shardGuard struct {
	s   *shard
	idx int32
}

// swap takes ownership of the already locked shard s, unlocking the shard
// previously owned.
func (g *shardGuard) swap(s *shard, idx int32) {
	s.mu.AssertHeld()
	if g.s != nil {
		g.s.mu.Unlock()
	}
	g.s, g.idx = s, idx
}

// release unlocks the owned shard, if any.
func (g *shardGuard) release() {
	if g.s != nil {
		g.s.mu.Unlock()
		g.s, g.idx = nil, nilSlot
	}
}

// candidate is the state of the eviction scan: the best buffer found so far,
// its predecessor on its chain, and the guard owning its shard's lock.
type candidate struct {
	buf   *Buf
	prev  int32
	guard shardGuard
}

// evict handles a miss for k, whose home shard is target. It returns the
// buffer assigned to k with a reference taken for the caller.
func (c *Cache) evict(k key, target int32) (*Buf, error) {
	c.evictMu.Lock()
	defer c.evictMu.Unlock()

	// Another miss for k may have completed between our lookup and acquiring
	// evictMu. Inserts only happen under evictMu, so a second lookup here is
	// conclusive.
	ts := &c.shards[target]
	ts.mu.Lock()
	if b := ts.lookup(c.bufs, k); b != nil {
		b.refcnt++
		ts.mu.Unlock()
		c.counters.hits.Add(1)
		return b, nil
	}
	ts.mu.Unlock()
	c.counters.misses.Add(1)

	best := candidate{prev: nilSlot, guard: shardGuard{idx: nilSlot}}
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		found := false
		prev := nilSlot
		for slot := s.head; slot != nilSlot; prev, slot = slot, c.bufs[slot].next {
			b := &c.bufs[slot]
			if b.refcnt == 0 && (best.buf == nil || b.lastFree < best.buf.lastFree) {
				best.buf, best.prev = b, prev
				found = true
			}
		}
		if found {
			best.guard.swap(s, int32(i))
		} else {
			s.mu.Unlock()
		}
	}

	if best.buf == nil {
		c.counters.exhaustions.Add(1)
		err := base.ExhaustedErrorf(
			"bcache: no evictable buffer for %s: all %d buffers referenced", k, len(c.bufs))
		c.opts.Logger.Errorf("%v", err)
		return nil, err
	}

	b := best.buf
	if b.assigned {
		c.counters.evictions.Add(1)
	}
	if best.guard.idx != target {
		best.guard.s.unlink(c.bufs, best.prev, b)
		ts.mu.Lock()
		ts.pushFront(c.bufs, b)
		b.shard = target
		b.key, b.assigned, b.refcnt, b.valid = k, true, 1, false
		ts.mu.Unlock()
	} else {
		b.key, b.assigned, b.refcnt, b.valid = k, true, 1, false
	}
	best.guard.release()
	return b, nil
}
