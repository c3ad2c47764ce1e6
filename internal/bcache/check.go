// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bcache

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
)

// CheckInvariants verifies the structural invariants of the cache:
//   - every buffer is on exactly one shard chain and knows which one,
//   - shard lengths match their chains,
//   - reference counts are non-negative,
//   - an assigned buffer is chained on its key's home shard,
//   - no two assigned buffers share a key.
//
// It takes the eviction lock and then every shard lock, so it must not be
// called while holding a shard lock.
func (c *Cache) CheckInvariants() error {
	c.evictMu.Lock()
	defer c.evictMu.Unlock()
	for i := range c.shards {
		c.shards[i].mu.Lock()
	}
	defer func() {
		for i := range c.shards {
			c.shards[i].mu.Unlock()
		}
	}()

	seen := make([]bool, len(c.bufs))
	keys := swiss.New[key, int32](len(c.bufs))
	for i := range c.shards {
		s := &c.shards[i]
		var n int32
		last := nilSlot
		for slot := s.head; slot != nilSlot; slot = c.bufs[slot].next {
			if slot < 0 || int(slot) >= len(c.bufs) {
				return errors.AssertionFailedf("shard %d: slot %d out of range", i, slot)
			}
			if seen[slot] {
				return errors.AssertionFailedf("shard %d: buf %d chained twice", i, slot)
			}
			seen[slot] = true
			n++
			last = slot
			b := &c.bufs[slot]
			if b.shard != int32(i) {
				return errors.AssertionFailedf("shard %d: %s believes it is on shard %d", i, b, b.shard)
			}
			if b.refcnt < 0 {
				return errors.AssertionFailedf("shard %d: %s has refcnt %d", i, b, b.refcnt)
			}
			if !b.assigned {
				continue
			}
			if home := shardIndex(b.key, len(c.shards)); home != int32(i) {
				return errors.AssertionFailedf("shard %d: %s belongs on shard %d", i, b, home)
			}
			if other, ok := keys.Get(b.key); ok {
				return errors.AssertionFailedf("key %s cached by bufs %d and %d", b.key, other, slot)
			}
			keys.Put(b.key, slot)
		}
		if n != s.n {
			return errors.AssertionFailedf("shard %d: length %d, chain has %d", i, s.n, n)
		}
		if last != s.tail {
			return errors.AssertionFailedf("shard %d: tail %d, chain ends at %d", i, s.tail, last)
		}
	}
	for slot, ok := range seen {
		if !ok {
			return errors.AssertionFailedf("buf %d is on no shard chain", slot)
		}
	}
	return nil
}
