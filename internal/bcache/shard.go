// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bcache

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/teachos/kcore/internal/spinlock"
)

// shard is one bucket of the buffer hash table. Its lock protects chain
// membership and the refcnt, lastFree and key fields of every buffer on the
// chain.
type shard struct {
	mu   spinlock.Mutex
	head int32
	tail int32
	n    int32
}

func (s *shard) init() {
	s.head, s.tail = nilSlot, nilSlot
}

func (k key) hash() uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint32(b[0:4], k.dev)
	binary.LittleEndian.PutUint32(b[4:8], k.blockno)
	return xxhash.Sum64(b[:])
}

func shardIndex(k key, n int) int32 {
	return int32(k.hash() % uint64(n))
}

// lookup returns the buffer on the chain assigned to k, or nil. s.mu must be
// held.
func (s *shard) lookup(bufs []Buf, k key) *Buf {
	s.mu.AssertHeld()
	for slot := s.head; slot != nilSlot; slot = bufs[slot].next {
		if b := &bufs[slot]; b.assigned && b.key == k {
			return b
		}
	}
	return nil
}

// pushFront links b at the head of the chain. s.mu must be held.
func (s *shard) pushFront(bufs []Buf, b *Buf) {
	s.mu.AssertHeld()
	b.next = s.head
	s.head = b.slot
	if s.tail == nilSlot {
		s.tail = b.slot
	}
	s.n++
}

// pushBack links b at the tail of the chain. s.mu must be held.
func (s *shard) pushBack(bufs []Buf, b *Buf) {
	s.mu.AssertHeld()
	b.next = nilSlot
	if s.tail == nilSlot {
		s.head = b.slot
	} else {
		bufs[s.tail].next = b.slot
	}
	s.tail = b.slot
	s.n++
}

// unlink removes b, whose predecessor on the chain is prev (nilSlot if b is
// the head). s.mu must be held.
func (s *shard) unlink(bufs []Buf, prev int32, b *Buf) {
	s.mu.AssertHeld()
	if prev == nilSlot {
		s.head = b.next
	} else {
		bufs[prev].next = b.next
	}
	if s.tail == b.slot {
		s.tail = prev
	}
	b.next = nilSlot
	s.n--
}
