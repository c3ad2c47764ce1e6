// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package bcache implements the kernel's block buffer cache.
//
// The cache is a fixed pool of buffers, each holding a copy of one disk block.
// Buffers are chained on the shards of a hash table keyed by (dev, blockno).
// Every buffer is on exactly one shard chain at all times, including buffers
// that have never held a block.
//
// # Locking
//
// Each shard has a spin lock protecting its chain and the reference counts of
// the buffers on it. Each buffer has an exclusive lock protecting its content;
// it is the only lock in the cache that may park the caller and it is never
// requested while a spin lock is held. A global eviction spin lock serializes
// misses: a miss scans every shard, holding the lock of the shard containing
// the best candidate seen so far plus the shard currently being scanned, so at
// most two shard locks are held at once and only by the goroutine holding
// the eviction lock.
//
// # Replacement
//
// When the last reference to a buffer is dropped it is stamped with the
// current tick of the cache's clock. A miss repurposes the unreferenced
// buffer with the oldest stamp across all shards. Ties go to the first buffer
// found in shard order, then chain order. Buffers with outstanding references
// (holders or pins) are never repurposed; if every buffer is referenced the
// miss fails with base.ErrResourceExhausted.
package bcache

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/teachos/kcore/internal/base"
	"github.com/teachos/kcore/internal/disk"
	"github.com/teachos/kcore/internal/invariants"
	"github.com/teachos/kcore/internal/manual"
	"github.com/teachos/kcore/internal/spinlock"
)

// Options configures a Cache.
type Options struct {
	// Buffers is the number of buffers in the pool.
	Buffers int
	// Shards is the number of hash table shards.
	Shards int
	// Device is the storage the cache reads from and writes to.
	Device disk.Device
	// Clock stamps buffers when their last reference is dropped.
	Clock base.Clock
	// Logger receives exhaustion reports. Defaults to base.DefaultLogger.
	Logger base.Logger
}

// Cache is a concurrent block buffer cache.
type Cache struct {
	opts   Options
	bufs   []Buf
	shards []shard
	slab   manual.Buf

	// evictMu serializes misses.
	evictMu spinlock.Mutex

	counters struct {
		hits        atomic.Int64
		misses      atomic.Int64
		evictions   atomic.Int64
		exhaustions atomic.Int64
		reads       atomic.Int64
		writes      atomic.Int64
	}
	closeCheck invariants.CloseChecker
}

// New creates a cache with opts.Buffers buffers spread round-robin over
// opts.Shards shards. The block data of all buffers is allocated up front in
// one manually managed slab which is released by Close.
func New(opts Options) *Cache {
	if opts.Buffers <= 0 || opts.Shards <= 0 {
		panic(errors.AssertionFailedf("bcache: invalid geometry: %d buffers, %d shards",
			opts.Buffers, opts.Shards))
	}
	if opts.Device == nil || opts.Clock == nil {
		panic(errors.AssertionFailedf("bcache: device and clock are required"))
	}
	if opts.Logger == nil {
		opts.Logger = base.DefaultLogger{}
	}
	c := &Cache{
		opts:   opts,
		bufs:   make([]Buf, opts.Buffers),
		shards: make([]shard, opts.Shards),
		slab:   manual.New(manual.BufferData, uintptr(opts.Buffers)*base.BlockSize),
	}
	for i := range c.shards {
		c.shards[i].init()
	}
	data := c.slab.Slice()
	for i := range c.bufs {
		b := &c.bufs[i]
		b.slot = int32(i)
		b.next = nilSlot
		b.data = data[i*base.BlockSize : (i+1)*base.BlockSize : (i+1)*base.BlockSize]
		b.shard = int32(i % len(c.shards))
		s := &c.shards[b.shard]
		s.mu.Lock()
		s.pushBack(c.bufs, b)
		s.mu.Unlock()
	}
	return c
}

// Close releases the data slab. No buffer may be used after Close.
func (c *Cache) Close() {
	c.closeCheck.Close()
	if m := c.Metrics(); m.Referenced > 0 {
		c.opts.Logger.Errorf("bcache: closing with %d referenced buffers", m.Referenced)
	}
	for i := range c.bufs {
		c.bufs[i].data = nil
	}
	manual.Free(manual.BufferData, c.slab)
	c.slab = manual.Buf{}
}

// Get returns the buffer for (dev, blockno), locked for the caller. If the
// block is not cached, the least recently released unreferenced buffer is
// repurposed for it and returned with Valid() == false; the caller loads it
// with Read. Get fails with an error wrapping base.ErrResourceExhausted if
// every buffer is referenced.
func (c *Cache) Get(dev, blockno uint32) (*Buf, error) {
	c.closeCheck.AssertNotClosed()
	k := key{dev: dev, blockno: blockno}
	target := shardIndex(k, len(c.shards))
	s := &c.shards[target]

	s.mu.Lock()
	if b := s.lookup(c.bufs, k); b != nil {
		b.refcnt++
		s.mu.Unlock()
		c.counters.hits.Add(1)
		b.lock()
		return b, nil
	}
	s.mu.Unlock()

	b, err := c.evict(k, target)
	if err != nil {
		return nil, err
	}
	b.lock()
	return b, nil
}

// Read loads the block content from the device if it is not already valid.
// The caller must hold b.
func (c *Cache) Read(b *Buf) error {
	if b.valid {
		return nil
	}
	if err := c.opts.Device.ReadBlock(b.key.dev, b.key.blockno, b.data); err != nil {
		return errors.Wrapf(err, "bcache: loading block %s", b.key)
	}
	b.valid = true
	c.counters.reads.Add(1)
	return nil
}

// GetOrLoad returns the buffer for (dev, blockno) locked for the caller, with
// its content loaded from the device. If the load fails the buffer is
// released and the error returned.
func (c *Cache) GetOrLoad(dev, blockno uint32) (*Buf, error) {
	b, err := c.Get(dev, blockno)
	if err != nil {
		return nil, err
	}
	if err := c.Read(b); err != nil {
		c.Release(b)
		return nil, err
	}
	return b, nil
}

// Write stores the buffer's content to the device. The caller must hold b;
// calling Write on a buffer that is not held is a contract violation.
func (c *Cache) Write(b *Buf) error {
	c.mustHold(b, "write")
	if err := c.opts.Device.WriteBlock(b.key.dev, b.key.blockno, b.data); err != nil {
		return errors.Wrapf(err, "bcache: writing block %s", b.key)
	}
	c.counters.writes.Add(1)
	return nil
}

// Invalidate discards the cached content of b so that the next Read reloads
// it from the device. The caller must hold b.
func (c *Cache) Invalidate(b *Buf) {
	c.mustHold(b, "invalidate")
	b.valid = false
}

// Release unlocks b and drops the caller's reference. When the last
// reference is dropped the buffer is stamped with the current tick and
// becomes eligible for eviction. The caller must hold b.
func (c *Cache) Release(b *Buf) {
	c.mustHold(b, "release")
	b.unlock()
	c.unref(b, "release")
}

// Pin adds a reference to b without locking it, keeping the block resident
// across later Get/Release cycles. The caller must already have a reference
// to b, either by holding it or through an earlier pin.
func (c *Cache) Pin(b *Buf) {
	s := &c.shards[b.shard]
	s.mu.Lock()
	if b.refcnt <= 0 {
		s.mu.Unlock()
		panic(base.ContractViolationf("bcache: pin of unreferenced %s", b))
	}
	b.refcnt++
	s.mu.Unlock()
}

// Unpin drops a reference added by Pin. Unpinning more times than pinned is a
// contract violation when it would take the reference count below zero.
func (c *Cache) Unpin(b *Buf) {
	c.unref(b, "unpin")
}

func (c *Cache) unref(b *Buf, op string) {
	s := &c.shards[b.shard]
	s.mu.Lock()
	if b.refcnt <= 0 {
		s.mu.Unlock()
		panic(base.ContractViolationf("bcache: %s of unreferenced %s", op, b))
	}
	b.refcnt--
	if b.refcnt == 0 {
		b.lastFree = c.opts.Clock.Ticks()
	}
	s.mu.Unlock()
}

// mustHold panics unless b's lock is held. It cannot tell which goroutine
// holds it, so an operation by a goroutine other than the holder passes.
func (c *Cache) mustHold(b *Buf, op string) {
	if !b.held.Load() {
		panic(base.ContractViolationf("bcache: %s of %s without holding it", op, b))
	}
}
