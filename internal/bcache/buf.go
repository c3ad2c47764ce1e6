// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bcache

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/redact"
)

// nilSlot terminates a shard chain.
const nilSlot = int32(-1)

// key identifies an on-disk block.
type key struct {
	dev     uint32
	blockno uint32
}

// SafeFormat implements redact.SafeFormatter.
func (k key) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("(%d, %d)", k.dev, k.blockno)
}

func (k key) String() string {
	return redact.StringWithoutMarkers(k)
}

// Buf is a cached copy of one disk block. A *Buf returned by Cache.Get or
// Cache.GetOrLoad is locked for the exclusive use of the caller until it is
// passed to Cache.Release.
type Buf struct {
	// mu gives one holder at a time exclusive use of the buffer's content.
	// held mirrors the state of mu for contract checks.
	mu   sync.Mutex
	held atomic.Bool

	// Protected by mu.
	valid bool
	data  []byte

	// Protected by the lock of the shard the buffer is chained on. The key of
	// a buffer with refcnt > 0 never changes, so holders may read it without
	// the shard lock.
	key      key
	assigned bool
	refcnt   int32
	lastFree uint64
	next     int32
	shard    int32

	slot int32
}

// Data returns the block content. The slice is only valid until the buffer
// is released.
func (b *Buf) Data() []byte {
	return b.data
}

// Dev returns the device number of the cached block.
func (b *Buf) Dev() uint32 {
	return b.key.dev
}

// BlockNo returns the block number of the cached block.
func (b *Buf) BlockNo() uint32 {
	return b.key.blockno
}

// Valid reports whether the content has been loaded from the device.
func (b *Buf) Valid() bool {
	return b.valid
}

// SafeFormat implements redact.SafeFormatter.
func (b *Buf) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("buf %d %s", b.slot, b.key)
}

func (b *Buf) String() string {
	return redact.StringWithoutMarkers(b)
}

func (b *Buf) lock() {
	b.mu.Lock()
	b.held.Store(true)
}

func (b *Buf) unlock() {
	b.held.Store(false)
	b.mu.Unlock()
}
