// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package manual provides memory that lives outside the purview of the Go
// garbage collector. The page allocator carves its physical page arena out of
// a single manual allocation, and the buffer cache allocates its block data
// slab the same way. Both are allocated once at construction and freed on
// Close.
package manual

import (
	"sync/atomic"
	"unsafe"
)

// Purpose identifies the use-case for an allocation.
type Purpose uint8

const (
	_ Purpose = iota

	// PhysicalPages is the arena managed by the page allocator.
	PhysicalPages
	// BufferData is the data slab backing the buffer cache.
	BufferData

	NumPurposes
)

func (p Purpose) String() string {
	switch p {
	case PhysicalPages:
		return "physical-pages"
	case BufferData:
		return "buffer-data"
	default:
		return "unknown"
	}
}

// Buf is a buffer allocated by New. The zero value is an empty buffer.
type Buf struct {
	data unsafe.Pointer
	n    uintptr
}

// Slice returns the buffer as a byte slice. The slice must not be used after
// the buffer is freed.
func (b Buf) Slice() []byte {
	if b.data == nil {
		return nil
	}
	return unsafe.Slice((*byte)(b.data), b.n)
}

// Len returns the size of the buffer.
func (b Buf) Len() int {
	return int(b.n)
}

// Metrics contains memory statistics by purpose.
type Metrics [NumPurposes]struct {
	// InUseBytes is the total number of bytes currently allocated.
	InUseBytes uint64
	// TotalBytes is the total cumulative number of bytes allocated since the
	// process started.
	TotalBytes uint64
}

var counters [NumPurposes]struct {
	TotalAllocated atomic.Uint64
	TotalFreed     atomic.Uint64
	// Pad to separate counters into cache lines.
	_ [6]uint64
}

func recordAlloc(purpose Purpose, n uintptr) {
	counters[purpose].TotalAllocated.Add(uint64(n))
}

func recordFree(purpose Purpose, n uintptr) {
	counters[purpose].TotalFreed.Add(uint64(n))
}

// GetMetrics returns manual memory usage statistics.
func GetMetrics() Metrics {
	var res Metrics
	for i := range res {
		res[i].TotalBytes = counters[i].TotalAllocated.Load()
		res[i].InUseBytes = res[i].TotalBytes - counters[i].TotalFreed.Load()
	}
	return res
}
