// Copyright 2020 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build cgo

package manual

// #include <stdlib.h>
import "C"
import (
	"unsafe"

	"github.com/teachos/kcore/internal/invariants"
)

// The go:linkname directives provides backdoor access to private functions in
// the runtime. Below we're accessing the throw function.

//go:linkname throw runtime.throw
func throw(s string)

// useGoAllocation is used in race-enabled builds to make some allocations
// with an ordinary Go allocation so that the race detector can observe
// concurrent access to them.
//
// The choice is made deterministically using a fibonacci hash of the
// allocation size and a seed derived from an arbitrary pointer.
func useGoAllocation(n uintptr) bool {
	if !invariants.RaceEnabled {
		return false
	}
	const m = 11400714819323198485
	h := goAllocationSeed
	h ^= uint64(n) * m
	return h>>63 == 0
}

var goAllocationSeed uint64

func init() {
	if !invariants.RaceEnabled {
		return
	}
	goAllocationSeed = uint64(uintptr(unsafe.Pointer(&goAllocationSeed)))
}

// New allocates a zeroed buffer of size n. The returned buffer is from
// manually managed memory and MUST be released by calling Free. Failure to do
// so will result in a memory leak.
func New(purpose Purpose, n uintptr) Buf {
	if n == 0 {
		return Buf{}
	}
	recordAlloc(purpose, n)

	if invariants.RaceEnabled && useGoAllocation(n) {
		b := make([]byte, n)
		return Buf{data: unsafe.Pointer(&b[0]), n: n}
	}
	ptr := C.calloc(C.size_t(n), 1)
	if ptr == nil {
		// NB: throw is like panic, except it guarantees the process will be
		// terminated.
		throw("out of memory")
	}
	return Buf{data: ptr, n: n}
}

// Free frees the specified buffer. It has to be exactly the buffer that was
// returned by New.
func Free(purpose Purpose, b Buf) {
	if b.n != 0 {
		recordFree(purpose, b.n)

		if !invariants.RaceEnabled || !useGoAllocation(b.n) {
			C.free(b.data)
		}
	}
}
