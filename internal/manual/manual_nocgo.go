// Copyright 2020 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build !cgo

package manual

import "unsafe"

// Provides versions of New and Free when cgo is not available (e.g. cross
// compilation).

// New allocates a zeroed buffer of size n.
func New(purpose Purpose, n uintptr) Buf {
	if n == 0 {
		return Buf{}
	}
	recordAlloc(purpose, n)
	b := make([]byte, n)
	return Buf{data: unsafe.Pointer(unsafe.SliceData(b)), n: n}
}

// Free frees the specified buffer. It has to be exactly the buffer that was
// returned by New.
func Free(purpose Purpose, b Buf) {
	if b.data == nil {
		return
	}
	recordFree(purpose, b.n)
}
