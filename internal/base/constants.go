// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

const (
	// BlockSize is the size of a disk block and of a buffer cache entry.
	BlockSize = 1024
	// PageShift is log2(PageSize).
	PageShift = 12
	// PageSize is the size of a physical page.
	PageSize = 1 << PageShift
)

// PageRoundUp rounds addr up to a multiple of PageSize.
func PageRoundUp(addr uint64) uint64 {
	return (addr + PageSize - 1) &^ (PageSize - 1)
}

// PageRoundDown rounds addr down to a multiple of PageSize.
func PageRoundDown(addr uint64) uint64 {
	return addr &^ (PageSize - 1)
}
