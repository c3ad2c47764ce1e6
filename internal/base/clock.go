// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

// Clock is a read-only, monotonically increasing logical tick counter. The
// buffer cache stamps buffers with the current tick when their last reference
// is dropped and evicts the buffer with the oldest stamp.
type Clock interface {
	Ticks() uint64
}
