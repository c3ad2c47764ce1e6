// Copyright 2020 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build invariants || race

package invariants

import "github.com/cockroachdb/errors"

// Enabled is true if we were built with the "invariants" or "race" build tags.
const Enabled = true

// CloseChecker catches use of a cache or allocator after Close, and a second
// Close.
type CloseChecker struct {
	closed bool
}

// Close marks the owner closed. It panics if the owner was already closed.
func (d *CloseChecker) Close() {
	if d.closed {
		panic(errors.AssertionFailedf("closed twice"))
	}
	d.closed = true
}

// AssertNotClosed panics if Close was called.
func (d *CloseChecker) AssertNotClosed() {
	if d.closed {
		panic(errors.AssertionFailedf("used after close"))
	}
}
