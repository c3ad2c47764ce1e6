// Copyright 2020 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build !invariants && !race

package invariants

// Enabled is true if we were built with the "invariants" or "race" build tags.
const Enabled = false

// CloseChecker catches use after Close in invariant builds. It is empty and
// does nothing otherwise.
type CloseChecker struct{}

// Close is a no-op in non-invariant builds.
func (d *CloseChecker) Close() {}

// AssertNotClosed is a no-op in non-invariant builds.
func (d *CloseChecker) AssertNotClosed() {}
