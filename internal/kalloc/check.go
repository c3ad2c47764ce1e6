// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kalloc

import "github.com/cockroachdb/errors"

// CheckInvariants verifies that every managed page is either allocated or on
// exactly one free list, that free list lengths match their chains and, when
// sentinel fill is on, that free pages still hold FreeJunk. Pages in flight in
// a concurrent Alloc or Free are in neither state, so it must only be called
// while the allocator is quiescent.
func (a *Allocator) CheckInvariants() error {
	for i := range a.pools {
		a.pools[i].mu.Lock()
	}
	defer func() {
		for i := range a.pools {
			a.pools[i].mu.Unlock()
		}
	}()

	onList := make([]bool, len(a.next))
	for core := range a.pools {
		p := &a.pools[core]
		var n int32
		for idx := p.head; idx != nilPage; idx = a.next[idx] {
			if idx < 0 || int(idx) >= len(a.next) {
				return errors.AssertionFailedf("core %d: page index %d out of range", core, idx)
			}
			if onList[idx] {
				return errors.AssertionFailedf("core %d: %s is on a free list twice", core, a.page(idx))
			}
			onList[idx] = true
			n++
			if a.fill && !filledWith(a.pageMem(idx), FreeJunk) {
				return errors.AssertionFailedf("core %d: free %s was written to", core, a.page(idx))
			}
		}
		if n != p.n {
			return errors.AssertionFailedf("core %d: length %d, chain has %d", core, p.n, n)
		}
	}
	for i := range onList {
		allocated := a.allocated[i].Load()
		if onList[i] == allocated {
			return errors.AssertionFailedf("%s: allocated=%t, on free list=%t",
				a.page(int32(i)), allocated, onList[i])
		}
	}
	return nil
}
