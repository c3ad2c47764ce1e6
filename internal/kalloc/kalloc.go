// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package kalloc implements the kernel's physical page allocator.
//
// Free pages are kept on one free list per core, each guarded by a spin lock.
// Alloc and Free work on the pool of the calling core, identified by a Token
// from the allocator's Affinity. When its pool is empty, a core steals about
// half of the first non-empty pool it finds, in core order: the victim's
// chain is split at its midpoint, the thief takes the front half (rounded
// up), returns one page to the caller and keeps the rest in its own pool.
// The thief never holds its own pool lock and a victim's at the same time.
//
// At construction every managed page is placed on core 0's pool, mirroring
// boot on a single core.
package kalloc

import (
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/teachos/kcore/internal/base"
	"github.com/teachos/kcore/internal/invariants"
	"github.com/teachos/kcore/internal/manual"
)

// Options configures an Allocator.
type Options struct {
	// Cores is the number of per-core pools.
	Cores int
	// Pages is the size of physical memory in pages, reserved pages included.
	Pages int
	// Reserved is the number of pages at the bottom of physical memory that
	// hold the kernel image and are never managed.
	Reserved int
	// PhysBase is the physical address of page 0. It must be page aligned.
	PhysBase uintptr
	// Fill selects sentinel filling of allocated and freed pages.
	Fill FillMode
	// Affinity identifies the calling core. Defaults to NewCores(Cores).
	Affinity Affinity
	// Logger receives steal and failure reports. Defaults to
	// base.DefaultLogger.
	Logger base.Logger
}

// Page is an allocated physical page.
type Page struct {
	addr uintptr
	mem  []byte
}

// Addr returns the physical address of the page.
func (p Page) Addr() uintptr {
	return p.addr
}

// Bytes returns the content of the page. It must not be used after the page
// is freed.
func (p Page) Bytes() []byte {
	return p.mem
}

func (p Page) String() string {
	return fmt.Sprintf("page %#x", p.addr)
}

// Allocator is a per-core physical page allocator.
type Allocator struct {
	opts  Options
	fill  bool
	arena manual.Buf
	mem   []byte
	// start is the address of the first managed page.
	start uintptr

	// next links free pages by index. An entry is owned by whoever owns the
	// page: the pool whose chain it is on, or a thief between splitting a
	// victim's chain and splicing it into its own pool.
	next []int32
	// allocated detects frees of pages that are not allocated.
	allocated []atomic.Bool
	pools     []pool

	counters struct {
		allocs   atomic.Int64
		frees    atomic.Int64
		steals   atomic.Int64
		stolen   atomic.Int64
		failures atomic.Int64
	}
	closeCheck invariants.CloseChecker
}

// New creates an allocator managing the pages [Reserved, Pages) above
// PhysBase, all initially free on core 0.
func New(opts Options) *Allocator {
	switch {
	case opts.Cores <= 0:
		panic(errors.AssertionFailedf("kalloc: invalid core count %d", opts.Cores))
	case opts.Reserved < 0 || opts.Pages <= opts.Reserved:
		panic(errors.AssertionFailedf("kalloc: no pages to manage: %d pages, %d reserved",
			opts.Pages, opts.Reserved))
	case base.PageRoundUp(uint64(opts.PhysBase)) != uint64(opts.PhysBase):
		panic(errors.AssertionFailedf("kalloc: physical base %#x is not page aligned", opts.PhysBase))
	}
	if opts.Affinity == nil {
		opts.Affinity = NewCores(opts.Cores)
	}
	if opts.Logger == nil {
		opts.Logger = base.DefaultLogger{}
	}
	n := opts.Pages - opts.Reserved
	a := &Allocator{
		opts:      opts,
		fill:      opts.Fill.enabled(),
		arena:     manual.New(manual.PhysicalPages, uintptr(n)*base.PageSize),
		start:     opts.PhysBase + uintptr(opts.Reserved)*base.PageSize,
		next:      make([]int32, n),
		allocated: make([]atomic.Bool, n),
		pools:     make([]pool, opts.Cores),
	}
	a.mem = a.arena.Slice()
	for i := range a.pools {
		a.pools[i].head = nilPage
	}
	// Pages are pushed in address order, leaving the highest page at the head
	// of core 0's chain.
	boot := &a.pools[0]
	boot.mu.Lock()
	for i := range a.next {
		if a.fill {
			fill(a.pageMem(int32(i)), FreeJunk)
		}
		boot.push(a.next, int32(i))
	}
	boot.mu.Unlock()
	return a
}

// Close releases the page arena. No page may be used after Close.
func (a *Allocator) Close() {
	a.closeCheck.Close()
	var outstanding int
	for i := range a.allocated {
		if a.allocated[i].Load() {
			outstanding++
		}
	}
	if outstanding > 0 {
		a.opts.Logger.Errorf("kalloc: closing with %d pages allocated", outstanding)
	}
	manual.Free(manual.PhysicalPages, a.arena)
	a.arena, a.mem = manual.Buf{}, nil
}

// Alloc returns a free page, taken from the calling core's pool or stolen
// from another core. It fails with an error wrapping base.ErrAllocationFailed
// if no core has a free page.
func (a *Allocator) Alloc() (Page, error) {
	a.closeCheck.AssertNotClosed()
	tok := a.opts.Affinity.Acquire()
	defer tok.Release()
	return a.allocOn(a.core(tok))
}

func (a *Allocator) allocOn(core int) (Page, error) {
	p := &a.pools[core]
	p.mu.Lock()
	idx := p.pop(a.next)
	p.mu.Unlock()

	if idx == nilPage {
		idx = a.steal(core)
	}
	if idx == nilPage {
		a.counters.failures.Add(1)
		a.opts.Logger.Infof("kalloc: core %d: no free page on any of %d cores", core, len(a.pools))
		return Page{}, base.AllocationFailedErrorf(
			"kalloc: core %d: no free page on any of %d cores", core, len(a.pools))
	}
	a.allocated[idx].Store(true)
	a.counters.allocs.Add(1)
	pg := a.page(idx)
	if a.fill {
		fill(pg.mem, AllocJunk)
	}
	return pg, nil
}

// steal moves the front half of the first non-empty pool other than core's
// into core's pool and returns one of the stolen pages, or nilPage if every
// other pool is empty.
func (a *Allocator) steal(core int) int32 {
	for victim := range a.pools {
		if victim == core {
			continue
		}
		v := &a.pools[victim]
		v.mu.Lock()
		head, tail, taken := v.split(a.next)
		v.mu.Unlock()
		if head == nilPage {
			continue
		}

		a.counters.steals.Add(1)
		a.counters.stolen.Add(int64(taken))
		if p := &a.pools[core]; p.stole.CompareAndSwap(false, true) {
			a.opts.Logger.Infof("kalloc: core %d: first steal, %d pages from core %d", core, taken, victim)
		}
		if rest := a.next[head]; rest != nilPage {
			a.next[head] = nilPage
			p := &a.pools[core]
			p.mu.Lock()
			p.splice(a.next, rest, tail, taken-1)
			p.mu.Unlock()
		}
		return head
	}
	return nilPage
}

// Free returns p to the calling core's pool. Freeing a page that is not
// allocated is a contract violation.
func (a *Allocator) Free(p Page) {
	a.FreeAddr(p.addr)
}

// FreeAddr returns the page at physical address pa to the calling core's
// pool. pa must be the page aligned address of an allocated page in the
// managed range; anything else is a contract violation.
func (a *Allocator) FreeAddr(pa uintptr) {
	a.closeCheck.AssertNotClosed()
	idx := a.index(pa)
	if !a.allocated[idx].CompareAndSwap(true, false) {
		panic(base.ContractViolationf("kalloc: free of unallocated page %#x", pa))
	}
	if a.fill {
		fill(a.pageMem(idx), FreeJunk)
	}
	tok := a.opts.Affinity.Acquire()
	defer tok.Release()
	a.freeOn(a.core(tok), idx)
}

func (a *Allocator) freeOn(core int, idx int32) {
	p := &a.pools[core]
	p.mu.Lock()
	p.push(a.next, idx)
	p.mu.Unlock()
	a.counters.frees.Add(1)
}

func (a *Allocator) core(tok Token) int {
	id := tok.ID()
	if id < 0 || id >= len(a.pools) {
		panic(base.ContractViolationf("kalloc: core %d out of range [0, %d)", id, len(a.pools)))
	}
	return id
}

// index validates pa and returns its page index.
func (a *Allocator) index(pa uintptr) int32 {
	if uint64(pa) != base.PageRoundDown(uint64(pa)) {
		panic(base.ContractViolationf("kalloc: free of misaligned address %#x", pa))
	}
	if pa < a.start || pa >= a.start+uintptr(len(a.next))*base.PageSize {
		panic(base.ContractViolationf("kalloc: free of address %#x outside [%#x, %#x)",
			pa, a.start, a.start+uintptr(len(a.next))*base.PageSize))
	}
	return int32((pa - a.start) / base.PageSize)
}

func (a *Allocator) pageMem(idx int32) []byte {
	off := int(idx) * base.PageSize
	return a.mem[off : off+base.PageSize : off+base.PageSize]
}

func (a *Allocator) page(idx int32) Page {
	return Page{
		addr: a.start + uintptr(idx)*base.PageSize,
		mem:  a.pageMem(idx),
	}
}
