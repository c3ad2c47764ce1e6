// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kalloc

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/teachos/kcore/internal/base"
	"github.com/teachos/kcore/internal/invariants"
	"github.com/teachos/kcore/internal/testutils"
	"golang.org/x/sync/errgroup"
)

const testPhysBase = 0x80000000

// switchCore is an Affinity whose core is chosen by the test.
type switchCore struct {
	id atomic.Int64
}

func (s *switchCore) Acquire() Token {
	return Token{id: int(s.id.Load())}
}

func contractViolation(fn func()) (ok bool) {
	defer func() {
		ok = base.IsContractViolation(recover())
	}()
	fn()
	return false
}

func pageNum(addr uintptr) uintptr {
	return (addr - testPhysBase) / base.PageSize
}

func (a *Allocator) chain(core int) []int32 {
	p := &a.pools[core]
	p.mu.Lock()
	defer p.mu.Unlock()
	var res []int32
	for idx := p.head; idx != nilPage; idx = a.next[idx] {
		res = append(res, idx)
	}
	return res
}

func TestAllocatorDataDriven(t *testing.T) {
	var a *Allocator
	var cores switchCore
	pages := map[string]Page{}
	defer func() {
		if a != nil {
			a.Close()
		}
	}()
	datadriven.RunTest(t, "testdata/kalloc", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "init":
			if a != nil {
				a.Close()
			}
			opts := Options{PhysBase: testPhysBase, Affinity: &cores, Logger: testutils.Logger{T: t}}
			td.ScanArgs(t, "cores", &opts.Cores)
			td.ScanArgs(t, "pages", &opts.Pages)
			td.MaybeScanArgs(t, "reserved", &opts.Reserved)
			opts.Fill = FillAlways
			cores.id.Store(0)
			a = New(opts)
			pages = map[string]Page{}
			return ""

		case "core":
			var id int
			td.ScanArgs(t, "id", &id)
			cores.id.Store(int64(id))
			return ""

		case "alloc":
			var name string
			td.ScanArgs(t, "name", &name)
			p, err := a.Alloc()
			if errors.Is(err, base.ErrAllocationFailed) {
				return "allocation failed"
			} else if err != nil {
				return err.Error()
			}
			pages[name] = p
			return fmt.Sprintf("%s: page %d", name, pageNum(p.Addr()))

		case "free":
			var name string
			td.ScanArgs(t, "name", &name)
			if contractViolation(func() { a.Free(pages[name]) }) {
				return "contract violation"
			}
			return ""

		case "free-all":
			for _, name := range crstrings.Lines(td.Input) {
				p, ok := pages[name]
				if !ok {
					td.Fatalf(t, "unknown page %q", name)
				}
				a.Free(p)
			}
			return ""

		case "free-addr":
			var page, offset int
			td.ScanArgs(t, "page", &page)
			td.MaybeScanArgs(t, "offset", &offset)
			pa := uintptr(testPhysBase + page*base.PageSize + offset)
			if contractViolation(func() { a.FreeAddr(pa) }) {
				return "contract violation"
			}
			return ""

		case "pools":
			var buf strings.Builder
			for core := range a.pools {
				fmt.Fprintf(&buf, "core %d:", core)
				chain := a.chain(core)
				if len(chain) == 0 {
					buf.WriteString(" empty")
				}
				for _, idx := range chain {
					fmt.Fprintf(&buf, " %d", pageNum(a.page(idx).Addr()))
				}
				buf.WriteString("\n")
			}
			return buf.String()

		case "metrics":
			m := a.Metrics()
			return fmt.Sprintf("allocs=%d frees=%d steals=%d stolen=%d failures=%d free=%v",
				m.Allocs, m.Frees, m.Steals, m.PagesStolen, m.Failures, m.FreePages)

		case "check":
			if err := a.CheckInvariants(); err != nil {
				return err.Error()
			}
			return "ok"

		default:
			return fmt.Sprintf("unknown command: %s", td.Cmd)
		}
	})
}

func TestStealSplit(t *testing.T) {
	for k := 1; k <= 33; k++ {
		t.Run(fmt.Sprint(k), func(t *testing.T) {
			a := New(Options{Cores: 2, Pages: k, PhysBase: testPhysBase, Affinity: FixedCore(1)})
			defer a.Close()
			before := a.chain(0)
			require.Len(t, before, k)

			p, err := a.Alloc()
			require.NoError(t, err)
			victim, thief := a.chain(0), a.chain(1)
			require.Len(t, victim, k/2)
			require.Len(t, thief, (k+1)/2-1)
			if k >= 2 {
				require.NotEmpty(t, victim)
			}
			// The thief takes the front of the chain: the returned page was
			// the head, its pool holds the pages that followed it and the
			// victim keeps the back half in order.
			require.Equal(t, a.page(before[0]).Addr(), p.Addr())
			require.Equal(t, before[1:(k+1)/2], nonNil(thief))
			require.Equal(t, before[(k+1)/2:], nonNil(victim))

			m := a.Metrics()
			require.Equal(t, int64(1), m.Steals)
			require.Equal(t, int64((k+1)/2), m.PagesStolen)
			require.Equal(t, []int64{int64(k / 2), int64((k+1)/2 - 1)}, m.FreePages)
			a.Free(p)
			require.NoError(t, a.CheckInvariants())
		})
	}
}

// nonNil returns s, or an empty non-nil slice, so that empty chains compare
// equal to empty subslices.
func nonNil(s []int32) []int32 {
	if s == nil {
		return []int32{}
	}
	return s
}

func TestStealLogging(t *testing.T) {
	logger := &testutils.RecordingLogger{T: t}
	var cores switchCore
	a := New(Options{Cores: 2, Pages: 8, PhysBase: testPhysBase, Affinity: &cores, Logger: logger})
	defer a.Close()

	cores.id.Store(1)
	var pages []Page
	for range 8 {
		p, err := a.Alloc()
		require.NoError(t, err)
		pages = append(pages, p)
	}
	_, err := a.Alloc()
	require.ErrorIs(t, err, base.ErrAllocationFailed)

	// Core 1 stole four times (4, 2, 1 and 1 pages) but only the first is
	// reported.
	m := a.Metrics()
	require.Equal(t, int64(4), m.Steals)
	require.Equal(t, int64(8), m.PagesStolen)
	require.Equal(t, []string{"kalloc: core 1: first steal, 4 pages from core 0"}, logger.Lines("steal"))
	require.Len(t, logger.Lines("no free page"), 1)

	for _, p := range pages {
		a.Free(p)
	}
	require.NoError(t, a.CheckInvariants())
}

func TestPoolRequiresLock(t *testing.T) {
	next := make([]int32, 2)
	p := pool{head: nilPage}
	push := func() { p.push(next, 0) }
	if invariants.Enabled {
		require.Panics(t, push)
	}
	p.mu.Lock()
	p.push(next, 0)
	p.push(next, 1)
	head, tail, n := p.split(next)
	p.mu.Unlock()
	require.Equal(t, int32(1), head)
	require.Equal(t, int32(1), tail)
	require.Equal(t, int32(1), n)
	require.Equal(t, int32(1), p.n)
}

func TestSentinelFill(t *testing.T) {
	a := New(Options{Cores: 2, Pages: 16, Reserved: 4, PhysBase: testPhysBase, Fill: FillAlways, Affinity: FixedCore(0)})
	defer a.Close()

	var pages []Page
	for {
		p, err := a.Alloc()
		if err != nil {
			require.ErrorIs(t, err, base.ErrAllocationFailed)
			break
		}
		require.Len(t, p.Bytes(), base.PageSize)
		require.True(t, filledWith(p.Bytes(), AllocJunk), "%s", p)
		require.Zero(t, p.Addr()%base.PageSize)
		require.GreaterOrEqual(t, p.Addr(), uintptr(testPhysBase+4*base.PageSize))
		require.Less(t, p.Addr(), uintptr(testPhysBase+16*base.PageSize))
		p.Bytes()[0] = 'x'
		pages = append(pages, p)
	}
	require.Len(t, pages, 12)
	require.Equal(t, int64(1), a.Metrics().Failures)

	for _, p := range pages {
		mem := p.Bytes()
		a.Free(p)
		require.True(t, filledWith(mem, FreeJunk))
	}
	require.NoError(t, a.CheckInvariants())

	// A write to a free page is caught.
	a.mem[0] = 0
	require.Error(t, a.CheckInvariants())
}

func TestFillNever(t *testing.T) {
	a := New(Options{Cores: 1, Pages: 2, PhysBase: testPhysBase, Fill: FillNever, Affinity: FixedCore(0)})
	defer a.Close()
	p, err := a.Alloc()
	require.NoError(t, err)
	require.True(t, filledWith(p.Bytes(), 0))
	p.Bytes()[7] = 7
	a.Free(p)
	require.NoError(t, a.CheckInvariants())
}

func TestContractViolations(t *testing.T) {
	a := New(Options{Cores: 2, Pages: 8, Reserved: 2, PhysBase: testPhysBase, Affinity: FixedCore(0)})
	defer a.Close()

	p, err := a.Alloc()
	require.NoError(t, err)
	require.True(t, contractViolation(func() { a.FreeAddr(p.Addr() + 1) }))
	require.True(t, contractViolation(func() { a.FreeAddr(p.Addr() + base.PageSize/2) }))
	require.True(t, contractViolation(func() { a.FreeAddr(testPhysBase) }))
	require.True(t, contractViolation(func() { a.FreeAddr(testPhysBase + 8*base.PageSize) }))
	require.True(t, contractViolation(func() { a.FreeAddr(testPhysBase - base.PageSize) }))
	a.Free(p)
	require.True(t, contractViolation(func() { a.Free(p) }))
	require.Equal(t, int64(1), a.Metrics().Frees)
	require.NoError(t, a.CheckInvariants())

	b := New(Options{Cores: 2, Pages: 2, PhysBase: testPhysBase, Affinity: FixedCore(2)})
	defer b.Close()
	require.True(t, contractViolation(func() { _, _ = b.Alloc() }))
}

func TestNewInvalidOptions(t *testing.T) {
	require.Panics(t, func() { New(Options{Cores: 0, Pages: 4}) })
	require.Panics(t, func() { New(Options{Cores: 1, Pages: 4, Reserved: 4}) })
	require.Panics(t, func() { New(Options{Cores: 1, Pages: 4, PhysBase: 0x1001}) })
}

func TestFillMode(t *testing.T) {
	for _, m := range []FillMode{FillDefault, FillAlways, FillNever} {
		got, err := ParseFillMode(m.String())
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
	_, err := ParseFillMode("sometimes")
	require.Error(t, err)
}

func TestCores(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := NewCores(2)
	t0, t1 := c.Acquire(), c.Acquire()
	require.ElementsMatch(t, []int{0, 1}, []int{t0.ID(), t1.ID()})

	acquired := make(chan Token)
	go func() { acquired <- c.Acquire() }()
	select {
	case <-acquired:
		t.Fatal("acquired a third core")
	default:
	}
	t1.Release()
	t2 := <-acquired
	require.Equal(t, t1.ID(), t2.ID())
	t0.Release()
	t2.Release()
}

func TestConcurrentAllocFree(t *testing.T) {
	defer leaktest.AfterTest(t)()
	const (
		cores   = 4
		pages   = 256
		workers = 8
		ops     = 2000
	)
	a := New(Options{
		Cores:    cores,
		Pages:    pages,
		PhysBase: testPhysBase,
		Fill:     FillAlways,
		Affinity: NewCores(cores),
		Logger:   testutils.Logger{T: t},
	})
	defer a.Close()

	// owner records which worker holds each page.
	var owner [pages]atomic.Int32
	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(uint64(w), 7))
			var held []Page
			for range ops {
				if len(held) > 0 && (rng.IntN(2) == 0 || len(held) >= pages/workers) {
					i := rng.IntN(len(held))
					p := held[i]
					held[i] = held[len(held)-1]
					held = held[:len(held)-1]
					if !owner[pageNum(p.Addr())].CompareAndSwap(int32(w+1), 0) {
						return errors.Newf("%s freed by a worker that does not own it", p)
					}
					a.Free(p)
					continue
				}
				p, err := a.Alloc()
				if errors.Is(err, base.ErrAllocationFailed) {
					// The last free pages may be in transit between a
					// victim and a thief.
					continue
				} else if err != nil {
					return err
				}
				if !filledWith(p.Bytes(), AllocJunk) {
					return errors.Newf("%s not filled with alloc junk", p)
				}
				if !owner[pageNum(p.Addr())].CompareAndSwap(0, int32(w+1)) {
					return errors.Newf("%s handed out twice", p)
				}
				fill(p.Bytes(), byte(w))
				held = append(held, p)
			}
			for _, p := range held {
				owner[pageNum(p.Addr())].Store(0)
				a.Free(p)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, a.CheckInvariants())
	m := a.Metrics()
	require.Equal(t, int64(pages), m.Free())
	require.Equal(t, m.Allocs, m.Frees)
}
