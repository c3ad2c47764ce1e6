// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kcore

import (
	"encoding/binary"
	stderrors "errors"
	"math/rand/v2"
	"testing"

	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/errors"
	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
	"github.com/teachos/kcore/internal/clock"
	"github.com/teachos/kcore/internal/disk"
	"github.com/teachos/kcore/internal/kalloc"
	"github.com/teachos/kcore/internal/testutils"
	"golang.org/x/sync/errgroup"
)

func TestKernelDefaults(t *testing.T) {
	k, err := New(nil)
	require.NoError(t, err)
	o := k.Options()
	require.Equal(t, DefaultBuffers, o.Buffers)
	m := k.Metrics()
	require.Equal(t, int64(DefaultBuffers), m.Cache.Buffers)
	require.Equal(t, int64(DefaultPages), m.Alloc.Pages)
	require.Equal(t, int64(DefaultPages), m.Alloc.FreePages[0])
	require.GreaterOrEqual(t, m.Memory.PageBytes, uint64(DefaultPages*PageSize))
	require.NoError(t, k.Close())
}

func TestErrorsMatchWithStdlib(t *testing.T) {
	k, err := New(&Options{
		Buffers:  2,
		Shards:   1,
		Cores:    1,
		Pages:    1,
		Affinity: kalloc.FixedCore(0),
		Clock:    clock.NewManual(0),
		Logger:   testutils.Logger{T: t},
	})
	require.NoError(t, err)

	p := testutils.CheckErr(k.Allocator().Alloc())
	_, err = k.Allocator().Alloc()
	require.True(t, stderrors.Is(err, ErrAllocationFailed), "%v", err)
	require.True(t, errors.Is(err, ErrAllocationFailed))
	require.ErrorIs(t, err, ErrAllocationFailed)
	k.Allocator().Free(p)

	var held []*Buf
	for i := range 2 {
		held = append(held, testutils.CheckErr(k.Cache().Get(1, uint32(i))))
	}
	_, err = k.Cache().Get(1, 2)
	require.True(t, stderrors.Is(err, ErrResourceExhausted), "%v", err)
	require.True(t, errors.Is(err, ErrResourceExhausted))
	require.False(t, stderrors.Is(err, ErrAllocationFailed))
	for _, b := range held {
		k.Cache().Release(b)
	}
	require.NoError(t, k.Close())
}

func TestOptionsStringFromKernel(t *testing.T) {
	k, err := New(&Options{Buffers: 4, Shards: 2, Cores: 1, Pages: 8, Logger: testutils.Logger{T: t}})
	require.NoError(t, err)
	defer func() { require.NoError(t, k.Close()) }()
	o := k.Options()
	var parsed Options
	require.NoError(t, parsed.Parse(o.String()))
	require.Equal(t, 4, parsed.Buffers)
	require.Equal(t, 2, parsed.Shards)
	require.Equal(t, 8, parsed.Pages)
}

func TestKernel(t *testing.T) {
	defer leaktest.AfterTest(t)()
	dev := disk.NewMem()
	k, err := New(&Options{
		Buffers:  16,
		Shards:   5,
		Cores:    4,
		Pages:    128,
		Reserved: 8,
		Fill:     FillAlways,
		Device:   dev,
		Clock:    clock.NewManual(0),
		Logger:   testutils.Logger{T: t},
	})
	require.NoError(t, err)

	const workers = 6
	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(uint64(w), 3))
			for i := range 200 {
				b, err := k.Cache().GetOrLoad(uint32(w), uint32(rng.IntN(8)))
				if err != nil {
					return err
				}
				binary.LittleEndian.PutUint64(b.Data(), uint64(i))
				if err := k.Cache().Write(b); err != nil {
					return err
				}
				k.Cache().Release(b)

				p, err := k.Allocator().Alloc()
				if errors.Is(err, ErrAllocationFailed) {
					continue
				} else if err != nil {
					return err
				}
				if p.Bytes()[0] != AllocJunk {
					return errors.Newf("%s not filled", p)
				}
				k.Allocator().Free(p)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, k.CheckInvariants())

	m := k.Metrics()
	require.Equal(t, int64(workers*200), m.Cache.Hits+m.Cache.Misses)
	require.Equal(t, int64(workers*200), m.Cache.Writes)
	require.Equal(t, int64(0), m.Cache.Referenced)
	require.Equal(t, int64(120), m.Alloc.Free())
	require.Equal(t, m.Alloc.Allocs, m.Alloc.Frees)

	s := m.String()
	for _, want := range []string{"cache:", "hits:", "alloc:", "free per core:", "memory:"} {
		require.Contains(t, s, want)
	}
	require.NoError(t, k.Close())
}

func TestKernelMetricsDiff(t *testing.T) {
	k, err := New(&Options{
		Buffers:  4,
		Shards:   2,
		Cores:    2,
		Pages:    8,
		Affinity: kalloc.FixedCore(0),
		Clock:    clock.NewManual(0),
		Logger:   testutils.Logger{T: t},
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, k.Close()) }()

	before := k.Metrics()
	b, err := k.Cache().GetOrLoad(0, 1)
	require.NoError(t, err)
	k.Cache().Release(b)
	after := k.Metrics()

	// Cache activity leaves the allocator untouched.
	require.Empty(t, pretty.Diff(before.Alloc, after.Alloc))
	diff := pretty.Diff(before.Cache, after.Cache)
	require.Len(t, diff, 3, "%v", diff)
	for i, field := range []string{"Assigned", "Misses", "Reads"} {
		require.Contains(t, diff[i], field)
	}
	require.InDelta(t, 0, after.HitRate(), 1e-9)

	b, err = k.Cache().GetOrLoad(0, 1)
	require.NoError(t, err)
	k.Cache().Release(b)
	require.InDelta(t, 0.5, k.Metrics().HitRate(), 1e-9)
}
