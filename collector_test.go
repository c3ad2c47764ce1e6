// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kcore

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"github.com/teachos/kcore/internal/clock"
	"github.com/teachos/kcore/internal/kalloc"
	"github.com/teachos/kcore/internal/testutils"
)

func TestCollector(t *testing.T) {
	k, err := New(&Options{
		Buffers:  2,
		Shards:   1,
		Cores:    2,
		Pages:    4,
		Affinity: kalloc.FixedCore(1),
		Clock:    clock.NewManual(0),
		Logger:   testutils.Logger{T: t},
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, k.Close()) }()

	for range 2 {
		b, err := k.Cache().GetOrLoad(1, 1)
		require.NoError(t, err)
		k.Cache().Release(b)
	}
	// Core 1 steals two of core 0's four pages.
	p := testutils.CheckErr(k.Allocator().Alloc())
	defer k.Allocator().Free(p)

	c := NewCollector(k)
	const expected = `
# HELP kcore_alloc_free_pages Pages on a core's free list.
# TYPE kcore_alloc_free_pages gauge
kcore_alloc_free_pages{core="0"} 2
kcore_alloc_free_pages{core="1"} 1
# HELP kcore_alloc_stolen_pages_total Pages moved between cores by steals.
# TYPE kcore_alloc_stolen_pages_total counter
kcore_alloc_stolen_pages_total 2
# HELP kcore_cache_hits_total Buffer cache lookups that found their block cached.
# TYPE kcore_cache_hits_total counter
kcore_cache_hits_total 1
# HELP kcore_cache_misses_total Buffer cache lookups that repurposed a buffer.
# TYPE kcore_cache_misses_total counter
kcore_cache_misses_total 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"kcore_alloc_free_pages", "kcore_alloc_stolen_pages_total",
		"kcore_cache_hits_total", "kcore_cache_misses_total"))
	require.Equal(t, 14, testutil.CollectAndCount(c))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)
	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}
	reads := byName["kcore_cache_reads_total"]
	require.NotNil(t, reads)
	require.Equal(t, dto.MetricType_COUNTER, reads.GetType())
	require.Equal(t, 1.0, reads.GetMetric()[0].GetCounter().GetValue())
	require.Len(t, byName["kcore_alloc_free_pages"].GetMetric(), 2)
}
