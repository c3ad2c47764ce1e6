// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/teachos/kcore"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestHistogramRegistry(t *testing.T) {
	reg := newHistogramRegistry()
	a, b := reg.Register("read"), reg.Register("read")
	c := reg.Register("write")
	a.Record(time.Microsecond)
	b.Record(2 * time.Microsecond)
	b.Record(time.Hour)
	c.Record(time.Millisecond)

	counts := map[string]int64{}
	var names []string
	reg.Tick(func(tick histogramTick) {
		names = append(names, tick.Name)
		counts[tick.Name] = tick.Hist.TotalCount()
		if tick.Name == "read" {
			// Values above the range are clamped to it.
			require.GreaterOrEqual(t, tick.Hist.Max(), maxLatency.Nanoseconds()*9/10)
		}
	})
	require.Equal(t, []string{"read", "write"}, names)
	require.Equal(t, map[string]int64{"read": 3, "write": 1}, counts)

	// The next tick only sees new values, the cumulative histogram sees all.
	a.Record(time.Microsecond)
	reg.Tick(func(tick histogramTick) {
		if tick.Name == "read" {
			require.Equal(t, int64(1), tick.Hist.TotalCount())
			require.Equal(t, int64(4), tick.Cumulative.TotalCount())
		}
	})
}

func TestSampledMetricDownsample(t *testing.T) {
	var m sampledMetric
	for i := 1; i <= 6; i++ {
		m.record(float64(i))
	}
	require.Equal(t, []float64{1, 2, 3, 4, 5, 6}, m.downsample(10))
	require.Equal(t, []float64{2, 5}, m.downsample(2))
	require.Equal(t, []float64{1.5, 3.5, 5.5}, m.downsample(3))
}

func TestImagePackUnpack(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "disk0.img")
	img := bytes.Repeat([]byte("kcore-image-"), 2*kcore.BlockSize/12+1)[:2*kcore.BlockSize]
	require.NoError(t, os.WriteFile(raw, img, 0o644))

	for _, ext := range []string{".zst", ".sz"} {
		packed := filepath.Join(dir, "disk0.img"+ext)
		out, err := runCmd(t, "image", "pack", raw, packed)
		require.NoError(t, err, out)
		require.Contains(t, out, "2 blocks")

		unpacked := filepath.Join(dir, "unpacked"+ext+".img")
		out, err = runCmd(t, "image", "unpack", packed, unpacked)
		require.NoError(t, err, out)
		got, err := os.ReadFile(unpacked)
		require.NoError(t, err)
		require.Equal(t, img, got)
	}

	_, err := runCmd(t, "image", "pack", raw, filepath.Join(dir, "other.img"))
	require.Error(t, err)
	_, err = runCmd(t, "image", "unpack", raw, filepath.Join(dir, "other.img"))
	require.Error(t, err)

	require.NoError(t, os.WriteFile(raw, img[:100], 0o644))
	_, err = runCmd(t, "image", "pack", raw, filepath.Join(dir, "short.zst"))
	require.ErrorContains(t, err, "not a multiple of the block size")
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	configPath = filepath.Join(dir, "kcore.toml")
	defer func() { configPath = "" }()
	require.NoError(t, os.WriteFile(configPath, []byte("[cache]\nbuffers = 8\n\n[alloc]\ncores = 2\npages = 64\n"), 0o644))

	out, err := runCmd(t, "stats", "--config", configPath, "--warm", "3", "--format", "text")
	require.NoError(t, err, out)
	require.Contains(t, out, "buffers = 8")
	require.Contains(t, out, "pages = 64")
	require.Contains(t, out, "cache:")
	require.Contains(t, out, "free per core:")

	out, err = runCmd(t, "stats", "--config", configPath, "--warm", "0", "--format", "table")
	require.NoError(t, err, out)
	require.Contains(t, out, "METRIC")
	require.Contains(t, out, "hits")
	require.Contains(t, out, "free (core 1)")

	_, err = runCmd(t, "stats", "--config", configPath, "--format", "yaml")
	require.Error(t, err)
}

func TestBench(t *testing.T) {
	for _, args := range [][]string{
		{"bench", "cache", "-c", "2", "-d", "300ms", "--keys", "uniform:0-63", "--rate", "0"},
		{"bench", "alloc", "-c", "2", "-d", "300ms", "--hold", "4", "--rate", "0"},
	} {
		t.Run(args[1], func(t *testing.T) {
			out, err := runCmd(t, args...)
			require.NoError(t, err, out)
			require.Contains(t, out, "ops(total)")
			require.Contains(t, out, args[1])
			// The effective options are echoed before the run.
			require.Contains(t, out, "[cache]")
			require.Contains(t, out, "concurrency 2")
		})
	}
}
