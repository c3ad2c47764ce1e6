// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package spinlock

import (
	"testing"

	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/stretchr/testify/require"
	"github.com/teachos/kcore/internal/base"
	"github.com/teachos/kcore/internal/invariants"
	"golang.org/x/sync/errgroup"
)

func TestMutex(t *testing.T) {
	var m Mutex
	require.False(t, m.Held())
	m.Lock()
	require.True(t, m.Held())
	m.AssertHeld()
	m.Unlock()
	require.False(t, m.Held())
}

func TestMutexAssertHeld(t *testing.T) {
	var m Mutex
	if invariants.Enabled {
		require.Panics(t, m.AssertHeld)
	} else {
		require.NotPanics(t, m.AssertHeld)
	}
	m.Lock()
	require.NotPanics(t, m.AssertHeld)
	m.Unlock()
}

func TestMutexUnlockUnlocked(t *testing.T) {
	var m Mutex
	defer func() {
		require.True(t, base.IsContractViolation(recover()))
	}()
	m.Unlock()
}

func TestMutexContention(t *testing.T) {
	defer leaktest.AfterTest(t)()

	const workers = 8
	const iters = 2000
	var m Mutex
	var counter int
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for range iters {
				m.Lock()
				counter++
				m.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, workers*iters, counter)
	require.False(t, m.Held())
}
