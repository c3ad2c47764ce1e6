// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build unix

package disk

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/teachos/kcore/internal/base"
)

func TestFile(t *testing.T) {
	f, err := OpenFile(t.TempDir())
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	p := make([]byte, base.BlockSize)
	require.NoError(t, f.ReadBlock(0, 9, p))
	require.Equal(t, block(0), p)

	require.NoError(t, f.WriteBlock(0, 9, block('z')))
	require.NoError(t, f.WriteBlock(1, 0, block('y')))
	require.NoError(t, f.Sync())

	require.NoError(t, f.ReadBlock(0, 9, p))
	require.Equal(t, block('z'), p)
	require.NoError(t, f.ReadBlock(0, 8, p))
	require.Equal(t, block(0), p)

	fi, err := os.Stat(f.ImagePath(0))
	require.NoError(t, err)
	require.Equal(t, int64(10*base.BlockSize), fi.Size())

	// Reopening sees the same contents.
	require.NoError(t, f.Close())
	require.NoError(t, f.ReadBlock(1, 0, p))
	require.Equal(t, block('y'), p)
}
