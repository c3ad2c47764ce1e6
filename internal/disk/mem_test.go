// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package disk

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/teachos/kcore/internal/base"
)

func block(b byte) []byte {
	return bytes.Repeat([]byte{b}, base.BlockSize)
}

func TestMem(t *testing.T) {
	m := NewMem()
	p := make([]byte, base.BlockSize)

	// Unwritten blocks read as zeros.
	copy(p, block(0xff))
	require.NoError(t, m.ReadBlock(1, 7, p))
	require.Equal(t, block(0), p)

	require.NoError(t, m.WriteBlock(1, 7, block('a')))
	require.NoError(t, m.WriteBlock(2, 7, block('b')))
	require.NoError(t, m.ReadBlock(1, 7, p))
	require.Equal(t, block('a'), p)
	require.NoError(t, m.ReadBlock(2, 7, p))
	require.Equal(t, block('b'), p)

	require.Equal(t, uint64(3), m.Reads())
	require.Equal(t, uint64(2), m.Writes())

	err := m.ReadBlock(1, 7, make([]byte, 10))
	require.True(t, errors.HasAssertionFailure(err))
}

func TestMemInjector(t *testing.T) {
	m := NewMem()
	boom := errors.New("boom")
	m.SetInjector(func(op Op, dev, blockno uint32) error {
		if op == OpWrite && blockno == 3 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, m.WriteBlock(0, 3, block(1)), boom)
	require.NoError(t, m.WriteBlock(0, 4, block(1)))
	require.Equal(t, uint64(1), m.Writes())
	m.SetInjector(nil)
	require.NoError(t, m.WriteBlock(0, 3, block(1)))
}

func TestMemImage(t *testing.T) {
	m := NewMem()
	require.NoError(t, m.WriteBlock(0, 2, block('c')))
	img := m.Image(0)
	require.Len(t, img, 3*base.BlockSize)
	require.Equal(t, block(0), img[:base.BlockSize])
	require.Equal(t, block('c'), img[2*base.BlockSize:])

	m2 := NewMem()
	m2.SetImage(5, append(img, 'x'))
	p := make([]byte, base.BlockSize)
	require.NoError(t, m2.ReadBlock(5, 2, p))
	require.Equal(t, block('c'), p)
	require.NoError(t, m2.ReadBlock(5, 3, p))
	require.Equal(t, byte('x'), p[0])
	require.Equal(t, block(0)[1:], p[1:])
}
