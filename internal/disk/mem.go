// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package disk

import (
	"sync"
	"sync/atomic"

	"github.com/teachos/kcore/internal/base"
)

// Mem is an in-memory Device. Blocks that were never written read as zeros.
type Mem struct {
	mu struct {
		sync.Mutex
		devs map[uint32]map[uint32][]byte
		// inject, if set, is consulted before every transfer.
		inject func(op Op, dev, blockno uint32) error
	}
	reads  atomic.Uint64
	writes atomic.Uint64
}

var _ Device = (*Mem)(nil)

// NewMem returns an empty in-memory device.
func NewMem() *Mem {
	m := &Mem{}
	m.mu.devs = make(map[uint32]map[uint32][]byte)
	return m
}

// ReadBlock implements Device.
func (m *Mem) ReadBlock(dev, blockno uint32, p []byte) error {
	if err := checkLen(OpRead, dev, blockno, p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mu.inject != nil {
		if err := m.mu.inject(OpRead, dev, blockno); err != nil {
			return err
		}
	}
	m.reads.Add(1)
	if b, ok := m.mu.devs[dev][blockno]; ok {
		copy(p, b)
	} else {
		clear(p)
	}
	return nil
}

// WriteBlock implements Device.
func (m *Mem) WriteBlock(dev, blockno uint32, p []byte) error {
	if err := checkLen(OpWrite, dev, blockno, p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mu.inject != nil {
		if err := m.mu.inject(OpWrite, dev, blockno); err != nil {
			return err
		}
	}
	m.writes.Add(1)
	blocks, ok := m.mu.devs[dev]
	if !ok {
		blocks = make(map[uint32][]byte)
		m.mu.devs[dev] = blocks
	}
	b, ok := blocks[blockno]
	if !ok {
		b = make([]byte, base.BlockSize)
		blocks[blockno] = b
	}
	copy(b, p)
	return nil
}

// SetInjector installs fn to be called before every transfer; a non-nil
// return fails the transfer with that error. Passing nil removes it.
func (m *Mem) SetInjector(fn func(op Op, dev, blockno uint32) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.inject = fn
}

// Reads returns the number of completed block reads.
func (m *Mem) Reads() uint64 { return m.reads.Load() }

// Writes returns the number of completed block writes.
func (m *Mem) Writes() uint64 { return m.writes.Load() }

// Image returns the contents of dev as a contiguous byte slice covering
// blocks [0, n) where n-1 is the highest block ever written.
func (m *Mem) Image(dev uint32) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	blocks := m.mu.devs[dev]
	var n uint32
	for blockno := range blocks {
		n = max(n, blockno+1)
	}
	img := make([]byte, int(n)*base.BlockSize)
	for blockno, b := range blocks {
		copy(img[int(blockno)*base.BlockSize:], b)
	}
	return img
}

// SetImage replaces the contents of dev with img, which is split into
// blocks. A trailing partial block is zero padded.
func (m *Mem) SetImage(dev uint32, img []byte) {
	blocks := make(map[uint32][]byte, (len(img)+base.BlockSize-1)/base.BlockSize)
	for off, blockno := 0, uint32(0); off < len(img); off, blockno = off+base.BlockSize, blockno+1 {
		b := make([]byte, base.BlockSize)
		copy(b, img[off:])
		blocks[blockno] = b
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.devs[dev] = blocks
}
