// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package disk defines the synchronous block storage primitive consumed by
// the buffer cache, along with in-memory and file-backed implementations.
package disk

import (
	"github.com/cockroachdb/errors"
	"github.com/teachos/kcore/internal/base"
)

// Device transfers whole blocks between memory and storage. Both methods
// block until the transfer completes and operate on exactly base.BlockSize
// bytes addressed by a device number and a block number. Implementations must
// be safe for concurrent use; the buffer cache guarantees that no two
// transfers for the same block are in flight at once.
type Device interface {
	ReadBlock(dev, blockno uint32, p []byte) error
	WriteBlock(dev, blockno uint32, p []byte) error
}

// Op identifies the direction of a transfer.
type Op uint8

const (
	OpRead Op = iota
	OpWrite
)

func (o Op) String() string {
	if o == OpWrite {
		return "write"
	}
	return "read"
}

func checkLen(op Op, dev, blockno uint32, p []byte) error {
	if len(p) != base.BlockSize {
		return errors.AssertionFailedf("disk: %s of (%d, %d) with %d-byte buffer, want %d",
			op, dev, blockno, len(p), base.BlockSize)
	}
	return nil
}
