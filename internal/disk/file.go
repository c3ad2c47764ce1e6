// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build unix

package disk

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/teachos/kcore/internal/base"
	"golang.org/x/sys/unix"
)

// File is a Device that stores each device number in its own image file
// inside a directory. Transfers use positioned reads and writes so that
// concurrent transfers on one file do not share a file offset.
type File struct {
	dir string
	mu  struct {
		sync.Mutex
		files map[uint32]*os.File
	}
}

var _ Device = (*File)(nil)

// OpenFile returns a File device rooted at dir, creating the directory if
// needed. Image files are opened lazily on first access.
func OpenFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "disk: creating %s", dir)
	}
	f := &File{dir: dir}
	f.mu.files = make(map[uint32]*os.File)
	return f, nil
}

// ImagePath returns the path of the image file backing dev.
func (f *File) ImagePath(dev uint32) string {
	return filepath.Join(f.dir, fmt.Sprintf("disk%d.img", dev))
}

func (f *File) file(dev uint32) (*os.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if file, ok := f.mu.files[dev]; ok {
		return file, nil
	}
	file, err := os.OpenFile(f.ImagePath(dev), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "disk: opening device %d", dev)
	}
	f.mu.files[dev] = file
	return file, nil
}

// ReadBlock implements Device. Blocks beyond the end of the image read as
// zeros.
func (f *File) ReadBlock(dev, blockno uint32, p []byte) error {
	if err := checkLen(OpRead, dev, blockno, p); err != nil {
		return err
	}
	file, err := f.file(dev)
	if err != nil {
		return err
	}
	off := int64(blockno) * base.BlockSize
	n, err := unix.Pread(int(file.Fd()), p, off)
	if err != nil {
		return errors.Wrapf(err, "disk: reading block (%d, %d)", dev, blockno)
	}
	clear(p[n:])
	return nil
}

// WriteBlock implements Device.
func (f *File) WriteBlock(dev, blockno uint32, p []byte) error {
	if err := checkLen(OpWrite, dev, blockno, p); err != nil {
		return err
	}
	file, err := f.file(dev)
	if err != nil {
		return err
	}
	off := int64(blockno) * base.BlockSize
	for len(p) > 0 {
		n, err := unix.Pwrite(int(file.Fd()), p, off)
		if err != nil {
			return errors.Wrapf(err, "disk: writing block (%d, %d)", dev, blockno)
		}
		p = p[n:]
		off += int64(n)
	}
	return nil
}

// Sync flushes every open image file to stable storage.
func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	for dev, file := range f.mu.files {
		if e := file.Sync(); e != nil {
			err = errors.CombineErrors(err, errors.Wrapf(e, "disk: syncing device %d", dev))
		}
	}
	return err
}

// Close closes every open image file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	for dev, file := range f.mu.files {
		if e := file.Close(); e != nil {
			err = errors.CombineErrors(err, errors.Wrapf(e, "disk: closing device %d", dev))
		}
		delete(f.mu.files, dev)
	}
	return err
}
