// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package kcore provides the two memory subsystems at the core of a teaching
// kernel: a block buffer cache in front of a disk and a physical page
// allocator with per-core free lists.
//
// A Kernel bundles both, configured by Options:
//
//	k, err := kcore.New(&kcore.Options{Buffers: 64})
//	if err != nil {
//		return err
//	}
//	defer k.Close()
//
//	b, err := k.Cache().GetOrLoad(dev, blockno)
//	...
//	k.Cache().Release(b)
//
//	p, err := k.Allocator().Alloc()
//	...
//	k.Allocator().Free(p)
//
// Both subsystems are safe for concurrent use. Misuse of either, such as
// releasing a buffer that is not held or freeing a misaligned address, panics
// with an error for which IsContractViolation returns true.
package kcore

import (
	"github.com/cockroachdb/errors"
	"github.com/teachos/kcore/internal/bcache"
	"github.com/teachos/kcore/internal/invariants"
	"github.com/teachos/kcore/internal/kalloc"
)

// Kernel owns a buffer cache and a page allocator.
type Kernel struct {
	opts  Options
	cache *bcache.Cache
	alloc *kalloc.Allocator
}

// New creates a kernel. opts may be nil, in which case all defaults are used.
func New(opts *Options) (*Kernel, error) {
	if opts == nil {
		opts = &Options{}
	}
	o := *opts
	o.EnsureDefaults()
	if err := o.Validate(); err != nil {
		return nil, errors.Wrap(err, "kcore: invalid options")
	}
	o.Logger.Infof("kcore: %d buffers on %d shards, %d pages (%d reserved) on %d cores, fill %s",
		o.Buffers, o.Shards, o.Pages, o.Reserved, o.Cores, o.Fill)
	return &Kernel{
		opts: o,
		cache: bcache.New(bcache.Options{
			Buffers: o.Buffers,
			Shards:  o.Shards,
			Device:  o.Device,
			Clock:   o.Clock,
			Logger:  o.Logger,
		}),
		alloc: kalloc.New(kalloc.Options{
			Cores:    o.Cores,
			Pages:    o.Pages,
			Reserved: o.Reserved,
			PhysBase: o.PhysBase,
			Fill:     o.Fill,
			Affinity: o.Affinity,
			Logger:   o.Logger,
		}),
	}, nil
}

// Options returns the options the kernel was created with, defaults filled
// in.
func (k *Kernel) Options() Options {
	return k.opts
}

// Cache returns the buffer cache.
func (k *Kernel) Cache() *Cache {
	return k.cache
}

// Allocator returns the page allocator.
func (k *Kernel) Allocator() *Allocator {
	return k.alloc
}

// CheckInvariants verifies the internal consistency of both subsystems. The
// allocator check requires that no Alloc or Free is in flight.
func (k *Kernel) CheckInvariants() error {
	return errors.CombineErrors(k.cache.CheckInvariants(), k.alloc.CheckInvariants())
}

// Close releases the memory of both subsystems. In invariant builds it first
// verifies their consistency and returns any violation found. The device is
// owned by the caller and is not closed.
func (k *Kernel) Close() error {
	var err error
	if invariants.Enabled {
		err = k.CheckInvariants()
	}
	k.cache.Close()
	k.alloc.Close()
	return err
}
