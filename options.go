// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kcore

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml"
	"github.com/teachos/kcore/internal/base"
	"github.com/teachos/kcore/internal/clock"
	"github.com/teachos/kcore/internal/disk"
	"github.com/teachos/kcore/internal/kalloc"
)

const (
	// DefaultBuffers is the default size of the buffer pool.
	DefaultBuffers = 30
	// DefaultShards is the default number of buffer hash table shards.
	DefaultShards = 13
	// DefaultCores is the default number of cores.
	DefaultCores = 8
	// DefaultPages is the default size of physical memory, in pages.
	DefaultPages = 1024
	// DefaultPhysBase is the default physical address of page 0.
	DefaultPhysBase = 0x80000000
	// DefaultTickInterval is the period of the default clock.
	DefaultTickInterval = 10 * time.Millisecond
)

// Options holds the parameters of a Kernel. The zero value is valid after
// EnsureDefaults.
type Options struct {
	// Buffers is the number of buffers in the block cache.
	//
	// The default value is 30.
	Buffers int

	// Shards is the number of shards of the block cache hash table. Buffers
	// migrate between shards on eviction, so Shards may exceed Buffers.
	//
	// The default value is 13.
	Shards int

	// Cores is the number of per-core page pools.
	//
	// The default value is 8.
	Cores int

	// Pages is the size of physical memory in pages, including Reserved.
	//
	// The default value is 1024.
	Pages int

	// Reserved is the number of pages at the bottom of physical memory that
	// hold the kernel image. They are never handed out.
	Reserved int

	// PhysBase is the physical address of page 0. It must be page aligned.
	//
	// The default value is 0x80000000.
	PhysBase uintptr

	// Fill selects sentinel filling of allocated and freed pages. The default
	// fills in invariant builds only.
	Fill kalloc.FillMode

	// Device is the storage behind the block cache. The default is an empty
	// in-memory device.
	Device disk.Device

	// Clock stamps released buffers for replacement. The default ticks every
	// DefaultTickInterval.
	Clock base.Clock

	// Affinity identifies the calling core to the page allocator. The default
	// hands out Cores core tokens.
	Affinity kalloc.Affinity

	// Logger is used to write log messages.
	//
	// The default logger uses the Go standard library log package.
	Logger base.Logger
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified.
func (o *Options) EnsureDefaults() {
	if o.Buffers <= 0 {
		o.Buffers = DefaultBuffers
	}
	if o.Shards <= 0 {
		o.Shards = DefaultShards
	}
	if o.Cores <= 0 {
		o.Cores = DefaultCores
	}
	if o.Pages <= 0 {
		o.Pages = DefaultPages
	}
	if o.PhysBase == 0 {
		o.PhysBase = DefaultPhysBase
	}
	if o.Device == nil {
		o.Device = disk.NewMem()
	}
	if o.Clock == nil {
		o.Clock = clock.NewTicker(DefaultTickInterval)
	}
	if o.Affinity == nil {
		o.Affinity = kalloc.NewCores(o.Cores)
	}
	if o.Logger == nil {
		o.Logger = base.DefaultLogger{}
	}
}

// String returns the configurable options as a TOML document that Parse
// accepts.
func (o *Options) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[cache]\n")
	fmt.Fprintf(&buf, "  buffers = %d\n", o.Buffers)
	fmt.Fprintf(&buf, "  shards = %d\n", o.Shards)
	fmt.Fprintf(&buf, "\n")
	fmt.Fprintf(&buf, "[alloc]\n")
	fmt.Fprintf(&buf, "  cores = %d\n", o.Cores)
	fmt.Fprintf(&buf, "  pages = %d\n", o.Pages)
	fmt.Fprintf(&buf, "  reserved = %d\n", o.Reserved)
	fmt.Fprintf(&buf, "  phys_base = %d\n", o.PhysBase)
	fmt.Fprintf(&buf, "  fill = %q\n", o.Fill)
	return buf.String()
}

// Parse parses the options from a TOML document with a [cache] and an
// [alloc] table, in the format produced by String. Options absent from the
// document are left unchanged. Unknown tables and keys are errors.
func (o *Options) Parse(s string) error {
	tree, err := toml.Load(s)
	if err != nil {
		return errors.Wrap(err, "kcore: parsing options")
	}
	for _, section := range tree.Keys() {
		sub, ok := tree.Get(section).(*toml.Tree)
		if !ok {
			return errors.Errorf("kcore: option %s is not a table", errors.Safe(section))
		}
		for _, key := range sub.Keys() {
			if err := o.parseKey(section, key, sub.Get(key)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Options) parseKey(section, key string, value interface{}) error {
	intValue := func() (int64, error) {
		v, ok := value.(int64)
		if !ok {
			return 0, errors.Errorf("kcore: option %s.%s: expected an integer, got %T",
				errors.Safe(section), errors.Safe(key), value)
		}
		return v, nil
	}
	var v int64
	var err error
	switch section + "." + key {
	case "cache.buffers":
		v, err = intValue()
		o.Buffers = int(v)
	case "cache.shards":
		v, err = intValue()
		o.Shards = int(v)
	case "alloc.cores":
		v, err = intValue()
		o.Cores = int(v)
	case "alloc.pages":
		v, err = intValue()
		o.Pages = int(v)
	case "alloc.reserved":
		v, err = intValue()
		o.Reserved = int(v)
	case "alloc.phys_base":
		v, err = intValue()
		o.PhysBase = uintptr(v)
	case "alloc.fill":
		s, ok := value.(string)
		if !ok {
			return errors.Errorf("kcore: option alloc.fill: expected a string, got %T", value)
		}
		o.Fill, err = kalloc.ParseFillMode(s)
	default:
		return errors.Errorf("kcore: unknown option: %s.%s", errors.Safe(section), errors.Safe(key))
	}
	return err
}

// Validate verifies that the options are mutually consistent. It lists every
// violation found.
func (o *Options) Validate() error {
	// Note that we can presume Options.EnsureDefaults has been called, so there
	// is no need to check for zero values.

	var buf strings.Builder
	if o.Buffers < 1 {
		fmt.Fprintf(&buf, "Buffers (%d) must be >= 1\n", o.Buffers)
	}
	if o.Shards < 1 {
		fmt.Fprintf(&buf, "Shards (%d) must be >= 1\n", o.Shards)
	}
	if o.Cores < 1 {
		fmt.Fprintf(&buf, "Cores (%d) must be >= 1\n", o.Cores)
	}
	if o.Reserved < 0 {
		fmt.Fprintf(&buf, "Reserved (%d) must be >= 0\n", o.Reserved)
	}
	if o.Pages <= o.Reserved {
		fmt.Fprintf(&buf, "Pages (%d) must be > Reserved (%d)\n", o.Pages, o.Reserved)
	}
	if o.PhysBase%base.PageSize != 0 {
		fmt.Fprintf(&buf, "PhysBase (%#x) must be a multiple of %d\n", o.PhysBase, base.PageSize)
	}
	if o.Fill > kalloc.FillNever {
		fmt.Fprintf(&buf, "Fill (%d) is not a valid fill mode\n", o.Fill)
	}

	if buf.Len() == 0 {
		return nil
	}
	return errors.New(buf.String())
}
