// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kcore

import (
	"github.com/teachos/kcore/internal/base"
	"github.com/teachos/kcore/internal/bcache"
	"github.com/teachos/kcore/internal/kalloc"
)

// BlockSize is the size of a disk block.
const BlockSize = base.BlockSize

// PageSize is the size of a physical page.
const PageSize = base.PageSize

// Cache is the block buffer cache.
type Cache = bcache.Cache

// Buf is a buffer of the block cache.
type Buf = bcache.Buf

// Allocator is the physical page allocator.
type Allocator = kalloc.Allocator

// Page is an allocated physical page.
type Page = kalloc.Page

// FillMode controls sentinel filling of pages.
type FillMode = kalloc.FillMode

// Fill modes.
const (
	FillDefault = kalloc.FillDefault
	FillAlways  = kalloc.FillAlways
	FillNever   = kalloc.FillNever
)

// Sentinel bytes written to pages when sentinel fill is on.
const (
	AllocJunk = kalloc.AllocJunk
	FreeJunk  = kalloc.FreeJunk
)

// Affinity identifies the calling core to the page allocator.
type Affinity = kalloc.Affinity

// NewCores returns an Affinity handing out n core tokens.
func NewCores(n int) *kalloc.Cores {
	return kalloc.NewCores(n)
}

// Logger defines an interface for writing log messages.
type Logger = base.Logger

// DefaultLogger logs to the Go stdlib logs.
type DefaultLogger = base.DefaultLogger

var (
	// ErrResourceExhausted is returned by the cache when every buffer is
	// referenced.
	ErrResourceExhausted = base.ErrResourceExhausted
	// ErrAllocationFailed is returned by the allocator when no core has a
	// free page.
	ErrAllocationFailed = base.ErrAllocationFailed
)

// IsContractViolation reports whether v, a value recovered from a panic,
// reports misuse of the cache or the allocator.
func IsContractViolation(v interface{}) bool {
	return base.IsContractViolation(v)
}
