// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kalloc

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/teachos/kcore/internal/invariants"
)

const (
	// AllocJunk fills pages returned by Alloc when sentinel fill is on.
	AllocJunk byte = 0x05
	// FreeJunk fills pages passed to Free when sentinel fill is on.
	FreeJunk byte = 0x01
)

// FillMode controls sentinel filling of pages.
type FillMode uint8

const (
	// FillDefault fills pages in invariant builds only.
	FillDefault FillMode = iota
	// FillAlways always fills pages.
	FillAlways
	// FillNever never fills pages.
	FillNever
)

func (m FillMode) String() string {
	switch m {
	case FillDefault:
		return "default"
	case FillAlways:
		return "always"
	case FillNever:
		return "never"
	default:
		return "unknown"
	}
}

// ParseFillMode parses the String form of a FillMode.
func ParseFillMode(s string) (FillMode, error) {
	for _, m := range []FillMode{FillDefault, FillAlways, FillNever} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, errors.Newf("kalloc: unknown fill mode %q", s)
}

func (m FillMode) enabled() bool {
	switch m {
	case FillAlways:
		return true
	case FillNever:
		return false
	default:
		return invariants.Enabled
	}
}

func fill(p []byte, junk byte) {
	if len(p) == 0 {
		return
	}
	p[0] = junk
	for n := 1; n < len(p); n *= 2 {
		copy(p[n:], p[:n])
	}
}

func filledWith(p []byte, junk byte) bool {
	return bytes.Count(p, []byte{junk}) == len(p)
}
