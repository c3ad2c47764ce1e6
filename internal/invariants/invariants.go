// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package invariants exposes build-tag controlled self-checks. Building with
// the "invariants" or "race" tags turns on assertions that are too expensive
// (or too noisy) for production kernels, such as sentinel filling of pages by
// default and use-after-close panics.
package invariants

