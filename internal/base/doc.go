// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines the fundamental types and constants shared by the
// buffer cache and the page allocator: block and page sizes, the logical
// clock, the logger interface and the error taxonomy.
//
// # Errors
//
// Three kinds of failure are distinguished and never conflated:
//
//   - ErrResourceExhausted is returned by the buffer cache when every buffer is
//     referenced. The requesting operation cannot make progress and must fail.
//   - ErrAllocationFailed is returned by the page allocator when no core has a
//     free page. Callers are expected to fail the higher-level request.
//   - Contract violations (releasing a buffer that is not held, freeing a
//     misaligned page, unbalanced unpins) are programming errors in a caller.
//     They are raised with panic and are never returned. A harness can
//     recover the panic value and test it with IsContractViolation.
package base
