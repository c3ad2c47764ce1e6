// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

var (
	// ErrResourceExhausted means that every buffer in the cache is referenced
	// and none can be evicted to satisfy a miss.
	ErrResourceExhausted = errors.New("kcore: no evictable buffer")

	// ErrAllocationFailed means that neither the local core nor any other core
	// has a free physical page.
	ErrAllocationFailed = errors.New("kcore: out of physical pages")

	// ErrContractViolation marks panics raised when a caller breaks the
	// contract of an operation.
	ErrContractViolation = errors.New("kcore: contract violation")
)

// ContractViolationf returns an assertion failure wrapping
// ErrContractViolation. The result is meant to be passed to panic:
//
//	panic(base.ContractViolationf("bcache: release of unheld buffer %s", b))
func ContractViolationf(format string, args ...interface{}) error {
	return errors.WithAssertionFailure(errors.WrapWithDepthf(1, ErrContractViolation, format, args...))
}

// IsContractViolation reports whether v, typically the value recovered from a
// panic, is a contract violation.
func IsContractViolation(v interface{}) bool {
	err, ok := v.(error)
	return ok && errors.Is(err, ErrContractViolation)
}

// ExhaustedErrorf returns an error wrapping ErrResourceExhausted, with the
// formatted message as context.
func ExhaustedErrorf(format string, args ...interface{}) error {
	return errors.WrapWithDepthf(1, ErrResourceExhausted, format, args...)
}

// AllocationFailedErrorf returns an error wrapping ErrAllocationFailed, with
// the formatted message as context.
func AllocationFailedErrorf(format string, args ...interface{}) error {
	return errors.WrapWithDepthf(1, ErrAllocationFailed, format, args...)
}
