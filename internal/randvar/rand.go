// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package randvar provides the random variables used to pick block numbers in
// benchmarks.
package randvar

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"
)

// Var is a random variable over a closed range of integers. Implementations
// are safe for concurrent use.
type Var interface {
	Uint64() uint64
}

// NewRand creates a new random number generator seeded from the clock.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
}

func ensureRand(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return NewRand()
}

var specRE = regexp.MustCompile(`^(?:(uniform|zipf):)?(\d+)(?:-(\d+))?$`)

// Parse parses a random variable spec of the form [dist:]min[-max], where
// dist is "uniform" (the default) or "zipf". A spec without max is the
// constant min.
func Parse(spec string, rng *rand.Rand) (Var, error) {
	m := specRE.FindStringSubmatch(strings.ToLower(spec))
	if m == nil {
		return nil, errors.Newf("invalid random variable spec: %q", spec)
	}
	min, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid random variable spec: %q", spec)
	}
	max := min
	if m[3] != "" {
		if max, err = strconv.ParseUint(m[3], 10, 64); err != nil {
			return nil, errors.Wrapf(err, "invalid random variable spec: %q", spec)
		}
	}
	if min > max {
		return nil, errors.Newf("invalid random variable spec: %q: min %d > max %d", spec, min, max)
	}
	switch m[1] {
	case "", "uniform":
		return NewUniform(rng, min, max), nil
	default:
		return NewZipf(rng, min, max, DefaultTheta)
	}
}
