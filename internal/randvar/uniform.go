// Copyright 2018 The Cockroach Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License. See the AUTHORS file
// for names of contributors.

package randvar

import (
	"sync"

	"golang.org/x/exp/rand"
)

// Uniform draws from a uniform distribution over [min, max].
type Uniform struct {
	min, n uint64
	mu     struct {
		sync.Mutex
		rng *rand.Rand
	}
}

var _ Var = (*Uniform)(nil)

// NewUniform returns a uniform random variable over [min, max]. A nil rng is
// replaced by a clock seeded generator.
func NewUniform(rng *rand.Rand, min, max uint64) *Uniform {
	g := &Uniform{min: min, n: max - min + 1}
	g.mu.rng = ensureRand(rng)
	return g
}

// Uint64 implements Var.
func (g *Uniform) Uint64() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.n == 0 {
		// [0, MaxUint64].
		return g.mu.rng.Uint64()
	}
	return g.mu.rng.Uint64n(g.n) + g.min
}
