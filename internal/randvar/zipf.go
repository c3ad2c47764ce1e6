// Copyright 2017 The Cockroach Authors.
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
//
// Zipf draws with the algorithm of "Quickly Generating Billion-Record
// Synthetic Databases" by Gray, Sundaresan, Englert, Baclawski, and
// Weinberger, SIGMOD 1994.

package randvar

import (
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"
)

// DefaultTheta is the skew used by Parse for zipf specs.
const DefaultTheta = 0.99

// Zipf draws from a Zipf distribution over [min, max]: min is the most likely
// value, min+1 the next, and so on. A hot set of blocks at the bottom of the
// range makes it a natural model of buffer cache reuse.
type Zipf struct {
	min, max     uint64
	theta, alpha float64
	zetaN, eta   float64
	mu           struct {
		sync.Mutex
		rng *rand.Rand
	}
}

var _ Var = (*Zipf)(nil)

// NewZipf returns a Zipf random variable over [min, max] with skew theta,
// which must be positive and different from 1.
func NewZipf(rng *rand.Rand, min, max uint64, theta float64) (*Zipf, error) {
	if min > max {
		return nil, errors.Newf("zipf: min %d > max %d", min, max)
	}
	if theta <= 0 || theta == 1 {
		return nil, errors.Newf("zipf: theta %g must be > 0 and != 1", theta)
	}
	z := &Zipf{
		min:   min,
		max:   max,
		theta: theta,
		alpha: 1 / (1 - theta),
		zetaN: zeta(max-min+1, theta),
	}
	zeta2 := zeta(2, theta)
	z.eta = (1 - math.Pow(2/float64(max-min+1), 1-theta)) / (1 - zeta2/z.zetaN)
	z.mu.rng = ensureRand(rng)
	return z, nil
}

// zeta returns 1/1^theta + 1/2^theta + ... + 1/n^theta.
func zeta(n uint64, theta float64) float64 {
	var sum float64
	for i := uint64(1); i <= n; i++ {
		sum += 1 / math.Pow(float64(i), theta)
	}
	return sum
}

// Uint64 implements Var.
func (z *Zipf) Uint64() uint64 {
	z.mu.Lock()
	u := z.mu.rng.Float64()
	z.mu.Unlock()

	uz := u * z.zetaN
	switch {
	case uz < 1:
		return z.min
	case uz < 1+math.Pow(0.5, z.theta):
		return min(z.min+1, z.max)
	}
	spread := float64(z.max + 1 - z.min)
	return min(z.min+uint64(spread*math.Pow(z.eta*u-z.eta+1, z.alpha)), z.max)
}
