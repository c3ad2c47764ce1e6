// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kalloc

import (
	"sync/atomic"

	"github.com/teachos/kcore/internal/spinlock"
)

// nilPage terminates a free chain.
const nilPage = int32(-1)

// pool is the free list of one core. mu protects head, n and the next links
// of the pages on the chain.
type pool struct {
	mu   spinlock.Mutex
	head int32
	n    int32
	// stole is set once the core has stolen pages, to log the first steal.
	stole atomic.Bool
	_     [32]byte
}

func (p *pool) push(next []int32, idx int32) {
	p.mu.AssertHeld()
	next[idx] = p.head
	p.head = idx
	p.n++
}

func (p *pool) pop(next []int32) int32 {
	p.mu.AssertHeld()
	idx := p.head
	if idx == nilPage {
		return nilPage
	}
	p.head = next[idx]
	next[idx] = nilPage
	p.n--
	return idx
}

// split detaches the front half of the chain, rounded up, and returns its
// head, tail and length. The midpoint is found by advancing a slow cursor one
// page and a fast cursor two pages at a time: the detached part ends at the
// slow cursor. A chain of K pages keeps floor(K/2).
func (p *pool) split(next []int32) (head, tail, n int32) {
	p.mu.AssertHeld()
	if p.head == nilPage {
		return nilPage, nilPage, 0
	}
	slow, fast := p.head, next[p.head]
	for fast != nilPage && next[fast] != nilPage {
		slow = next[slow]
		fast = next[next[fast]]
	}
	head = p.head
	p.head = next[slow]
	next[slow] = nilPage
	n = (p.n + 1) / 2
	p.n -= n
	return head, slow, n
}

// splice prepends the chain from head to tail, of length n.
func (p *pool) splice(next []int32, head, tail, n int32) {
	p.mu.AssertHeld()
	next[tail] = p.head
	p.head = head
	p.n += n
}
