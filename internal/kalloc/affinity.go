// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kalloc

// Affinity hands out core identities. A goroutine holding a Token is the only
// user of that core's identity until it releases the token, so the core id
// observed while the token is held cannot change underneath it.
type Affinity interface {
	Acquire() Token
}

// Token is a core identity acquired from an Affinity.
type Token struct {
	id    int
	cores *Cores
}

// ID returns the core id.
func (t Token) ID() int {
	return t.id
}

// Release gives the core back to the Affinity it was acquired from.
func (t Token) Release() {
	if t.cores != nil {
		t.cores.free <- t.id
	}
}

// Cores is an Affinity backed by a fixed set of core tokens. At most n
// goroutines hold a core at a time; Acquire blocks while every core is busy.
type Cores struct {
	free chan int
}

var _ Affinity = (*Cores)(nil)

// NewCores returns an Affinity handing out the core ids [0, n).
func NewCores(n int) *Cores {
	c := &Cores{free: make(chan int, n)}
	for i := 0; i < n; i++ {
		c.free <- i
	}
	return c
}

// Acquire implements Affinity.
func (c *Cores) Acquire() Token {
	return Token{id: <-c.free, cores: c}
}

// FixedCore is an Affinity that always reports the same core. It provides no
// exclusion and is meant for single goroutine use.
type FixedCore int

var _ Affinity = FixedCore(0)

// Acquire implements Affinity.
func (f FixedCore) Acquire() Token {
	return Token{id: int(f)}
}
