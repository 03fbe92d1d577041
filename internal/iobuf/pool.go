// Copyright 2016 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package iobuf provides a pooled byte-buffer allocator used by the
// corruption kernel (to build the scratch copy write_corrupt mutates
// instead of the caller's buffer) and by the control channel (to grow
// accessor buffers when a write extends them).
package iobuf

import "sync"

/**
Some additional reading:
    * https://blog.cloudflare.com/recycling-memory-buffers-in-go/
    * https://blog.questionable.services/article/using-buffer-pools-with-go/
*/

// Pool implements a leaky pool of []byte in the form of a bounded channel
// backed by a sync.Pool overflow.
type Pool struct {
	channel chan []byte
	fitFn   func(want int) int
	pool    sync.Pool
}

// New returns a Pool that keeps up to size recently used buffers of
// roughly fit(n) bytes around, falling back to a sync.Pool (and, beyond
// that, fresh allocations) under contention.
func New(size int, fit func(want int) int) *Pool {
	if fit == nil {
		fit = func(want int) int { return want }
	}
	p := &Pool{
		channel: make(chan []byte, size),
		fitFn:   fit,
	}
	p.pool.New = func() interface{} {
		return make([]byte, 0, p.fitFn(0))
	}
	return p
}

// Get returns a buffer with length n, reusing pooled capacity when
// possible.
func (p *Pool) Get(n int) []byte {
	var b []byte
	select {
	case b = <-p.channel:
	default:
		b = p.pool.Get().([]byte)
	}
	if cap(b) < n {
		c := p.fitFn(n)
		if c < n {
			c = n
		}
		b = make([]byte, n, c)
	}
	return b[:n]
}

// Put returns b to the pool. b must not be accessed after Put returns.
func (p *Pool) Put(b []byte) {
	b = b[:cap(b)]
	select {
	case p.channel <- b:
	default:
		p.pool.Put(b)
	}
}

// NumPooled returns the number of buffers currently sitting in the fast
// path channel (diagnostic only).
func (p *Pool) NumPooled() int {
	return len(p.channel)
}
