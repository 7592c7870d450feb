// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import "sync"

// An Allocator provides the byte buffers the drive attaches to open
// handles (see File.SetBuffer). Hosts with pooled or instrumented
// allocation can install their own; the drive only governs memory it
// owns outright, so the allocator sees every buffer it handed out
// exactly once in Free.
type Allocator interface {
	// Alloc returns a zeroed buffer of length n.
	Alloc(n int) []byte
	// Free releases a buffer previously returned by Alloc.
	Free(p []byte)
}

// heapAllocator is the default: plain make, collection by the GC.
type heapAllocator struct{}

func (heapAllocator) Alloc(n int) []byte { return make([]byte, n) }
func (heapAllocator) Free([]byte)        {}

// PooledAllocator recycles buffers through a sync.Pool, bucketed by
// nothing: buffers whose capacity fits a later request are reused.
// Useful for hosts that churn through handle buffers of one size.
type PooledAllocator struct {
	pool sync.Pool
}

// Alloc implements Allocator.
func (a *PooledAllocator) Alloc(n int) []byte {
	if p, _ := a.pool.Get().([]byte); cap(p) >= n {
		p = p[:n]
		for i := range p {
			p[i] = 0
		}
		return p
	}
	return make([]byte, n)
}

// Free implements Allocator.
func (a *PooledAllocator) Free(p []byte) {
	if cap(p) == 0 {
		return
	}
	a.pool.Put(p[:cap(p)]) // nolint: staticcheck
}

// SetAllocator installs a as the drive's buffer allocator. A nil a
// restores the default. Buffers already attached to open handles are
// released through the allocator that created them.
func (d *Drive) SetAllocator(a Allocator) {
	if a == nil {
		a = heapAllocator{}
	}
	d.allocMu.Lock()
	d.alloc = a
	d.allocMu.Unlock()
}

// Allocator returns the drive's current buffer allocator.
func (d *Drive) Allocator() Allocator {
	d.allocMu.Lock()
	defer d.allocMu.Unlock()
	return d.alloc
}
