// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package dirtree implements the in-memory directory index used by
// archive back-ends to represent a parsed archive's listing. Entries
// are kept both in a tree (first-child/next-sibling) for enumeration
// and in a chained hash table keyed by full path for lookup. Each
// entry carries a back-end specific payload of type T.
package dirtree

import (
	"hash/fnv"
	"strings"

	"github.com/pakfs/pakfs/errors"
)

// DefaultBuckets is the hash table size used when New is given a
// non-positive bucket count.
const DefaultBuckets = 64

// Entry is one file or directory in the index. The zero payload is
// what Add leaves in auto-created ancestor directories.
type Entry[T any] struct {
	name       string // full path within the archive, no leading or trailing '/'
	isDir      bool
	child      *Entry[T] // first child, directories only
	sibling    *Entry[T] // next entry in the parent directory
	bucketNext *Entry[T]

	// Payload is the back-end's per-entry data.
	Payload T
}

// Name returns the entry's full path within its archive.
func (e *Entry[T]) Name() string { return e.name }

// IsDir tells whether the entry is a directory.
func (e *Entry[T]) IsDir() bool { return e.isDir }

// Base returns the trailing path segment of the entry's name.
func (e *Entry[T]) Base() string {
	if i := strings.LastIndexByte(e.name, '/'); i >= 0 {
		return e.name[i+1:]
	}
	return e.name
}

// Tree indexes the full listing of one archive.
type Tree[T any] struct {
	root    *Entry[T]
	buckets []*Entry[T]
}

// New returns an empty tree with the given hash bucket count, or
// DefaultBuckets when n <= 0. The root is a directory with an empty
// name.
func New[T any](n int) *Tree[T] {
	if n <= 0 {
		n = DefaultBuckets
	}
	return &Tree[T]{
		root:    &Entry[T]{isDir: true},
		buckets: make([]*Entry[T], n),
	}
}

// Root returns the root directory entry.
func (t *Tree[T]) Root() *Entry[T] { return t.root }

func (t *Tree[T]) bucket(name string) int {
	h := fnv.New32a()
	h.Write([]byte(name)) // nolint: errcheck
	return int(h.Sum32() % uint32(len(t.buckets)))
}

// Add inserts name into the index and returns its entry. If name is
// already present the existing entry is returned unchanged. Missing
// ancestors are inserted as directories. Add fails with kind Corrupt
// when an ancestor of name exists as a regular file: such a listing
// cannot have come from a well-formed archive.
func (t *Tree[T]) Add(name string, isDir bool) (*Entry[T], error) {
	if name == "" {
		return t.root, nil
	}
	if e := t.Find(name); e != nil {
		return e, nil
	}
	parent := t.root
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		p, err := t.Add(name[:i], true)
		if err != nil {
			return nil, err
		}
		parent = p
	}
	if !parent.isDir {
		return nil, errors.E(errors.Corrupt, "entry under non-directory", name)
	}
	e := &Entry[T]{name: name, isDir: isDir}
	b := t.bucket(name)
	e.bucketNext = t.buckets[b]
	t.buckets[b] = e
	e.sibling = parent.child
	parent.child = e
	return e, nil
}

// Find returns the entry for path, or nil if absent. The empty path
// names the root. A found entry is moved to the front of its hash
// chain, so repeated lookups of hot paths stay cheap.
func (t *Tree[T]) Find(path string) *Entry[T] {
	if path == "" {
		return t.root
	}
	b := t.bucket(path)
	var prev *Entry[T]
	for e := t.buckets[b]; e != nil; e = e.bucketNext {
		if e.name == path {
			if prev != nil {
				prev.bucketNext = e.bucketNext
				e.bucketNext = t.buckets[b]
				t.buckets[b] = e
			}
			return e
		}
		prev = e
	}
	return nil
}

// Enumerate calls cb once per immediate child of the directory at dir,
// passing the child entry. It fails with kind NotFound when dir is
// absent and NotAFile when dir names a regular file. A cb error stops
// the walk and is returned as is.
func (t *Tree[T]) Enumerate(dir string, cb func(e *Entry[T]) error) error {
	d := t.Find(dir)
	if d == nil {
		return errors.E(errors.NotFound, "enumerate", dir)
	}
	if !d.isDir {
		return errors.E(errors.NotAFile, "enumerate", dir)
	}
	for e := d.child; e != nil; e = e.sibling {
		if err := cb(e); err != nil {
			return err
		}
	}
	return nil
}
