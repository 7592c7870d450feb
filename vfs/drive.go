// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package vfs implements a portable virtual file system that unifies
// real directories and archive containers behind one path namespace.
// Applications see a single tree rooted at "/"; lookups walk an
// ordered list of mounted sources and are served by pluggable archive
// back-ends (see package archiver). Writes always target one
// designated writable real directory.
//
// The library supports a small fixed set of independent instances
// ("drives"), each with its own search path, open handles, write
// directory and error state. Obtain one with Init and Get; all
// operations are methods on *Drive and are safe for concurrent use.
package vfs

import (
	"context"
	"sync"

	"github.com/pakfs/pakfs/archiver"
	"github.com/pakfs/pakfs/errors"
	"github.com/pakfs/pakfs/log"
	"github.com/pakfs/pakfs/platform"
	"github.com/willf/bitset"

	// Archive back-ends linked in by default.
	_ "github.com/pakfs/pakfs/zipfs"
)

// NumDrives is the number of independent drive slots.
const NumDrives = 8

// Drive is one virtual file system instance. The zero value is not
// usable; drives are created by Init.
type Drive struct {
	dv uint8

	// mu is the state lock: it guards mounts, writeMount and both
	// handle lists. It is held across back-end calls made while
	// scanning the search path, because those scans are serialized by
	// the ordering semantics of the search path.
	mu         sync.Mutex
	mounts     []*mount
	writeMount *mount
	readers    []*File
	writers    []*File

	// errMu guards errState, the per-goroutine last-error registry.
	errMu    sync.Mutex
	errState map[int64]errors.Kind

	baseDir string
	userDir string

	symlinksMu        sync.Mutex
	symlinksPermitted bool

	allocMu sync.Mutex
	alloc   Allocator
}

var (
	driveMu  sync.Mutex
	drives   [NumDrives]*Drive
	occupied = bitset.New(NumDrives)
)

// Init brings the drive slot dv to life. argv0 is the host program's
// argv[0]; it is the fallback for locating the binary's directory on
// platforms where the operating system cannot report it. Init fails
// with kind IsInitialized when the slot is live.
func Init(dv uint8, argv0 string) error {
	if dv >= NumDrives {
		return errors.E(errors.InvalidArgument, "no such drive")
	}
	driveMu.Lock()
	defer driveMu.Unlock()
	if occupied.Test(uint(dv)) {
		return errors.E(errors.IsInitialized, "drive already initialized")
	}
	baseDir, err := platform.CalcBaseDir(argv0)
	if err != nil {
		return err
	}
	userDir, err := platform.CalcUserDir()
	if err != nil {
		log.Error.Printf("vfs: drive %d: no user dir: %v", dv, err)
		userDir = ""
	}
	drives[dv] = &Drive{
		dv:       dv,
		errState: make(map[int64]errors.Kind),
		baseDir:  baseDir,
		userDir:  userDir,
		alloc:    heapAllocator{},
	}
	occupied.Set(uint(dv))
	return nil
}

// IsInit tells whether drive slot dv is live.
func IsInit(dv uint8) bool {
	if dv >= NumDrives {
		return false
	}
	driveMu.Lock()
	defer driveMu.Unlock()
	return occupied.Test(uint(dv))
}

// Get returns the live drive at slot dv.
func Get(dv uint8) (*Drive, error) {
	if dv >= NumDrives {
		return nil, errors.E(errors.InvalidArgument, "no such drive")
	}
	driveMu.Lock()
	defer driveMu.Unlock()
	if !occupied.Test(uint(dv)) {
		return nil, errors.E(errors.NotInitialized, "drive not initialized")
	}
	return drives[dv], nil
}

// Deinit tears the drive slot down: open write handles are flushed
// best-effort and every handle is closed, all mounts are released, and
// the slot becomes available again. The first flush or close error is
// reported, but teardown always completes.
func Deinit(ctx context.Context, dv uint8) error {
	d, err := Get(dv)
	if err != nil {
		return err
	}

	var firstErr errors.Once
	d.mu.Lock()
	for _, f := range d.writers {
		firstErr.Set(f.flush(ctx))
		firstErr.Set(f.st.Close(ctx))
		f.releaseLocked()
	}
	for _, f := range d.readers {
		firstErr.Set(f.st.Close(ctx))
		f.releaseLocked()
	}
	d.writers, d.readers = nil, nil
	for _, m := range d.mounts {
		firstErr.Set(m.arc.Close(ctx))
	}
	if d.writeMount != nil {
		firstErr.Set(d.writeMount.arc.Close(ctx))
	}
	d.mounts, d.writeMount = nil, nil
	d.mu.Unlock()

	d.errMu.Lock()
	d.errState = make(map[int64]errors.Kind)
	d.errMu.Unlock()

	driveMu.Lock()
	drives[dv] = nil
	occupied.Clear(uint(dv))
	driveMu.Unlock()
	return firstErr.Err()
}

// SupportedArchiveTypes reports the archive formats the linked
// back-ends serve.
func SupportedArchiveTypes() []archiver.Info {
	return archiver.SupportedTypes()
}
