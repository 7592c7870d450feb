// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"context"

	"github.com/pakfs/pakfs/errors"
	"github.com/pakfs/pakfs/stream"
)

// OpenRead opens the virtual file at name for reading. Mounts are
// consulted in search-path order; the first archive that serves the
// path wins. The returned handle starts unbuffered; see
// File.SetBuffer.
func (d *Drive) OpenRead(ctx context.Context, name string) (*File, error) {
	fname, err := sanitizePath(name)
	if err != nil {
		return nil, d.note(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var lastErr error
	for _, m := range d.mounts {
		rel, ok := m.contains(fname)
		if !ok {
			continue
		}
		if err := d.verifyPath(ctx, m, rel, false); err != nil {
			lastErr = keepWorst(lastErr, err)
			continue
		}
		st, err := m.arc.OpenRead(ctx, rel)
		if err != nil {
			lastErr = keepWorst(lastErr, err)
			continue
		}
		f := &File{d: d, st: st, mnt: m, forReading: true}
		d.readers = append(d.readers, f)
		return f, nil
	}
	if lastErr == nil {
		lastErr = errors.E(errors.NotFound, name)
	}
	return nil, d.note(lastErr)
}

// keepWorst prefers the more meaningful of two scan errors: anything
// beats nothing, and a real failure beats plain not-found.
func keepWorst(old, cur error) error {
	if old == nil || errors.Is(errors.NotFound, old) {
		return cur
	}
	return old
}

// OpenWrite creates or truncates the virtual file at name in the write
// directory. It fails with kind NoWriteDir when none is set.
func (d *Drive) OpenWrite(ctx context.Context, name string) (*File, error) {
	return d.openWrite(ctx, name, false)
}

// OpenAppend opens the virtual file at name for writing at its end,
// creating it in the write directory if necessary.
func (d *Drive) OpenAppend(ctx context.Context, name string) (*File, error) {
	return d.openWrite(ctx, name, true)
}

func (d *Drive) openWrite(ctx context.Context, name string, appendMode bool) (*File, error) {
	fname, err := sanitizePath(name)
	if err != nil {
		return nil, d.note(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeMount == nil {
		return nil, d.note(errors.E(errors.NoWriteDir, name))
	}
	if err := d.verifyPath(ctx, d.writeMount, fname, false); err != nil {
		return nil, d.note(err)
	}
	var st stream.Stream
	if appendMode {
		st, err = d.writeMount.arc.OpenAppend(ctx, fname)
	} else {
		st, err = d.writeMount.arc.OpenWrite(ctx, fname)
	}
	if err != nil {
		return nil, d.note(err)
	}
	f := &File{d: d, st: st, mnt: d.writeMount, forReading: false}
	d.writers = append(d.writers, f)
	return f, nil
}
