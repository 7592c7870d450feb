// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pakfs/pakfs/archiver"
	"github.com/pakfs/pakfs/errors"
	"github.com/pakfs/pakfs/platform"
)

// BaseDir reports the real directory holding the running binary, as
// computed at Init. It ends in the native separator.
func (d *Drive) BaseDir() string { return d.baseDir }

// UserDir reports the calling user's home directory, or "" when it
// could not be determined at Init.
func (d *Drive) UserDir() string { return d.userDir }

// PrefDir reports the per-user preference directory for the given
// organization and application, creating it if necessary.
func (d *Drive) PrefDir(org, app string) (string, error) {
	dir, err := platform.CalcPrefDir(org, app)
	return dir, d.note(err)
}

// WriteDir reports the real directory all writes target, or "" when
// none is set.
func (d *Drive) WriteDir() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeMount == nil {
		return ""
	}
	return d.writeMount.dirName
}

// SetWriteDir designates the real directory dir as the target of all
// write, mkdir and delete operations, replacing any previous write
// directory. An empty dir clears it. SetWriteDir fails with kind
// FilesStillOpen while handles opened for writing exist.
func (d *Drive) SetWriteDir(ctx context.Context, dir string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.writers) > 0 {
		return d.note(errors.E(errors.FilesStillOpen, "write dir busy"))
	}
	var old *mount
	old, d.writeMount = d.writeMount, nil
	if dir != "" {
		arc, backend, err := archiver.OpenDirectory(ctx, dir, true)
		if err != nil {
			d.writeMount = old
			return d.note(err)
		}
		d.writeMount = &mount{arc: arc, backend: backend, dirName: dir}
	}
	if old != nil {
		return d.note(old.arc.Close(ctx))
	}
	return nil
}

// PermitSymlinks sets whether virtual paths may traverse symbolic
// links inside mounted archives. The default is false: lookups that
// cross a symlink fail with kind SymlinkForbidden.
func (d *Drive) PermitSymlinks(allow bool) {
	d.symlinksMu.Lock()
	d.symlinksPermitted = allow
	d.symlinksMu.Unlock()
}

// SymlinksPermitted reports the current symlink policy.
func (d *Drive) SymlinksPermitted() bool {
	d.symlinksMu.Lock()
	defer d.symlinksMu.Unlock()
	return d.symlinksPermitted
}

// SetSaneConfig wires the drive the way most applications want it: the
// preference directory for org/app becomes the write directory and is
// mounted first, the base directory is mounted after it, and archives
// with the given extension ("zip"; no dot) found in either directory
// are mounted too — before the directories when archivesFirst is set,
// after them otherwise. Failures of the individual nested mounts are
// deliberately ignored; only a missing write directory is fatal.
// includeCDRoms is accepted for compatibility and ignored on this
// platform layer.
func (d *Drive) SetSaneConfig(ctx context.Context, org, app, archiveExt string, includeCDRoms, archivesFirst bool) error {
	prefDir, err := platform.CalcPrefDir(org, app)
	if err != nil {
		return d.note(errors.E(errors.NoWriteDir, err))
	}
	if err := d.SetWriteDir(ctx, prefDir); err != nil {
		return d.note(errors.E(errors.NoWriteDir, err))
	}
	_ = d.Mount(ctx, prefDir, "", true)
	_ = d.Mount(ctx, d.baseDir, "", true)
	_ = includeCDRoms

	if archiveExt != "" {
		ext := "." + archiveExt
		names, err := d.EnumerateFiles(ctx, "/")
		if err != nil {
			return nil
		}
		for _, name := range names {
			if !strings.HasSuffix(name, ext) {
				continue
			}
			origin, err := d.RealDir(ctx, name)
			if err != nil {
				continue
			}
			_ = d.Mount(ctx, filepath.Join(origin, name), "", !archivesFirst)
		}
	}
	return nil
}
