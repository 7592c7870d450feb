// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"context"
	"strings"

	"github.com/pakfs/pakfs/archiver"
	"github.com/pakfs/pakfs/errors"
	"github.com/pakfs/pakfs/stream"
)

// mount is one entry of the search path: an opened archive exposed at
// a virtual mount point. The write directory is a mount too, held
// outside the search path.
type mount struct {
	arc     archiver.Archive
	backend archiver.Archiver
	// dirName is the external path or identifier given to Mount; it
	// keys de-duplication, Unmount and RealDir.
	dirName string
	// point is the sanitized interior mount point: "" for root,
	// otherwise always ending in '/'.
	point string
}

// contains tells whether fname lies under m's mount point and, if so,
// returns the archive-relative suffix.
func (m *mount) contains(fname string) (string, bool) {
	if m.point == "" {
		return fname, true
	}
	if fname == m.point[:len(m.point)-1] {
		return "", true
	}
	if strings.HasPrefix(fname, m.point) {
		return fname[len(m.point):], true
	}
	return "", false
}

// interiorNext tells whether fname names a virtual ancestor directory
// of m's mount point — a path component that exists only because the
// mount point is nested below it — and returns the next mount-point
// segment under fname.
func (m *mount) interiorNext(fname string) (string, bool) {
	if m.point == "" {
		return "", false
	}
	interior := m.point[:len(m.point)-1]
	if fname == "" {
		if i := strings.IndexByte(interior, '/'); i >= 0 {
			interior = interior[:i]
		}
		return interior, true
	}
	if len(fname) < len(interior) && strings.HasPrefix(interior, fname) && interior[len(fname)] == '/' {
		rest := interior[len(fname)+1:]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		return rest, true
	}
	return "", false
}

func sanitizeMountPoint(mountPoint string) (string, error) {
	p, err := sanitizePath(mountPoint)
	if err != nil {
		return "", err
	}
	if p != "" {
		p += "/"
	}
	return p, nil
}

// addMount links m into the search path; the caller holds d.mu.
func (d *Drive) addMount(m *mount, appendToPath bool) {
	if appendToPath {
		d.mounts = append(d.mounts, m)
	} else {
		d.mounts = append([]*mount{m}, d.mounts...)
	}
}

func (d *Drive) findMount(dirName string) int {
	for i, m := range d.mounts {
		if m.dirName == dirName {
			return i
		}
	}
	return -1
}

// Mount adds the archive at the real path realPath (a directory, or an
// archive file some registered back-end recognizes) to the search
// path, exposed at mountPoint ("" and "/" mean the root). With
// appendToPath the archive is searched after existing mounts,
// otherwise before them. Mounting a realPath that is already mounted
// is a silent success and changes nothing.
func (d *Drive) Mount(ctx context.Context, realPath, mountPoint string, appendToPath bool) error {
	point, err := sanitizeMountPoint(mountPoint)
	if err != nil {
		return d.note(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findMount(realPath) >= 0 {
		return nil
	}
	arc, backend, err := archiver.OpenDirectory(ctx, realPath, false)
	if err != nil {
		return d.note(err)
	}
	d.addMount(&mount{arc: arc, backend: backend, dirName: realPath, point: point}, appendToPath)
	return nil
}

// MountStream adds the archive carried by st to the search path. name
// stands in for a real path: it keys de-duplication and Unmount, and
// gives back-ends an extension hint. On success the mount owns st; on
// failure st remains the caller's.
func (d *Drive) MountStream(ctx context.Context, st stream.Stream, name, mountPoint string, appendToPath bool) error {
	if st == nil || name == "" {
		return d.note(errors.E(errors.InvalidArgument, "mount stream needs a stream and a name"))
	}
	point, err := sanitizeMountPoint(mountPoint)
	if err != nil {
		return d.note(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findMount(name) >= 0 {
		return nil
	}
	arc, backend, err := archiver.OpenStream(ctx, st, name, false)
	if err != nil {
		return d.note(err)
	}
	d.addMount(&mount{arc: arc, backend: backend, dirName: name, point: point}, appendToPath)
	return nil
}

// MountHandle adds the archive carried by the open virtual file f to
// the search path. f must be open for reading. On success f's stream
// belongs to the mount and f is dead; on failure f remains usable.
func (d *Drive) MountHandle(ctx context.Context, f *File, name, mountPoint string, appendToPath bool) error {
	if f == nil || !f.forReading {
		return d.note(errors.E(errors.InvalidArgument, "mount handle needs a file open for reading"))
	}
	point, err := sanitizeMountPoint(mountPoint)
	if err != nil {
		return d.note(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findMount(name) >= 0 {
		return nil
	}
	if !d.unlinkLocked(f) {
		return d.note(errors.E(errors.InvalidArgument, "file is not open on this drive"))
	}
	arc, backend, err := archiver.OpenStream(ctx, f.st, name, false)
	if err != nil {
		// The caller keeps the handle on failure.
		d.readers = append(d.readers, f)
		return d.note(err)
	}
	f.releaseLocked()
	d.addMount(&mount{arc: arc, backend: backend, dirName: name, point: point}, appendToPath)
	return nil
}

// Unmount removes the mount keyed by realPath from the search path. It
// fails with kind FilesStillOpen while any open handle references the
// mount, and with NotMounted when realPath is not in the search path.
func (d *Drive) Unmount(ctx context.Context, realPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.findMount(realPath)
	if i < 0 {
		return d.note(errors.E(errors.NotMounted, realPath))
	}
	m := d.mounts[i]
	for _, f := range d.readers {
		if f.mnt == m {
			return d.note(errors.E(errors.FilesStillOpen, realPath))
		}
	}
	for _, f := range d.writers {
		if f.mnt == m {
			return d.note(errors.E(errors.FilesStillOpen, realPath))
		}
	}
	d.mounts = append(d.mounts[:i], d.mounts[i+1:]...)
	return d.note(m.arc.Close(ctx))
}

// SearchPath returns the dir names of the current mounts in search
// order.
func (d *Drive) SearchPath() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.mounts))
	for i, m := range d.mounts {
		out[i] = m.dirName
	}
	return out
}

// MountPointOf reports where the mount keyed by realPath is exposed,
// as an absolute virtual path ("/" for a root mount).
func (d *Drive) MountPointOf(realPath string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.findMount(realPath)
	if i < 0 {
		return "", d.note(errors.E(errors.NotMounted, realPath))
	}
	return "/" + d.mounts[i].point, nil
}

// RealDir reports the dir name of the mount that would serve a read of
// virtualPath: the earliest mount in the search path where the path
// exists.
func (d *Drive) RealDir(ctx context.Context, virtualPath string) (string, error) {
	fname, err := sanitizePath(virtualPath)
	if err != nil {
		return "", d.note(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.mounts {
		if _, ok := m.interiorNext(fname); ok {
			return m.dirName, nil
		}
		rel, ok := m.contains(fname)
		if !ok {
			continue
		}
		if err := d.verifyPath(ctx, m, rel, false); err != nil {
			continue
		}
		if _, err := m.arc.Stat(ctx, rel); err == nil {
			return m.dirName, nil
		}
	}
	return "", d.note(errors.E(errors.NotFound, virtualPath))
}
