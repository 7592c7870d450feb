// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"context"
	"sort"

	"github.com/gobwas/glob"
	"github.com/pakfs/pakfs/archiver"
	"github.com/pakfs/pakfs/errors"
)

// ErrStop re-exports archiver.ErrStop: returning it from an
// enumeration callback halts the walk and reports success.
var ErrStop = archiver.ErrStop

// Stat reports metadata for the virtual path name, consulting mounts
// in search-path order. The root is always a directory, writable iff a
// write directory is set. Ancestors synthesized by nested mount points
// report as read-only directories.
func (d *Drive) Stat(ctx context.Context, name string) (archiver.Stat, error) {
	fname, err := sanitizePath(name)
	if err != nil {
		return archiver.Stat{}, d.note(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if fname == "" {
		return archiver.Stat{
			Size:     -1,
			Type:     archiver.TypeDirectory,
			ReadOnly: d.writeMount == nil,
		}, nil
	}
	for _, m := range d.mounts {
		if _, ok := m.interiorNext(fname); ok {
			return archiver.Stat{Size: -1, Type: archiver.TypeDirectory, ReadOnly: true}, nil
		}
		rel, ok := m.contains(fname)
		if !ok {
			continue
		}
		if err := d.verifyPath(ctx, m, rel, false); err != nil {
			return archiver.Stat{}, d.note(err)
		}
		st, err := m.arc.Stat(ctx, rel)
		if err == nil {
			return st, nil
		}
		if !errors.Is(errors.NotFound, err) {
			return archiver.Stat{}, d.note(err)
		}
	}
	return archiver.Stat{}, d.note(errors.E(errors.NotFound, name))
}

// Exists tells whether the virtual path name resolves in any mount.
func (d *Drive) Exists(ctx context.Context, name string) bool {
	_, err := d.Stat(ctx, name)
	return err == nil
}

// IsDirectory tells whether the virtual path name is a directory.
func (d *Drive) IsDirectory(ctx context.Context, name string) bool {
	st, err := d.Stat(ctx, name)
	return err == nil && st.Type == archiver.TypeDirectory
}

// IsSymlink tells whether the virtual path name is a symbolic link.
// It only reports true when symlinks are permitted; otherwise the
// lookup itself is refused.
func (d *Drive) IsSymlink(ctx context.Context, name string) bool {
	st, err := d.Stat(ctx, name)
	return err == nil && st.Type == archiver.TypeSymlink
}

// Enumerate calls cb once per immediate child of the virtual directory
// dir, walking mounts in search-path order. Children may be reported
// more than once when several mounts populate the same directory; see
// EnumerateFiles for a deduplicated listing. Nested mount points
// surface as synthetic directory entries. cb may return
// archiver.ErrStop to halt the walk early, which is reported as
// success; any other error halts it with kind AppCallback.
func (d *Drive) Enumerate(ctx context.Context, dir string, cb archiver.EnumerateCallback) error {
	fname, err := sanitizePath(dir)
	if err != nil {
		return d.note(err)
	}
	wrapped := func(origdir, name string) error {
		err := cb(origdir, name)
		if err != nil && err != archiver.ErrStop {
			return errors.E(errors.AppCallback, err)
		}
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.mounts {
		if next, ok := m.interiorNext(fname); ok && next != "" {
			if err := wrapped(dir, next); err != nil {
				if err == archiver.ErrStop {
					return nil
				}
				return d.note(err)
			}
			continue
		}
		rel, ok := m.contains(fname)
		if !ok {
			continue
		}
		if err := d.verifyPath(ctx, m, rel, false); err != nil {
			return d.note(err)
		}
		st, err := m.arc.Stat(ctx, rel)
		if err != nil {
			if errors.Is(errors.NotFound, err) {
				continue
			}
			return d.note(err)
		}
		if st.Type != archiver.TypeDirectory &&
			!(st.Type == archiver.TypeSymlink && d.SymlinksPermitted()) {
			continue
		}
		ecb := wrapped
		if !d.SymlinksPermitted() && m.backend.Info().SupportsSymlinks {
			// The back-end can hold symlinks but the instance forbids
			// them: stat each child and drop the links.
			ecb = func(origdir, name string) error {
				child := name
				if rel != "" {
					child = rel + "/" + name
				}
				cst, err := m.arc.Stat(ctx, child)
				if err != nil {
					return err
				}
				if cst.Type == archiver.TypeSymlink {
					return nil
				}
				return wrapped(origdir, name)
			}
		}
		if err := m.arc.Enumerate(ctx, rel, ecb, dir); err != nil {
			if err == archiver.ErrStop {
				return nil
			}
			return d.note(err)
		}
	}
	return nil
}

// EnumerateFiles returns the sorted union of the immediate children of
// the virtual directory dir across all mounts, deduplicated.
func (d *Drive) EnumerateFiles(ctx context.Context, dir string) ([]string, error) {
	out := []string{}
	err := d.Enumerate(ctx, dir, func(_, name string) error {
		i := sort.SearchStrings(out, name)
		if i < len(out) && out[i] == name {
			return nil
		}
		out = append(out, "")
		copy(out[i+1:], out[i:])
		out[i] = name
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EnumerateFilesPattern is EnumerateFiles restricted to children whose
// name matches the given glob pattern.
func (d *Drive) EnumerateFilesPattern(ctx context.Context, dir, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, d.note(errors.E(errors.InvalidArgument, "bad glob pattern", pattern, err))
	}
	all, err := d.EnumerateFiles(ctx, dir)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, name := range all {
		if g.Match(name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// Mkdir creates the virtual directory name in the write directory,
// along with any missing parents. It fails with kind NoWriteDir when
// none is set.
func (d *Drive) Mkdir(ctx context.Context, name string) error {
	fname, err := sanitizePath(name)
	if err != nil {
		return d.note(err)
	}
	if fname == "" {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeMount == nil {
		return d.note(errors.E(errors.NoWriteDir, name))
	}
	if err := d.verifyPath(ctx, d.writeMount, fname, true); err != nil {
		return d.note(err)
	}
	end := 0
	for {
		prefix := fname
		final := true
		if i := indexByteFrom(fname, end, '/'); i >= 0 {
			prefix, final = fname[:i], false
			end = i + 1
		}
		if _, err := d.writeMount.arc.Stat(ctx, prefix); err != nil {
			if !errors.Is(errors.NotFound, err) {
				return d.note(err)
			}
			if err := d.writeMount.arc.Mkdir(ctx, prefix); err != nil {
				return d.note(err)
			}
		}
		if final {
			return nil
		}
	}
}

func indexByteFrom(s string, from int, c byte) int {
	for i := from; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// Delete removes the virtual file or empty directory name from the
// write directory.
func (d *Drive) Delete(ctx context.Context, name string) error {
	fname, err := sanitizePath(name)
	if err != nil {
		return d.note(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeMount == nil {
		return d.note(errors.E(errors.NoWriteDir, name))
	}
	if err := d.verifyPath(ctx, d.writeMount, fname, false); err != nil {
		return d.note(err)
	}
	return d.note(d.writeMount.arc.Remove(ctx, fname))
}
