// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package zipfs is the archive back-end for PK-ZIP compatible
// archives. It registers itself on import; mounting a .zip (or any
// stream that begins with a ZIP local file header or end-of-central-
// directory signature) works once the package is linked in. Content
// with other bytes before the first signature is not claimed. ZIP
// archives are read-only.
//
// Unix symlink entries are indexed as symlinks and resolved on lookup,
// subject to the instance's symlink policy.
package zipfs

import (
	"context"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/pakfs/pakfs/archiver"
	"github.com/pakfs/pakfs/dirtree"
	"github.com/pakfs/pakfs/errors"
	"github.com/pakfs/pakfs/log"
	"github.com/pakfs/pakfs/stream"
)

func init() {
	archiver.Register(&zipArchiver{})
}

// maxLinkDepth bounds symlink resolution; deeper chains report
// SymlinkLoop.
const maxLinkDepth = 16

type zipArchiver struct{}

var _ archiver.Archiver = (*zipArchiver)(nil)

// Info implements archiver.Archiver.
func (*zipArchiver) Info() archiver.Info {
	return archiver.Info{
		Extension:        "zip",
		Description:      "PK-ZIP compatible archives",
		SupportsSymlinks: true,
	}
}

var zipMagics = [][]byte{
	{'P', 'K', 0x03, 0x04}, // local file header
	{'P', 'K', 0x05, 0x06}, // end of central directory (empty archive)
}

// OpenArchive implements archiver.Archiver.
func (*zipArchiver) OpenArchive(ctx context.Context, src stream.Stream, name string, forWriting bool) (archiver.Archive, error) {
	if src == nil {
		return nil, nil
	}
	var magic [4]byte
	if _, err := io.ReadFull(stream.Reader(ctx, src), magic[:]); err != nil {
		return nil, nil // too short to be a ZIP; not claimed
	}
	claimed := false
	for _, m := range zipMagics {
		if string(magic[:]) == string(m) {
			claimed = true
			break
		}
	}
	if !claimed {
		return nil, nil
	}
	if forWriting {
		return nil, errors.E(errors.ReadOnly, "zip archives are read-only", name)
	}
	size, err := src.Length(ctx)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(stream.ReaderAt(ctx, src), size)
	if err != nil {
		return nil, errors.E(errors.Corrupt, "zip", name, err)
	}
	tree := dirtree.New[*zip.File](0)
	for _, f := range zr.File {
		zname := strings.TrimPrefix(f.Name, "/")
		isDir := strings.HasSuffix(zname, "/")
		zname = strings.TrimSuffix(zname, "/")
		if zname == "" || badEntryName(zname) {
			log.Debug.Printf("zip %s: skipping entry with unusable name %q", name, f.Name)
			continue
		}
		e, err := tree.Add(zname, isDir)
		if err != nil {
			return nil, errors.E(err, "zip", name)
		}
		if !isDir {
			e.Payload = f
		}
	}
	return &zipArchive{name: name, src: src, tree: tree}, nil
}

// badEntryName rejects entry names that would address outside the
// archive when spliced into the virtual tree.
func badEntryName(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return true
		}
	}
	return strings.ContainsAny(name, "\\:")
}

type zipArchive struct {
	name string
	src  stream.Stream
	tree *dirtree.Tree[*zip.File]
}

var _ archiver.Archive = (*zipArchive)(nil)

func isLink(f *zip.File) bool {
	return f != nil && f.Mode()&fs.ModeSymlink != 0
}

// resolve walks path through the index, following symlinks in every
// component but (optionally) the last.
func (a *zipArchive) resolve(ctx context.Context, p string, followLast bool, depth int) (*dirtree.Entry[*zip.File], error) {
	if depth > maxLinkDepth {
		return nil, errors.E(errors.SymlinkLoop, "zip", a.name, p)
	}
	rest := p
	done := ""
	for rest != "" {
		seg := rest
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			seg, rest = rest[:i], rest[i+1:]
		} else {
			rest = ""
		}
		cur := path.Join(done, seg)
		e := a.tree.Find(cur)
		if e == nil {
			return nil, errors.E(errors.NotFound, "zip", a.name, p)
		}
		if isLink(e.Payload) && (rest != "" || followLast) {
			target, err := a.readLink(ctx, e.Payload)
			if err != nil {
				return nil, err
			}
			if strings.HasPrefix(target, "/") {
				return nil, errors.E(errors.NotFound, "zip", a.name, "symlink escapes archive", p)
			}
			resolved := path.Join(path.Dir(cur), target)
			if resolved == ".." || strings.HasPrefix(resolved, "../") {
				return nil, errors.E(errors.NotFound, "zip", a.name, "symlink escapes archive", p)
			}
			if rest != "" {
				resolved = resolved + "/" + rest
			}
			return a.resolve(ctx, resolved, followLast, depth+1)
		}
		if rest != "" && !e.IsDir() && !isLink(e.Payload) {
			return nil, errors.E(errors.NotFound, "zip", a.name, p)
		}
		done = cur
	}
	return a.tree.Find(done), nil
}

func (a *zipArchive) readLink(_ context.Context, f *zip.File) (_ string, err error) {
	rc, err := f.Open()
	if err != nil {
		return "", errors.E(errors.Corrupt, "zip", a.name, f.Name, err)
	}
	defer errors.CleanUp(rc.Close, &err)
	target, err := io.ReadAll(rc)
	if err != nil {
		return "", errors.E(errors.Corrupt, "zip", a.name, f.Name, err)
	}
	return string(target), nil
}

// Enumerate implements archiver.Archive.
func (a *zipArchive) Enumerate(ctx context.Context, p string, cb archiver.EnumerateCallback, origdir string) error {
	e, err := a.resolve(ctx, p, true, 0)
	if err != nil {
		return err
	}
	return a.tree.Enumerate(e.Name(), func(child *dirtree.Entry[*zip.File]) error {
		return cb(origdir, child.Base())
	})
}

// OpenRead implements archiver.Archive.
func (a *zipArchive) OpenRead(ctx context.Context, p string) (stream.Stream, error) {
	e, err := a.resolve(ctx, p, true, 0)
	if err != nil {
		return nil, err
	}
	if e.IsDir() || e.Payload == nil {
		return nil, errors.E(errors.NotAFile, "zip", a.name, p)
	}
	return openEntry(e.Payload)
}

// OpenWrite implements archiver.Archive.
func (a *zipArchive) OpenWrite(_ context.Context, p string) (stream.Stream, error) {
	return nil, errors.E(errors.ReadOnly, "zip", a.name, p)
}

// OpenAppend implements archiver.Archive.
func (a *zipArchive) OpenAppend(_ context.Context, p string) (stream.Stream, error) {
	return nil, errors.E(errors.ReadOnly, "zip", a.name, p)
}

// Remove implements archiver.Archive.
func (a *zipArchive) Remove(_ context.Context, p string) error {
	return errors.E(errors.ReadOnly, "zip", a.name, p)
}

// Mkdir implements archiver.Archive.
func (a *zipArchive) Mkdir(_ context.Context, p string) error {
	return errors.E(errors.ReadOnly, "zip", a.name, p)
}

// Stat implements archiver.Archive. Intermediate symlinks are
// resolved; the final component is reported as is.
func (a *zipArchive) Stat(ctx context.Context, p string) (archiver.Stat, error) {
	e, err := a.resolve(ctx, p, false, 0)
	if err != nil {
		return archiver.Stat{}, err
	}
	st := archiver.Stat{Size: -1, ReadOnly: true, Type: archiver.TypeDirectory}
	if f := e.Payload; f != nil {
		st.ModTime = f.Modified
		st.Size = int64(f.UncompressedSize64)
		if isLink(f) {
			st.Type = archiver.TypeSymlink
		} else {
			st.Type = archiver.TypeRegular
		}
	}
	return st, nil
}

// Close implements archiver.Archive.
func (a *zipArchive) Close(ctx context.Context) error {
	return a.src.Close(ctx)
}
