// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package archiver

import (
	"context"
	"os"
	"strings"

	"github.com/pakfs/pakfs/platform"
	"github.com/pakfs/pakfs/stream"
)

// dirArchiver serves real directories. It is not in the registry:
// opener resolution tries it directly when the mount source is a
// directory on the native filesystem.
type dirArchiver struct{}

// dirArchive's prefix is the real directory path, always ending in the
// native separator, so operations reduce to one concatenation.
type dirArchive struct {
	prefix string
}

var (
	_ Archiver = (*dirArchiver)(nil)
	_ Archive  = (*dirArchive)(nil)
)

// Info implements Archiver.
func (*dirArchiver) Info() Info {
	return Info{
		Description:      "non-archive, direct filesystem I/O",
		SupportsSymlinks: true,
	}
}

// OpenArchive implements Archiver. src is ignored; name must be a real
// directory.
func (*dirArchiver) OpenArchive(_ context.Context, _ stream.Stream, name string, forWriting bool) (Archive, error) {
	info, err := platform.Stat(name, true)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil // not claimed
	}
	prefix := name
	if !strings.HasSuffix(prefix, string(platform.Separator)) {
		prefix += string(platform.Separator)
	}
	return &dirArchive{prefix: prefix}, nil
}

func (a *dirArchive) realPath(vpath string) string {
	return a.prefix + platform.FromVirtual(vpath)
}

// Enumerate implements Archive.
func (a *dirArchive) Enumerate(_ context.Context, path string, cb EnumerateCallback, origdir string) error {
	return platform.Enumerate(a.realPath(path), func(name string) error {
		return cb(origdir, name)
	})
}

// OpenRead implements Archive.
func (a *dirArchive) OpenRead(_ context.Context, path string) (stream.Stream, error) {
	return stream.Open(a.realPath(path))
}

// OpenWrite implements Archive.
func (a *dirArchive) OpenWrite(_ context.Context, path string) (stream.Stream, error) {
	return stream.Create(a.realPath(path))
}

// OpenAppend implements Archive.
func (a *dirArchive) OpenAppend(_ context.Context, path string) (stream.Stream, error) {
	return stream.Append(a.realPath(path))
}

// Remove implements Archive.
func (a *dirArchive) Remove(_ context.Context, path string) error {
	return platform.Delete(a.realPath(path))
}

// Mkdir implements Archive.
func (a *dirArchive) Mkdir(_ context.Context, path string) error {
	return platform.MkDir(a.realPath(path))
}

// Stat implements Archive.
func (a *dirArchive) Stat(_ context.Context, path string) (Stat, error) {
	info, err := platform.Stat(a.realPath(path), false)
	if err != nil {
		return Stat{}, err
	}
	return statFromFileInfo(info), nil
}

// Close implements Archive.
func (*dirArchive) Close(context.Context) error { return nil }

func statFromFileInfo(info os.FileInfo) Stat {
	st := Stat{
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		st.Type = TypeSymlink
	case info.IsDir():
		st.Type = TypeDirectory
		st.Size = -1
	case info.Mode().IsRegular():
		st.Type = TypeRegular
	default:
		st.Type = TypeOther
	}
	st.ReadOnly = info.Mode().Perm()&0200 == 0
	return st
}
