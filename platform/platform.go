// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package platform is the porting layer of the virtual file system:
// native filesystem primitives and user/base directory discovery. The
// rest of the library goes through this package rather than the os
// package directly, so a port only touches this package.
package platform

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pakfs/pakfs/errors"
)

// Separator is the native directory separator.
const Separator = os.PathSeparator

// Stat reports metadata for the named real path. When followLinks is
// false and the path names a symbolic link, the link itself is
// reported.
func Stat(path string, followLinks bool) (os.FileInfo, error) {
	var (
		info os.FileInfo
		err  error
	)
	if followLinks {
		info, err = os.Stat(path)
	} else {
		info, err = os.Lstat(path)
	}
	if err != nil {
		return nil, errors.E(err, "stat", path)
	}
	return info, nil
}

// MkDir creates a single directory. The parent must exist.
func MkDir(path string) error {
	if err := os.Mkdir(path, 0777); err != nil {
		return errors.E(err, "mkdir", path)
	}
	return nil
}

// Delete removes the named file or empty directory.
func Delete(path string) error {
	if err := os.Remove(path); err != nil {
		return errors.E(err, "delete", path)
	}
	return nil
}

// Enumerate calls cb once per entry of the named real directory, in
// sorted order. A cb error stops the walk and is returned as is.
func Enumerate(dir string, cb func(name string) error) error {
	f, err := os.Open(dir)
	if err != nil {
		return errors.E(err, "enumerate", dir)
	}
	names, err := f.Readdirnames(-1)
	if e := f.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return errors.E(err, "enumerate", dir)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := cb(name); err != nil {
			return err
		}
	}
	return nil
}

// MkDirAll creates the named directory along with any missing parents.
func MkDirAll(path string) error {
	if err := os.MkdirAll(path, 0777); err != nil {
		return errors.E(err, "mkdir", path)
	}
	return nil
}

// FromVirtual converts a '/'-separated archive-relative path to the
// native separator. It is the identity on platforms whose separator is
// already '/'.
func FromVirtual(path string) string {
	if Separator == '/' {
		return path
	}
	return filepath.FromSlash(path)
}
