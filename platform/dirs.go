// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package platform

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mitchellh/go-homedir"
	"github.com/pakfs/pakfs/errors"
)

// CalcBaseDir reports the directory holding the running binary. It
// prefers the operating system's own notion of the executable path and
// falls back to the caller-supplied argv0. The result ends in the
// native separator.
func CalcBaseDir(argv0 string) (string, error) {
	exe, err := os.Executable()
	if err != nil || exe == "" {
		if argv0 == "" {
			return "", errors.E(errors.Argv0IsNull, "cannot locate binary directory")
		}
		exe, err = filepath.Abs(argv0)
		if err != nil {
			return "", errors.E(err, "base dir", argv0)
		}
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return withSeparator(filepath.Dir(exe)), nil
}

var (
	userDirOnce sync.Once
	userDir     string
	userDirErr  error
)

// CalcUserDir reports the calling user's home directory, ending in the
// native separator. The result is computed once and cached.
func CalcUserDir() (string, error) {
	userDirOnce.Do(func() {
		dir, err := homedir.Dir()
		if err != nil {
			userDirErr = errors.E(err, "user dir")
			return
		}
		userDir = withSeparator(dir)
	})
	return userDir, userDirErr
}

// CalcPrefDir reports the per-user preference directory for the given
// organization and application, creating it if necessary. The result
// ends in the native separator.
func CalcPrefDir(org, app string) (string, error) {
	if org == "" || app == "" {
		return "", errors.E(errors.InvalidArgument, "pref dir needs both org and app")
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", errors.E(err, "pref dir")
	}
	dir := filepath.Join(base, org, app)
	if err := MkDirAll(dir); err != nil {
		return "", err
	}
	return withSeparator(dir), nil
}

func withSeparator(dir string) string {
	if strings.HasSuffix(dir, string(Separator)) {
		return dir
	}
	return dir + string(Separator)
}
