// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"context"
	"strings"

	"github.com/pakfs/pakfs/archiver"
	"github.com/pakfs/pakfs/errors"
)

// verifyPath enforces the symlink policy for one (mount, path) pair
// before any archive lookup. When symlinks are permitted, or the
// mount's back-end cannot contain them, there is nothing to check.
// Otherwise every prefix of rel is stat'ed in the mount's archive: a
// symlink anywhere fails with kind SymlinkForbidden. A missing prefix
// ends the scan without failure — the path simply doesn't exist in
// this archive, and the operation that follows will discover that
// itself. allowMissing marks callers (mkdir) for which a missing final
// segment is part of normal operation.
//
// The caller holds d.mu.
func (d *Drive) verifyPath(ctx context.Context, m *mount, rel string, allowMissing bool) error {
	if d.SymlinksPermitted() {
		return nil
	}
	if !m.backend.Info().SupportsSymlinks {
		return nil
	}
	end := 0
	for rel != "" {
		var prefix string
		final := false
		if i := strings.IndexByte(rel[end:], '/'); i >= 0 {
			prefix = rel[:end+i]
			end += i + 1
		} else {
			prefix = rel
			final = true
		}
		st, err := m.arc.Stat(ctx, prefix)
		if err != nil {
			if errors.Is(errors.NotFound, err) {
				// A missing prefix ends the scan. With allowMissing
				// the tail is expected to be absent (mkdir); without
				// it, the operation that follows reports not-found
				// itself.
				return nil
			}
			return err
		}
		if st.Type == archiver.TypeSymlink {
			return errors.E(errors.SymlinkForbidden, prefix)
		}
		if final {
			return nil
		}
	}
	return nil
}
