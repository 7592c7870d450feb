// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package archiver

import (
	"context"
	"io"

	"github.com/pakfs/pakfs/errors"
	"github.com/pakfs/pakfs/platform"
	"github.com/pakfs/pakfs/stream"
)

// ErrNotClaimed is the failure OpenStream reports when no registered
// back-end recognizes the content.
var ErrNotClaimed = errors.E(errors.Unsupported, "no registered back-end recognizes this archive")

// OpenDirectory resolves the archive at the named real path. A real
// directory is served by the built-in directory back-end; anything
// else is opened as a native stream and offered to the registered
// back-ends via OpenStream. The returned Archive owns any stream this
// function opened.
func OpenDirectory(ctx context.Context, name string, forWriting bool) (Archive, Archiver, error) {
	if info, err := platform.Stat(name, true); err == nil && info.IsDir() {
		arc, err := dirBackend.OpenArchive(ctx, nil, name, forWriting)
		if err != nil {
			return nil, nil, err
		}
		if arc != nil {
			return arc, dirBackend, nil
		}
	}
	st, err := stream.Open(name)
	if err != nil {
		return nil, nil, err
	}
	arc, a, err := OpenStream(ctx, st, name, forWriting)
	if err != nil {
		errors.CleanUpCtx(ctx, st.Close, &err)
		return nil, nil, err
	}
	return arc, a, nil
}

// OpenStream offers st to each registered back-end in registration
// order, rewinding it between attempts. The first back-end to claim
// the content wins and its Archive takes ownership of st. A back-end
// that claims the content but fails to open it ends the scan with its
// error. If no back-end claims it, OpenStream fails with kind
// Unsupported. On failure st remains owned by the caller.
func OpenStream(ctx context.Context, st stream.Stream, name string, forWriting bool) (Archive, Archiver, error) {
	for _, a := range Registered() {
		if _, err := st.Seek(ctx, 0, io.SeekStart); err != nil {
			return nil, nil, err
		}
		arc, err := a.OpenArchive(ctx, st, name, forWriting)
		if err != nil {
			return nil, nil, err
		}
		if arc != nil {
			return arc, a, nil
		}
	}
	return nil, nil, ErrNotClaimed
}
