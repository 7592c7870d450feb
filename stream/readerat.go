// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package stream

import (
	"context"
	"io"
	"sync"
)

type readerAt struct {
	ctx context.Context
	mu  sync.Mutex
	st  Stream
}

var _ io.ReaderAt = (*readerAt)(nil)

// ReadAt implements io.ReaderAt.
func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.st.Seek(r.ctx, off, io.SeekStart); err != nil {
		return 0, err
	}
	n := 0
	for n < len(p) {
		nn, err := r.st.Read(r.ctx, p[n:])
		n += nn
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
