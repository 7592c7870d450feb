// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package stream

import (
	"context"
	"io"

	"github.com/pakfs/pakfs/errors"
)

// memoryStream serves a byte slice. Read-only duplicates share the
// underlying bytes but hold independent positions.
type memoryStream struct {
	data     []byte
	pos      int64
	writable bool
}

var _ Stream = (*memoryStream)(nil)

// NewMemory returns a read-only stream over data. The stream keeps a
// reference to data; the caller must not mutate it afterwards.
func NewMemory(data []byte) Stream {
	return &memoryStream{data: data}
}

// NewMemoryWriter returns an empty, growable read-write stream.
func NewMemoryWriter() Stream {
	return &memoryStream{writable: true}
}

// Read implements Stream.
func (s *memoryStream) Read(_ context.Context, p []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

// Write implements Stream.
func (s *memoryStream) Write(_ context.Context, p []byte) (int, error) {
	if !s.writable {
		return 0, errors.E(errors.OpenForReading, "write to read-only memory stream")
	}
	if need := s.pos + int64(len(p)); need > int64(len(s.data)) {
		grown := make([]byte, need)
		copy(grown, s.data)
		s.data = grown
	}
	n := copy(s.data[s.pos:], p)
	s.pos += int64(n)
	return n, nil
}

// Seek implements Stream.
func (s *memoryStream) Seek(_ context.Context, offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = int64(len(s.data)) + offset
	default:
		return s.pos, errors.E(errors.InvalidArgument, "bad seek whence")
	}
	if abs < 0 {
		return s.pos, errors.E(errors.InvalidArgument, "seek before start")
	}
	if abs > int64(len(s.data)) {
		return s.pos, errors.E(errors.PastEOF, "seek past end of memory stream")
	}
	s.pos = abs
	return abs, nil
}

// Tell implements Stream.
func (s *memoryStream) Tell(_ context.Context) (int64, error) {
	return s.pos, nil
}

// Length implements Stream.
func (s *memoryStream) Length(_ context.Context) (int64, error) {
	return int64(len(s.data)), nil
}

// Duplicate implements Stream.
func (s *memoryStream) Duplicate(_ context.Context) (Stream, error) {
	if s.writable {
		return nil, errors.E(errors.Unsupported, "duplicate writable memory stream")
	}
	return &memoryStream{data: s.data}, nil
}

// Flush implements Stream.
func (s *memoryStream) Flush(context.Context) error { return nil }

// Close implements Stream.
func (s *memoryStream) Close(context.Context) error { return nil }
