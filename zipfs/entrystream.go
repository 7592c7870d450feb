// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package zipfs

import (
	"context"
	"io"

	"github.com/klauspost/compress/zip"
	"github.com/pakfs/pakfs/errors"
	"github.com/pakfs/pakfs/stream"
)

// entryStream reads one compressed entry. The decompressor only moves
// forward, so a backward seek reopens the entry and skips ahead from
// the start.
type entryStream struct {
	f   *zip.File
	rc  io.ReadCloser
	pos int64
}

var _ stream.Stream = (*entryStream)(nil)

func openEntry(f *zip.File) (stream.Stream, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errors.E(errors.Corrupt, "zip", f.Name, err)
	}
	return &entryStream{f: f, rc: rc}, nil
}

// Read implements stream.Stream.
func (s *entryStream) Read(_ context.Context, p []byte) (int, error) {
	n, err := s.rc.Read(p)
	s.pos += int64(n)
	if err != nil && err != io.EOF {
		err = errors.E(errors.Corrupt, "zip", s.f.Name, err)
	}
	return n, err
}

// Write implements stream.Stream.
func (s *entryStream) Write(context.Context, []byte) (int, error) {
	return 0, errors.E(errors.OpenForReading, "zip", s.f.Name)
}

// Seek implements stream.Stream.
func (s *entryStream) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	size := int64(s.f.UncompressedSize64)
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = size + offset
	default:
		return s.pos, errors.E(errors.InvalidArgument, "bad seek whence")
	}
	if abs < 0 {
		return s.pos, errors.E(errors.InvalidArgument, "seek before start")
	}
	if abs > size {
		return s.pos, errors.E(errors.PastEOF, "zip", s.f.Name)
	}
	if abs < s.pos {
		if err := s.rc.Close(); err != nil {
			return s.pos, errors.E(errors.IO, "zip", s.f.Name, err)
		}
		rc, err := s.f.Open()
		if err != nil {
			return s.pos, errors.E(errors.Corrupt, "zip", s.f.Name, err)
		}
		s.rc, s.pos = rc, 0
	}
	if abs > s.pos {
		if _, err := io.CopyN(io.Discard, s.rc, abs-s.pos); err != nil {
			return s.pos, errors.E(errors.Corrupt, "zip", s.f.Name, err)
		}
		s.pos = abs
	}
	return s.pos, nil
}

// Tell implements stream.Stream.
func (s *entryStream) Tell(context.Context) (int64, error) {
	return s.pos, nil
}

// Length implements stream.Stream.
func (s *entryStream) Length(context.Context) (int64, error) {
	return int64(s.f.UncompressedSize64), nil
}

// Duplicate implements stream.Stream.
func (s *entryStream) Duplicate(context.Context) (stream.Stream, error) {
	return openEntry(s.f)
}

// Flush implements stream.Stream.
func (s *entryStream) Flush(context.Context) error { return nil }

// Close implements stream.Stream.
func (s *entryStream) Close(context.Context) error {
	if err := s.rc.Close(); err != nil {
		return errors.E(errors.IO, "zip", s.f.Name, err)
	}
	return nil
}
