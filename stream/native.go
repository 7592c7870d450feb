// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package stream

import (
	"context"
	"io"
	"os"

	"github.com/pakfs/pakfs/errors"
)

type nativeMode int

const (
	modeRead nativeMode = iota
	modeWrite
	modeAppend
)

// nativeStream drives a real file through the os package.
type nativeStream struct {
	f    *os.File
	path string
	mode nativeMode
}

var _ Stream = (*nativeStream)(nil)

// Open opens the named real file for reading.
func Open(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(err, "open", path)
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		_ = f.Close()
		return nil, errors.E(errors.NotAFile, "open", path)
	}
	return &nativeStream{f: f, path: path, mode: modeRead}, nil
}

// Create opens the named real file for writing, truncating it if it
// exists and creating it otherwise.
func Create(path string) (Stream, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, errors.E(err, "create", path)
	}
	return &nativeStream{f: f, path: path, mode: modeWrite}, nil
}

// Append opens the named real file for writing, positioned at its end,
// creating it if necessary.
func Append(path string) (Stream, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0666)
	if err != nil {
		return nil, errors.E(err, "append", path)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, errors.E(err, "append", path)
	}
	return &nativeStream{f: f, path: path, mode: modeAppend}, nil
}

// Read implements Stream.
func (s *nativeStream) Read(_ context.Context, p []byte) (int, error) {
	if s.mode != modeRead {
		return 0, errors.E(errors.OpenForWriting, "read", s.path)
	}
	return s.f.Read(p)
}

// Write implements Stream.
func (s *nativeStream) Write(_ context.Context, p []byte) (int, error) {
	if s.mode == modeRead {
		return 0, errors.E(errors.OpenForReading, "write", s.path)
	}
	n, err := s.f.Write(p)
	if err != nil {
		return n, errors.E(err, "write", s.path)
	}
	return n, nil
}

// Seek implements Stream.
func (s *nativeStream) Seek(_ context.Context, offset int64, whence int) (int64, error) {
	pos, err := s.f.Seek(offset, whence)
	if err != nil {
		return pos, errors.E(err, "seek", s.path)
	}
	return pos, nil
}

// Tell implements Stream.
func (s *nativeStream) Tell(_ context.Context) (int64, error) {
	return s.f.Seek(0, io.SeekCurrent)
}

// Length implements Stream.
func (s *nativeStream) Length(_ context.Context) (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return -1, errors.E(err, "stat", s.path)
	}
	return info.Size(), nil
}

// Duplicate implements Stream. The duplicate is an independent handle
// on the same file, positioned at offset zero. Write streams cannot be
// duplicated.
func (s *nativeStream) Duplicate(_ context.Context) (Stream, error) {
	if s.mode != modeRead {
		return nil, errors.E(errors.Unsupported, "duplicate writable stream", s.path)
	}
	return Open(s.path)
}

// Flush implements Stream.
func (s *nativeStream) Flush(_ context.Context) error {
	if s.mode == modeRead {
		return nil
	}
	if err := s.f.Sync(); err != nil {
		return errors.E(err, "flush", s.path)
	}
	return nil
}

// Close implements Stream.
func (s *nativeStream) Close(_ context.Context) error {
	if err := s.f.Close(); err != nil {
		return errors.E(err, "close", s.path)
	}
	return nil
}
