// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package stream defines the polymorphic I/O object used throughout
// the virtual file system: every open virtual file, and every archive
// handed to a mount, is driven through a Stream. Blocking operations
// are context-aware.
//
// Two implementations are provided: a native file stream (Open,
// Create, Append) and an in-memory stream (NewMemory) used to mount
// archives held in memory and as a test double.
package stream

import (
	"context"
	"io"
)

// Stream is a seekable, duplicable byte stream. A Stream is owned by
// exactly one open file handle (or is freestanding while serving as
// the source of a mount); implementations need not be thread safe.
type Stream interface {
	// Read reads up to len(p) bytes into p. It follows io.Reader
	// semantics; in particular it returns io.EOF at end of stream.
	Read(ctx context.Context, p []byte) (int, error)

	// Write writes len(p) bytes from p. Streams opened read-only
	// return an error of kind errors.OpenForReading.
	Write(ctx context.Context, p []byte) (int, error)

	// Seek sets the offset for the next Read or Write, interpreted
	// per io.Seeker.
	Seek(ctx context.Context, offset int64, whence int) (int64, error)

	// Tell reports the current offset.
	Tell(ctx context.Context) (int64, error)

	// Length reports the total size of the stream.
	Length(ctx context.Context) (int64, error)

	// Duplicate returns an independent stream over the same
	// underlying bytes, positioned at offset zero.
	Duplicate(ctx context.Context) (Stream, error)

	// Flush forces buffered writes to the underlying storage. It is
	// a no-op for read-only streams.
	Flush(ctx context.Context) error

	// Close releases the stream's resources. Only the owning handle
	// may call it, exactly once.
	Close(ctx context.Context) error
}

// ReaderAt adapts a Stream to io.ReaderAt for consumers, such as
// archive parsers, that address the stream by absolute offset. The
// adapter serializes access, so the returned object is safe for
// concurrent use even though the stream is not. The stream's offset
// after any ReadAt is unspecified.
func ReaderAt(ctx context.Context, st Stream) io.ReaderAt {
	return &readerAt{ctx: ctx, st: st}
}

// Reader adapts a Stream to io.Reader, pinning the given context.
func Reader(ctx context.Context, st Stream) io.Reader {
	return &reader{ctx: ctx, st: st}
}

type reader struct {
	ctx context.Context
	st  Stream
}

func (r *reader) Read(p []byte) (int, error) {
	return r.st.Read(r.ctx, p)
}
