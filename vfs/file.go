// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"context"
	"io"

	"github.com/pakfs/pakfs/errors"
	"github.com/pakfs/pakfs/stream"
)

// File is one open stream in the virtual file system, linked into its
// drive's open-handle registry until Close. An optional buffer,
// installed with SetBuffer, batches small reads and writes.
//
// Operations on a single File are not safe for concurrent use: the
// caller must not overlap calls on one handle, and in particular must
// not close a handle concurrently with another operation on it.
// Concurrent operations on different handles of the same drive are
// safe.
type File struct {
	d          *Drive
	st         stream.Stream
	mnt        *mount
	forReading bool

	// alloc made buf, and gets it back when the buffer is released.
	alloc   Allocator
	buf     []byte
	bufFill int // bytes of valid data (reads) or pending data (writes)
	bufPos  int // read cursor within buf; always 0 for writes
}

// Read reads up to len(p) bytes into p, through the handle's buffer
// when one is installed. It follows io.Reader semantics, returning
// io.EOF at end of file.
func (f *File) Read(ctx context.Context, p []byte) (int, error) {
	if !f.forReading {
		return 0, f.d.note(errors.E(errors.OpenForWriting, "read"))
	}
	if f.buf == nil {
		n, err := f.st.Read(ctx, p)
		if err != nil && err != io.EOF {
			return n, f.d.note(err)
		}
		return n, err
	}
	total := 0
	for total < len(p) {
		if f.bufPos < f.bufFill {
			n := copy(p[total:], f.buf[f.bufPos:f.bufFill])
			total += n
			f.bufPos += n
			continue
		}
		n, err := f.st.Read(ctx, f.buf)
		f.bufFill, f.bufPos = n, 0
		if n == 0 || (err != nil && err != io.EOF) {
			if total > 0 {
				return total, nil
			}
			if err == nil || err == io.EOF {
				return 0, io.EOF
			}
			return 0, f.d.note(err)
		}
	}
	return total, nil
}

// Write writes len(p) bytes from p. With a buffer installed, payloads
// that fit in the remaining buffer space are batched; larger payloads
// flush the buffer and then go to the underlying stream directly.
func (f *File) Write(ctx context.Context, p []byte) (int, error) {
	if f.forReading {
		return 0, f.d.note(errors.E(errors.OpenForReading, "write"))
	}
	if f.buf != nil {
		if len(p) <= len(f.buf)-f.bufFill {
			copy(f.buf[f.bufFill:], p)
			f.bufFill += len(p)
			return len(p), nil
		}
		if err := f.flush(ctx); err != nil {
			return 0, f.d.note(err)
		}
	}
	n, err := f.st.Write(ctx, p)
	return n, f.d.note(err)
}

// ReadItems reads up to count objects of size bytes each into p,
// returning the number of whole objects read. A trailing partial
// object is counted out; its bytes stay consumed.
func (f *File) ReadItems(ctx context.Context, p []byte, size, count int64) (int64, error) {
	if size <= 0 || count < 0 || int64(len(p)) < size*count {
		return 0, f.d.note(errors.E(errors.InvalidArgument, "read items"))
	}
	n, err := f.Read(ctx, p[:size*count])
	if err != nil && err != io.EOF {
		return int64(n) / size, err
	}
	return int64(n) / size, nil
}

// WriteItems writes count objects of size bytes each from p, returning
// the number of whole objects written.
func (f *File) WriteItems(ctx context.Context, p []byte, size, count int64) (int64, error) {
	if size <= 0 || count < 0 || int64(len(p)) < size*count {
		return 0, f.d.note(errors.E(errors.InvalidArgument, "write items"))
	}
	n, err := f.Write(ctx, p[:size*count])
	if err != nil {
		return int64(n) / size, err
	}
	return int64(n) / size, nil
}

// Tell reports the handle's logical position, accounting for data
// still sitting in the buffer.
func (f *File) Tell(ctx context.Context) (int64, error) {
	pos, err := f.st.Tell(ctx)
	if err != nil {
		return -1, f.d.note(err)
	}
	if f.forReading {
		return pos - int64(f.bufFill) + int64(f.bufPos), nil
	}
	return pos + int64(f.bufFill), nil
}

// Seek moves the handle to the absolute position pos. Writes are
// flushed first. For buffered reads a target within the buffered
// window only moves the read cursor; the underlying stream is not
// touched.
func (f *File) Seek(ctx context.Context, pos int64) error {
	if pos < 0 {
		return f.d.note(errors.E(errors.InvalidArgument, "negative seek"))
	}
	if !f.forReading {
		if err := f.flush(ctx); err != nil {
			return f.d.note(err)
		}
		_, err := f.st.Seek(ctx, pos, io.SeekStart)
		return f.d.note(err)
	}
	if f.buf != nil && f.bufFill > 0 {
		under, err := f.st.Tell(ctx)
		if err != nil {
			return f.d.note(err)
		}
		start := under - int64(f.bufFill) // logical position of buf[0]
		if pos >= start && pos <= under {
			f.bufPos = int(pos - start)
			return nil
		}
	}
	f.bufPos, f.bufFill = 0, 0
	_, err := f.st.Seek(ctx, pos, io.SeekStart)
	return f.d.note(err)
}

// Length reports the file's total size.
func (f *File) Length(ctx context.Context) (int64, error) {
	n, err := f.st.Length(ctx)
	return n, f.d.note(err)
}

// EOF tells whether a reading handle is at end of file.
func (f *File) EOF(ctx context.Context) bool {
	if !f.forReading {
		return false
	}
	pos, err := f.Tell(ctx)
	if err != nil {
		return false
	}
	size, err := f.Length(ctx)
	if err != nil {
		return false
	}
	return pos >= size
}

// flush writes out pending buffered write data. It leaves the buffer
// intact on failure so the caller can retry.
func (f *File) flush(ctx context.Context) error {
	if f.forReading || f.bufFill == 0 {
		return nil
	}
	if _, err := f.st.Write(ctx, f.buf[f.bufPos:f.bufFill]); err != nil {
		return err
	}
	f.bufFill, f.bufPos = 0, 0
	return nil
}

// Flush writes out pending buffered data and asks the underlying
// stream to do the same.
func (f *File) Flush(ctx context.Context) error {
	if err := f.flush(ctx); err != nil {
		return f.d.note(err)
	}
	return f.d.note(f.st.Flush(ctx))
}

// SetBuffer installs a buffer of the given size on the handle, or
// removes buffering when size is zero. Pending writes are flushed
// first; for reads the underlying stream is repositioned to the
// logical position so no buffered data is lost.
func (f *File) SetBuffer(ctx context.Context, size int) error {
	if size < 0 {
		return f.d.note(errors.E(errors.InvalidArgument, "negative buffer size"))
	}
	if err := f.flush(ctx); err != nil {
		return f.d.note(err)
	}
	if f.forReading && f.bufFill > f.bufPos {
		pos, err := f.Tell(ctx)
		if err != nil {
			return err
		}
		if _, err := f.st.Seek(ctx, pos, io.SeekStart); err != nil {
			return f.d.note(err)
		}
	}
	if f.buf != nil {
		f.alloc.Free(f.buf)
		f.buf, f.alloc = nil, nil
	}
	if size > 0 {
		f.alloc = f.d.Allocator()
		f.buf = f.alloc.Alloc(size)
	}
	f.bufFill, f.bufPos = 0, 0
	return nil
}

// Close flushes the handle (for writes), destroys the underlying
// stream, and unlinks the handle from its drive. A flush failure
// aborts the close: the handle stays open so the caller can retry.
func (f *File) Close(ctx context.Context) error {
	d := f.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.isLinkedLocked(f) {
		return d.note(errors.E(errors.InvalidArgument, "close of unknown handle"))
	}
	if !f.forReading {
		if err := f.flush(ctx); err != nil {
			return d.note(err)
		}
		if err := f.st.Flush(ctx); err != nil {
			return d.note(err)
		}
	}
	err := f.st.Close(ctx)
	d.unlinkLocked(f)
	f.releaseLocked()
	return d.note(err)
}

// isLinkedLocked tells whether f is in either handle list. The caller
// holds d.mu.
func (d *Drive) isLinkedLocked(f *File) bool {
	for _, h := range d.readers {
		if h == f {
			return true
		}
	}
	for _, h := range d.writers {
		if h == f {
			return true
		}
	}
	return false
}

// unlinkLocked removes f from its handle list, reporting whether it
// was linked. The caller holds d.mu.
func (d *Drive) unlinkLocked(f *File) bool {
	for i, h := range d.readers {
		if h == f {
			d.readers = append(d.readers[:i], d.readers[i+1:]...)
			return true
		}
	}
	for i, h := range d.writers {
		if h == f {
			d.writers = append(d.writers[:i], d.writers[i+1:]...)
			return true
		}
	}
	return false
}

// releaseLocked frees the handle's buffer and severs its links. The
// caller holds d.mu (or is tearing the drive down).
func (f *File) releaseLocked() {
	if f.buf != nil {
		f.alloc.Free(f.buf)
		f.buf, f.alloc = nil, nil
	}
	f.bufFill, f.bufPos = 0, 0
	f.mnt = nil
}
