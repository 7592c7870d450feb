// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package stream_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pakfs/pakfs/errors"
	"github.com/pakfs/pakfs/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReads(t *testing.T) {
	ctx := context.Background()
	st := stream.NewMemory([]byte("hello world"))

	p := make([]byte, 5)
	n, err := st.Read(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(p[:n]))

	pos, err := st.Tell(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)

	size, err := st.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)

	_, err = st.Seek(ctx, 6, io.SeekStart)
	require.NoError(t, err)
	n, err = st.Read(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "world", string(p[:n]))

	_, err = st.Read(ctx, p)
	assert.Equal(t, io.EOF, err)

	_, err = st.Seek(ctx, 100, io.SeekStart)
	assert.True(t, errors.Is(errors.PastEOF, err))

	_, err = st.Write(ctx, []byte("nope"))
	assert.True(t, errors.Is(errors.OpenForReading, err))
}

func TestMemoryDuplicate(t *testing.T) {
	ctx := context.Background()
	st := stream.NewMemory([]byte("abcdef"))
	_, err := st.Seek(ctx, 3, io.SeekStart)
	require.NoError(t, err)

	dup, err := st.Duplicate(ctx)
	require.NoError(t, err)
	p := make([]byte, 6)
	n, err := dup.Read(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(p[:n])) // duplicate starts at zero

	n, err = st.Read(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "def", string(p[:n])) // original position untouched
}

func TestMemoryWriter(t *testing.T) {
	ctx := context.Background()
	st := stream.NewMemoryWriter()
	_, err := st.Write(ctx, []byte("grow"))
	require.NoError(t, err)
	_, err = st.Seek(ctx, 0, io.SeekStart)
	require.NoError(t, err)
	p := make([]byte, 4)
	_, err = st.Read(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "grow", string(p))
}

func TestNativeRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "native.bin")

	w, err := stream.Create(path)
	require.NoError(t, err)
	_, err = w.Write(ctx, []byte("native bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Flush(ctx))
	require.NoError(t, w.Close(ctx))

	r, err := stream.Open(path)
	require.NoError(t, err)
	defer r.Close(ctx) // nolint: errcheck

	size, err := r.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len("native bytes")), size)

	_, err = r.Write(ctx, []byte("x"))
	assert.True(t, errors.Is(errors.OpenForReading, err))

	dup, err := r.Duplicate(ctx)
	require.NoError(t, err)
	p := make([]byte, 6)
	_, err = io.ReadFull(stream.Reader(ctx, dup), p)
	require.NoError(t, err)
	assert.Equal(t, "native", string(p))
	require.NoError(t, dup.Close(ctx))
}

func TestNativeAppend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\n"), 0666))

	a, err := stream.Append(path)
	require.NoError(t, err)
	_, err = a.Write(ctx, []byte("two\n"))
	require.NoError(t, err)
	require.NoError(t, a.Close(ctx))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(got))
}

func TestNativeOpenMissing(t *testing.T) {
	_, err := stream.Open(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(errors.NotFound, err))
}

func TestReaderAt(t *testing.T) {
	ctx := context.Background()
	ra := stream.ReaderAt(ctx, stream.NewMemory([]byte("0123456789")))
	p := make([]byte, 3)
	n, err := ra.ReadAt(p, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "456", string(p))
}
