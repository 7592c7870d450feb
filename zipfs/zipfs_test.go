// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package zipfs_test

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/pakfs/pakfs/archiver"
	"github.com/pakfs/pakfs/errors"
	"github.com/pakfs/pakfs/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/pakfs/pakfs/zipfs"
)

type zipEntry struct {
	name    string
	body    string
	symlink bool
}

func buildZip(t *testing.T, entries []zipEntry) stream.Stream {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.symlink {
			hdr.SetMode(fs.ModeSymlink | 0777)
		}
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return stream.NewMemory(buf.Bytes())
}

func openZip(t *testing.T, entries []zipEntry) archiver.Archive {
	t.Helper()
	ctx := context.Background()
	arc, a, err := archiver.OpenStream(ctx, buildZip(t, entries), "test.zip", false)
	require.NoError(t, err)
	require.Equal(t, "zip", a.Info().Extension)
	t.Cleanup(func() { _ = arc.Close(ctx) })
	return arc
}

func TestOpenStreamUnrecognized(t *testing.T) {
	ctx := context.Background()
	_, _, err := archiver.OpenStream(ctx, stream.NewMemory([]byte("just some text")), "notes.txt", false)
	assert.True(t, errors.Is(errors.Unsupported, err))
}

func TestOpenForWriting(t *testing.T) {
	ctx := context.Background()
	_, _, err := archiver.OpenStream(ctx, buildZip(t, []zipEntry{{name: "a", body: "x"}}), "test.zip", true)
	assert.True(t, errors.Is(errors.ReadOnly, err))
}

func TestStatAndEnumerate(t *testing.T) {
	ctx := context.Background()
	arc := openZip(t, []zipEntry{
		{name: "data/x", body: "payload"},
		{name: "data/maps/m1", body: "m"},
		{name: "readme", body: "hi"},
	})

	st, err := arc.Stat(ctx, "data/x")
	require.NoError(t, err)
	assert.Equal(t, archiver.TypeRegular, st.Type)
	assert.Equal(t, int64(len("payload")), st.Size)
	assert.True(t, st.ReadOnly)

	st, err = arc.Stat(ctx, "data")
	require.NoError(t, err)
	assert.Equal(t, archiver.TypeDirectory, st.Type)

	_, err = arc.Stat(ctx, "data/missing")
	assert.True(t, errors.Is(errors.NotFound, err))

	var names []string
	require.NoError(t, arc.Enumerate(ctx, "data", func(dir, name string) error {
		assert.Equal(t, "/data", dir)
		names = append(names, name)
		return nil
	}, "/data"))
	sort.Strings(names)
	assert.Equal(t, []string{"maps", "x"}, names)
}

func TestReadEntry(t *testing.T) {
	ctx := context.Background()
	arc := openZip(t, []zipEntry{{name: "hello.txt", body: "hello zip"}})

	st, err := arc.OpenRead(ctx, "hello.txt")
	require.NoError(t, err)
	defer st.Close(ctx) // nolint: errcheck

	got, err := io.ReadAll(stream.Reader(ctx, st))
	require.NoError(t, err)
	assert.Equal(t, "hello zip", string(got))

	// Backward seek reopens the decompressor.
	_, err = st.Seek(ctx, 6, io.SeekStart)
	require.NoError(t, err)
	got, err = io.ReadAll(stream.Reader(ctx, st))
	require.NoError(t, err)
	assert.Equal(t, "zip", string(got))

	dup, err := st.Duplicate(ctx)
	require.NoError(t, err)
	got, err = io.ReadAll(stream.Reader(ctx, dup))
	require.NoError(t, err)
	assert.Equal(t, "hello zip", string(got))
	require.NoError(t, dup.Close(ctx))
}

func TestSymlinks(t *testing.T) {
	ctx := context.Background()
	arc := openZip(t, []zipEntry{
		{name: "data/x", body: "through the link"},
		{name: "link", body: "data", symlink: true},
	})

	st, err := arc.Stat(ctx, "link")
	require.NoError(t, err)
	assert.Equal(t, archiver.TypeSymlink, st.Type)

	rd, err := arc.OpenRead(ctx, "link/x")
	require.NoError(t, err)
	got, err := io.ReadAll(stream.Reader(ctx, rd))
	require.NoError(t, err)
	assert.Equal(t, "through the link", string(got))
	require.NoError(t, rd.Close(ctx))
}

func TestSymlinkLoop(t *testing.T) {
	ctx := context.Background()
	arc := openZip(t, []zipEntry{{name: "self", body: "self", symlink: true}})
	_, err := arc.OpenRead(ctx, "self")
	assert.True(t, errors.Is(errors.SymlinkLoop, err))
}

func TestSymlinkEscapeRejected(t *testing.T) {
	ctx := context.Background()
	arc := openZip(t, []zipEntry{{name: "out", body: "../etc", symlink: true}})
	_, err := arc.OpenRead(ctx, "out")
	assert.True(t, errors.Is(errors.NotFound, err))
}

func TestWritesRefused(t *testing.T) {
	ctx := context.Background()
	arc := openZip(t, []zipEntry{{name: "a", body: "x"}})
	_, err := arc.OpenWrite(ctx, "b")
	assert.True(t, errors.Is(errors.ReadOnly, err))
	assert.True(t, errors.Is(errors.ReadOnly, arc.Mkdir(ctx, "d")))
	assert.True(t, errors.Is(errors.ReadOnly, arc.Remove(ctx, "a")))
}

func TestHostileEntryNamesSkipped(t *testing.T) {
	ctx := context.Background()
	arc := openZip(t, []zipEntry{
		{name: "../escape", body: "bad"},
		{name: "ok", body: "good"},
	})
	_, err := arc.Stat(ctx, "ok")
	require.NoError(t, err)
	var names []string
	require.NoError(t, arc.Enumerate(ctx, "", func(_, name string) error {
		names = append(names, name)
		return nil
	}, ""))
	assert.Equal(t, []string{"ok"}, names)
}
