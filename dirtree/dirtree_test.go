// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dirtree_test

import (
	"sort"
	"testing"

	"github.com/go-test/deep"
	"github.com/pakfs/pakfs/dirtree"
	"github.com/pakfs/pakfs/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFind(t *testing.T) {
	tr := dirtree.New[int](0)
	e, err := tr.Add("data/maps/level1.map", false)
	require.NoError(t, err)
	assert.Equal(t, "data/maps/level1.map", e.Name())
	assert.Equal(t, "level1.map", e.Base())
	assert.False(t, e.IsDir())

	// Ancestors were synthesized as directories.
	for _, dir := range []string{"data", "data/maps"} {
		d := tr.Find(dir)
		require.NotNil(t, d, dir)
		assert.True(t, d.IsDir(), dir)
	}

	// Absent paths and the root.
	assert.Nil(t, tr.Find("data/maps/level2.map"))
	assert.Same(t, tr.Root(), tr.Find(""))
}

func TestAddIdempotent(t *testing.T) {
	tr := dirtree.New[int](0)
	a, err := tr.Add("x/y", false)
	require.NoError(t, err)
	a.Payload = 42
	b, err := tr.Add("x/y", false)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 42, b.Payload)
}

func TestAddUnderFile(t *testing.T) {
	tr := dirtree.New[int](0)
	_, err := tr.Add("readme.txt", false)
	require.NoError(t, err)
	_, err = tr.Add("readme.txt/oops", false)
	assert.True(t, errors.Is(errors.Corrupt, err))
}

func TestEnumerate(t *testing.T) {
	tr := dirtree.New[int](0)
	for _, name := range []string{"a/1", "a/2", "a/sub/3", "b"} {
		_, err := tr.Add(name, false)
		require.NoError(t, err)
	}
	var got []string
	require.NoError(t, tr.Enumerate("a", func(e *dirtree.Entry[int]) error {
		got = append(got, e.Base())
		return nil
	}))
	sort.Strings(got)
	if diff := deep.Equal([]string{"1", "2", "sub"}, got); diff != nil {
		t.Error(diff)
	}

	err := tr.Enumerate("missing", func(*dirtree.Entry[int]) error { return nil })
	assert.True(t, errors.Is(errors.NotFound, err))
	err = tr.Enumerate("b", func(*dirtree.Entry[int]) error { return nil })
	assert.True(t, errors.Is(errors.NotAFile, err))
}

func TestEnumerateStops(t *testing.T) {
	tr := dirtree.New[int](0)
	for _, name := range []string{"d/1", "d/2", "d/3"} {
		_, err := tr.Add(name, false)
		require.NoError(t, err)
	}
	sentinel := errors.New("done")
	calls := 0
	err := tr.Enumerate("d", func(*dirtree.Entry[int]) error {
		calls++
		return sentinel
	})
	assert.Equal(t, sentinel, err)
	assert.Equal(t, 1, calls)
}

func TestManyEntriesOneBucket(t *testing.T) {
	// A single bucket forces every lookup through chain traversal and
	// the move-to-front path.
	tr := dirtree.New[int](1)
	names := []string{"q", "w/e", "w/r", "w/e/t", "y"}
	for _, name := range names {
		_, err := tr.Add(name, false)
		require.NoError(t, err)
	}
	for _, name := range names {
		require.NotNil(t, tr.Find(name), name)
		require.NotNil(t, tr.Find(name), name) // found again after move-to-front
	}
}
