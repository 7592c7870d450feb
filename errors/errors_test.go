// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package errors_test

import (
	"bytes"
	"encoding/gob"
	goerrors "errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/pakfs/pakfs/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "no error", errors.OK.String())
	assert.Equal(t, "entry not found", errors.NotFound.String())
	assert.Equal(t, "symlink traversal forbidden", errors.SymlinkForbidden.String())
	assert.Equal(t, "application callback reported an error", errors.AppCallback.String())
}

func TestE(t *testing.T) {
	err := errors.E(errors.NotFound, "open", "foo.txt")
	assert.True(t, errors.Is(errors.NotFound, err))
	assert.Contains(t, err.Error(), "foo.txt")
	assert.Contains(t, err.Error(), "entry not found")
}

func TestEClassifiesStdErrs(t *testing.T) {
	for _, tc := range []struct {
		err  error
		kind errors.Kind
	}{
		{os.ErrNotExist, errors.NotFound},
		{os.ErrPermission, errors.Permission},
		{os.ErrExist, errors.Duplicate},
		{io.EOF, errors.PastEOF},
		{fmt.Errorf("wrapped: %w", os.ErrNotExist), errors.NotFound},
		{goerrors.New("mystery"), errors.Other},
	} {
		err := errors.E(tc.err)
		assert.True(t, errors.Is(tc.kind, err), "%v should have kind %v", tc.err, tc.kind)
	}
}

func TestEInheritsKindFromChain(t *testing.T) {
	inner := errors.E(errors.SymlinkForbidden, "walk")
	outer := errors.E(inner, "open")
	assert.True(t, errors.Is(errors.SymlinkForbidden, outer))
	assert.False(t, errors.Is(errors.NotFound, outer))
}

func TestIsNil(t *testing.T) {
	assert.True(t, errors.Is(errors.OK, nil))
	assert.False(t, errors.Is(errors.NotFound, nil))
}

func TestStdIsInterop(t *testing.T) {
	err := errors.E(errors.NotFound, "gone")
	assert.True(t, goerrors.Is(err, os.ErrNotExist))
	assert.False(t, goerrors.Is(err, os.ErrPermission))
}

func TestMatch(t *testing.T) {
	assert.True(t, errors.Match(
		errors.E(errors.ReadOnly),
		errors.E(errors.ReadOnly, "zip", "pack.zip")))
	assert.False(t, errors.Match(
		errors.E(errors.ReadOnly, "other message"),
		errors.E(errors.ReadOnly, "zip", "pack.zip")))
}

func TestGobRoundTrip(t *testing.T) {
	orig := errors.E(errors.Corrupt, "zip", errors.New("bad central directory"))
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(errors.Recover(orig)))
	var got errors.Error
	require.NoError(t, gob.NewDecoder(&buf).Decode(&got))
	assert.True(t, errors.Is(errors.Corrupt, &got))
	assert.Equal(t, orig.Error(), got.Error())
}

func TestCleanUp(t *testing.T) {
	f := func() (err error) {
		defer errors.CleanUp(func() error { return errors.E(errors.IO, "close") }, &err)
		return nil
	}
	assert.True(t, errors.Is(errors.IO, f()))

	g := func() (err error) {
		defer errors.CleanUp(func() error { return errors.E(errors.IO, "close") }, &err)
		return errors.E(errors.Corrupt, "body")
	}
	err := g()
	assert.True(t, errors.Is(errors.Corrupt, err))
	assert.Contains(t, err.Error(), "second error in Close")
}

func TestTemporary(t *testing.T) {
	err := errors.E(errors.Temporary, errors.IO, "flaky disk")
	assert.True(t, errors.IsTemporary(err))
	assert.False(t, errors.IsTemporary(errors.E(errors.NotFound, "gone")))
}
