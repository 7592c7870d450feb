// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/pakfs/pakfs/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"", ""},
		{"/", ""},
		{"///", ""},
		{"foo", "foo"},
		{"/foo", "foo"},
		{"foo/", "foo"},
		{"/a//b/", "a/b"},
		{"a/b/c", "a/b/c"},
		{"//a///b//c//", "a/b/c"},
	} {
		got, err := sanitizePath(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestSanitizeRejects(t *testing.T) {
	for _, in := range []string{
		".",
		"..",
		"/..",
		"a/./b",
		"a/../b",
		"a/..",
		"../a",
		"a:b",
		`a\b`,
		"c:/windows",
		`\\server\share`,
	} {
		_, err := sanitizePath(in)
		assert.True(t, errors.Is(errors.BadFilename, err), "%q should be rejected", in)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	f := fuzz.New().NumElements(0, 64)
	for i := 0; i < 2000; i++ {
		var in string
		f.Fuzz(&in)
		once, err := sanitizePath(in)
		if err != nil {
			continue
		}
		twice, err := sanitizePath(once)
		require.NoError(t, err, "sanitized form %q of %q must sanitize", once, in)
		assert.Equal(t, once, twice, "input %q", in)
	}
}
