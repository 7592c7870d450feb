// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"strings"

	"github.com/pakfs/pakfs/errors"
)

// sanitizePath normalizes a caller-supplied virtual path to its
// canonical interior form: no leading or trailing separators, no empty
// segments. The empty string is the canonical root. It fails with kind
// BadFilename on ':' or '\' anywhere and on '.' or '..' segments; this
// is the only layer that enforces path safety, archive back-ends trust
// their inputs.
func sanitizePath(in string) (string, error) {
	var b strings.Builder
	b.Grow(len(in))
	i := 0
	for i < len(in) {
		for i < len(in) && in[i] == '/' {
			i++
		}
		start := i
		for i < len(in) && in[i] != '/' {
			if c := in[i]; c == ':' || c == '\\' {
				return "", errors.E(errors.BadFilename, in)
			}
			i++
		}
		seg := in[start:i]
		if seg == "" {
			continue
		}
		if seg == "." || seg == ".." {
			return "", errors.E(errors.BadFilename, in)
		}
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString(seg)
	}
	return b.String(), nil
}
