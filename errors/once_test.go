// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package errors_test

import (
	"sync"
	"testing"

	"github.com/pakfs/pakfs/errors"
	"github.com/stretchr/testify/assert"
)

func TestOnce(t *testing.T) {
	var e errors.Once
	assert.NoError(t, e.Err())
	assert.Equal(t, errors.OK, e.Kind())

	e.Set(nil) // ignored
	assert.NoError(t, e.Err())

	e.Set(errors.E(errors.IO, "first"))
	e.Set(errors.E(errors.Corrupt, "second"))
	assert.True(t, errors.Is(errors.IO, e.Err()))
	assert.Equal(t, errors.IO, e.Kind())
}

func TestOnceConcurrent(t *testing.T) {
	var e errors.Once
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Set(errors.New("race"))
		}()
	}
	wg.Wait()
	assert.Error(t, e.Err())
}
