// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package errors

import "sync"

// Once accumulates the first error of a best-effort sequence. The
// virtual file system uses it where teardown must keep going past
// failures — drive deinit flushes and closes every open handle and
// mount, reporting the first thing that went wrong — and Set is safe
// to call from multiple goroutines.
//
// A zero Once is ready to use.
type Once struct {
	mu  sync.Mutex
	err error
}

// Set records err unless an error was already recorded. A nil err is
// ignored, so callers can feed it every step of a teardown verbatim.
func (o *Once) Set(err error) {
	if err == nil {
		return
	}
	o.mu.Lock()
	if o.err == nil {
		o.err = err
	}
	o.mu.Unlock()
}

// Err returns the first error passed to Set, or nil.
func (o *Once) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Kind returns the kind of the first recorded error, or OK when none
// was recorded.
func (o *Once) Kind() Kind {
	err := o.Err()
	if err == nil {
		return OK
	}
	return Recover(err).Kind
}
