// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"runtime"

	"github.com/pakfs/pakfs/errors"
)

// Every public operation returns its error directly, but the drive
// also records the error's kind for the calling goroutine, so hosts
// that poll a last-error slot (the traditional API of this kind of
// library) keep working. Slots are per goroutine per drive: errors on
// one goroutine never show up in another's slot.

// goid reports the calling goroutine's id by parsing the first line of
// its stack header ("goroutine N [running]:").
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	const prefix = len("goroutine ")
	var id int64
	for _, c := range buf[prefix:n] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}

// note records err's kind in the calling goroutine's slot and returns
// err. A nil err leaves the slot untouched, so helpers that succeed
// after an earlier recorded failure preserve the pending code.
func (d *Drive) note(err error) error {
	if err != nil {
		d.SetErrorKind(errors.Recover(err).Kind)
	}
	return err
}

// SetErrorKind stores k in the calling goroutine's error slot.
func (d *Drive) SetErrorKind(k errors.Kind) {
	d.errMu.Lock()
	d.errState[goid()] = k
	d.errMu.Unlock()
}

// LastErrorKind returns the calling goroutine's most recently recorded
// error kind and clears the slot.
func (d *Drive) LastErrorKind() errors.Kind {
	id := goid()
	d.errMu.Lock()
	defer d.errMu.Unlock()
	k, ok := d.errState[id]
	if !ok {
		return errors.OK
	}
	delete(d.errState, id)
	return k
}
