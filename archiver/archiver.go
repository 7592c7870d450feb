// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package archiver defines the contract an archive back-end must honor
// to serve mounts in the virtual file system, the process-wide back-end
// registry, and the built-in back-end for real directories.
package archiver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pakfs/pakfs/errors"
	"github.com/pakfs/pakfs/stream"
)

// FileType classifies an archive entry.
type FileType int

const (
	// TypeRegular is an ordinary file.
	TypeRegular FileType = iota
	// TypeDirectory is a directory.
	TypeDirectory
	// TypeSymlink is a symbolic link.
	TypeSymlink
	// TypeOther is anything else (device, socket, ...).
	TypeOther
)

// Stat is the metadata record back-ends populate. Times are zero when
// the archive format does not record them.
type Stat struct {
	// Size is the entry's size in bytes; -1 when unknown (e.g., a
	// directory).
	Size int64
	// ModTime is the last modification time.
	ModTime time.Time
	// CreateTime is the creation time.
	CreateTime time.Time
	// AccessTime is the last access time.
	AccessTime time.Time
	// Type classifies the entry.
	Type FileType
	// ReadOnly tells whether the entry cannot be written through this
	// archive.
	ReadOnly bool
}

// Info describes a back-end to hosts and to the mount machinery.
type Info struct {
	// Extension is the filename extension the back-end conventionally
	// serves ("zip"); empty for back-ends not addressed by extension.
	Extension string
	// Description is a one-line human readable description.
	Description string
	// SupportsSymlinks tells whether archives of this format can
	// contain symbolic links. When false, the symlink security scan
	// is skipped for its mounts.
	SupportsSymlinks bool
}

// EnumerateCallback is invoked once per immediate child during
// enumeration. dir is the directory being enumerated, as passed by the
// original caller; name is the child's trailing path segment.
// Returning ErrStop halts the enumeration and is reported as success;
// any other error halts it and is reported to the caller.
type EnumerateCallback func(dir, name string) error

// ErrStop is the sentinel an EnumerateCallback returns to short-circuit
// an enumeration without error.
var ErrStop = errors.New("stop enumeration")

// An Archiver recognizes one archive format and opens Archives of it.
// Implementations must be thread safe.
type Archiver interface {
	// Info returns the back-end's description.
	Info() Info

	// OpenArchive inspects src (or name, for back-ends that address
	// the real filesystem directly) and, if the content is of this
	// back-end's format, returns an Archive owning src. A back-end
	// that does not recognize the content returns (nil, nil): the
	// content is not claimed, and the caller offers it to the next
	// back-end. A non-nil error means the content was claimed but
	// cannot be opened (corrupt, bad password, ...); the caller stops
	// and propagates it.
	OpenArchive(ctx context.Context, src stream.Stream, name string, forWriting bool) (Archive, error)
}

// An Archive is one opened archive. Paths given to its operations are
// sanitized archive-relative virtual paths; back-ends trust them.
// Operations are serialized by the mount machinery's instance lock, so
// implementations need not lock.
type Archive interface {
	// Enumerate invokes cb once per immediate child of the directory
	// at path, passing origdir through as cb's dir argument.
	Enumerate(ctx context.Context, path string, cb EnumerateCallback, origdir string) error

	// OpenRead opens the entry at path for reading.
	OpenRead(ctx context.Context, path string) (stream.Stream, error)

	// OpenWrite creates or truncates the entry at path for writing.
	// Read-only archives fail with kind ReadOnly.
	OpenWrite(ctx context.Context, path string) (stream.Stream, error)

	// OpenAppend opens the entry at path for writing at its end,
	// creating it if necessary. Read-only archives fail with kind
	// ReadOnly.
	OpenAppend(ctx context.Context, path string) (stream.Stream, error)

	// Remove deletes the entry at path.
	Remove(ctx context.Context, path string) error

	// Mkdir creates a single directory at path.
	Mkdir(ctx context.Context, path string) error

	// Stat reports metadata for the entry at path, kind NotFound when
	// absent.
	Stat(ctx context.Context, path string) (Stat, error)

	// Close releases all archive resources, including the source
	// stream handed to OpenArchive.
	Close(ctx context.Context) error
}

var (
	regMu     sync.Mutex
	regCount  int32 // atomic; len of registered, readable without regMu
	registry  []Archiver
	dirBackend = &dirArchiver{}
)

// Register appends a to the back-end registry. Opener resolution
// offers unrecognized content to back-ends in registration order.
// Register should be called from package init functions.
func Register(a Archiver) {
	if a == nil {
		panic("archiver.Register: nil archiver")
	}
	regMu.Lock()
	defer regMu.Unlock()
	registry = append(registry, a)
	atomic.StoreInt32(&regCount, int32(len(registry)))
}

// Count reports the number of registered back-ends.
func Count() int {
	return int(atomic.LoadInt32(&regCount))
}

// Registered returns the registered back-ends in registration order.
func Registered() []Archiver {
	regMu.Lock()
	defer regMu.Unlock()
	out := make([]Archiver, len(registry))
	copy(out, registry)
	return out
}

// SupportedTypes returns the Info of every registered back-end plus
// the built-in directory back-end.
func SupportedTypes() []Info {
	infos := []Info{dirBackend.Info()}
	for _, a := range Registered() {
		infos = append(infos, a.Info())
	}
	return infos
}
