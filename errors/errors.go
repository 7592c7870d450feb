// Copyright 2023 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package errors implements the error type used throughout the virtual
// file system. Every failure carries a Kind drawn from a fixed,
// interpretable code set, so that callers can react to the condition
// (retry, surface to the user, fall through to the next mounted
// archive) without parsing message strings. Errors can be chained,
// attributing one error to another, and carry a severity that hints at
// retryability.
//
// Errors are safely serialized with Gob, and thus retain their kind
// across process boundaries.
package errors

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"syscall"

	"github.com/pakfs/pakfs/log"
)

func init() {
	gob.Register(new(Error))
}

// Separator defines the separation string inserted between
// chained errors in error messages.
var Separator = ":\n\t"

// Kind defines the type of error. Kinds are semantically meaningful,
// and form the stable public contract of the library: the set below is
// the complete taxonomy of failures a virtual file system operation
// can report.
type Kind int

const (
	// OK indicates no error. It is never carried by a non-nil Error;
	// it exists so that a cleared per-goroutine error slot has a
	// well-defined value.
	OK Kind = iota
	// Other indicates an unclassified error.
	Other
	// OutOfMemory indicates an allocation failure.
	OutOfMemory
	// NotInitialized indicates use of a drive before Init.
	NotInitialized
	// IsInitialized indicates a second Init of a live drive.
	IsInitialized
	// Argv0IsNull indicates Init was given an empty argv0 and no
	// other way to locate the running binary.
	Argv0IsNull
	// Unsupported indicates an unsupported operation or an archive
	// format no registered back-end recognizes.
	Unsupported
	// PastEOF indicates a read or seek beyond the end of a file.
	PastEOF
	// FilesStillOpen indicates an operation refused because open
	// handles still reference the target.
	FilesStillOpen
	// InvalidArgument indicates the caller supplied invalid parameters.
	InvalidArgument
	// NotMounted indicates the named archive is not in the search path.
	NotMounted
	// NotFound indicates a nonexistent entry.
	NotFound
	// SymlinkForbidden indicates a path crossed a symlink while
	// symlinks are disallowed.
	SymlinkForbidden
	// NoWriteDir indicates a write operation with no write directory set.
	NoWriteDir
	// OpenForReading indicates a write on a handle opened for reading.
	OpenForReading
	// OpenForWriting indicates a read on a handle opened for writing.
	OpenForWriting
	// NotAFile indicates a file operation on a directory or special entry.
	NotAFile
	// ReadOnly indicates a mutation of a read-only archive.
	ReadOnly
	// Corrupt indicates a damaged archive or index.
	Corrupt
	// SymlinkLoop indicates a cycle of symbolic links.
	SymlinkLoop
	// IO indicates a low-level input/output failure.
	IO
	// Permission indicates a permission failure.
	Permission
	// NoSpace indicates the storage is full.
	NoSpace
	// BadFilename indicates a virtual path that failed sanitization.
	BadFilename
	// Busy indicates the resource is in use elsewhere.
	Busy
	// DirNotEmpty indicates removal of a non-empty directory.
	DirNotEmpty
	// OSError indicates an operating system error with no closer mapping.
	OSError
	// Duplicate indicates that a resource already exists.
	Duplicate
	// BadPassword indicates an archive rejected its credentials.
	BadPassword
	// AppCallback indicates an application callback aborted an enumeration.
	AppCallback

	maxKind
)

var kinds = map[Kind]string{
	OK:               "no error",
	Other:            "unknown error",
	OutOfMemory:      "out of memory",
	NotInitialized:   "not initialized",
	IsInitialized:    "already initialized",
	Argv0IsNull:      "argv0 is empty",
	Unsupported:      "operation not supported",
	PastEOF:          "past end of file",
	FilesStillOpen:   "files still open",
	InvalidArgument:  "invalid argument",
	NotMounted:       "not mounted",
	NotFound:         "entry not found",
	SymlinkForbidden: "symlink traversal forbidden",
	NoWriteDir:       "no write directory set",
	OpenForReading:   "file open for reading",
	OpenForWriting:   "file open for writing",
	NotAFile:         "not a file",
	ReadOnly:         "read-only file system",
	Corrupt:          "corrupt archive",
	SymlinkLoop:      "symbolic link loop",
	IO:               "i/o error",
	Permission:       "access denied",
	NoSpace:          "no space left on device",
	BadFilename:      "bad filename",
	Busy:             "resource busy",
	DirNotEmpty:      "directory not empty",
	OSError:          "operating system error",
	Duplicate:        "entry already exists",
	BadPassword:      "bad password",
	AppCallback:      "application callback reported an error",
}

// kindStdErrs maps some Kinds to the standard library's equivalent.
var kindStdErrs = map[Kind]error{
	Unsupported:     errors.ErrUnsupported,
	PastEOF:         io.EOF,
	InvalidArgument: os.ErrInvalid,
	NotFound:        os.ErrNotExist,
	Permission:      os.ErrPermission,
	Duplicate:       os.ErrExist,
}

// String returns a human-readable explanation of the error kind k.
func (k Kind) String() string {
	return kinds[k]
}

var kindErrnos = map[Kind]syscall.Errno{
	OutOfMemory:     syscall.ENOMEM,
	Unsupported:     syscall.ENOTSUP,
	InvalidArgument: syscall.EINVAL,
	NotFound:        syscall.ENOENT,
	NotAFile:        syscall.EISDIR,
	ReadOnly:        syscall.EROFS,
	SymlinkLoop:     syscall.ELOOP,
	IO:              syscall.EIO,
	Permission:      syscall.EACCES,
	NoSpace:         syscall.ENOSPC,
	Busy:            syscall.EBUSY,
	DirNotEmpty:     syscall.ENOTEMPTY,
	Duplicate:       syscall.EEXIST,
}

// Errno maps k to an equivalent Errno or returns false if there's no good match.
func (k Kind) Errno() (syscall.Errno, bool) {
	errno, ok := kindErrnos[k]
	return errno, ok
}

// Severity defines an Error's severity. An Error's severity determines
// whether an error-producing operation may be retried or not.
type Severity int

const (
	// Retriable indicates that the failing operation can be safely retried,
	// regardless of application context.
	Retriable Severity = -2
	// Temporary indicates that the underlying error condition is likely
	// temporary, and can possibly be retried. However, such errors
	// should be retried in an application specific context.
	Temporary Severity = -1
	// Unknown indicates the error's severity is unknown. This is the default
	// severity level.
	Unknown Severity = 0
	// Fatal indicates that the underlying error condition is unrecoverable;
	// retrying is unlikely to help.
	Fatal Severity = 1
)

var severities = map[Severity]string{
	Retriable: "retriable",
	Temporary: "temporary",
	Unknown:   "unknown",
	Fatal:     "fatal",
}

// String returns a human-readable explanation of the error severity s.
func (s Severity) String() string {
	return severities[s]
}

// Error is the standard error type, carrying a kind (error code),
// message (error message), and potentially an underlying error.
// Errors should be constructed by errors.E, which interprets
// arguments according to a set of rules.
//
// Errors may be serialized and deserialized with gob. When this is
// done, underlying errors do not survive in full fidelity: they are
// converted to their error strings and returned as opaque errors.
type Error struct {
	// Kind is the error's type.
	Kind Kind
	// Severity is an optional severity.
	Severity Severity
	// Message is an optional error message associated with this error.
	Message string
	// Err is the error that caused this error, if any.
	// Errors can form chains through Err: the full chain is printed
	// by Error().
	Err error
}

// E constructs a new error from the provided arguments. It is meant
// as a convenient way to construct, annotate, and wrap errors.
//
// Arguments are interpreted according to their types:
//
//   - Kind: sets the Error's kind
//   - Severity: sets the Error's severity
//   - string: sets the Error's message; multiple strings are
//     separated by a single space
//   - *Error: copies the error and sets the error's cause
//   - error: sets the Error's cause
//
// If an unrecognized argument type is encountered, an error with
// kind InvalidArgument is returned.
//
// If a kind is not provided, but an underlying error is, E attempts to
// interpret the underlying error according to a set of conventions:
// standard library sentinels (os.ErrNotExist, io.EOF, ...) map to
// their Kind, and errors implementing interface { Temporary() bool }
// raise the severity to at least Temporary. If the underlying error is
// another *Error, the returned error inherits that error's kind.
//
// An error that cannot be classified gets kind Other.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("no args")
	}
	e := new(Error)
	var msg strings.Builder
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case Severity:
			e.Severity = arg
		case string:
			if msg.Len() > 0 {
				msg.WriteString(" ")
			}
			msg.WriteString(arg)
		case *Error:
			copy := *arg
			if len(args) == 1 {
				// In this case, we're not adding anything new;
				// just return the copy.
				return &copy
			}
			e.Err = &copy
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Error.Printf("errors.E: bad call (type %T) from %s:%d: %v", arg, file, line, arg)
			return &Error{
				Kind:    InvalidArgument,
				Message: fmt.Sprintf("unknown type %T, value %v in error call", arg, arg),
			}
		}
	}
	e.Message = msg.String()
	if e.Err == nil {
		if e.Kind == OK {
			e.Kind = Other
		}
		return e
	}
	switch prev := e.Err.(type) {
	case *Error:
		if prev.Kind == e.Kind || e.Kind == OK || e.Kind == Other {
			if prev.Kind != OK && prev.Kind != Other {
				e.Kind = prev.Kind
				prev.Kind = Other
			}
		}
		if prev.Severity == e.Severity || e.Severity == Unknown {
			e.Severity = prev.Severity
			prev.Severity = Unknown
		}
	default:
		// Classify common error types.
		if err, ok := e.Err.(interface {
			Temporary() bool
		}); ok && err.Temporary() && e.Severity == Unknown {
			e.Severity = Temporary
		}
		if e.Kind == OK || e.Kind == Other {
			// Note: Loop over kind instead of kindStdErrs for determinism.
			for kind := Kind(0); kind < maxKind; kind++ {
				stdErr := kindStdErrs[kind]
				if stdErr != nil && errors.Is(e.Err, stdErr) {
					e.Kind = kind
					break
				}
			}
		}
	}
	if e.Kind == OK {
		e.Kind = Other
	}
	return e
}

// Recover recovers any error into an *Error. If the passed-in error is already
// an *Error, it is simply returned; otherwise it is wrapped in one.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if err, ok := err.(*Error); ok {
		return err
	}
	return E(err).(*Error)
}

// Error returns a human readable string describing this error.
// It uses the separator defined by errors.Separator.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b bytes.Buffer
	e.writeError(&b)
	return b.String()
}

func (e *Error) writeError(b *bytes.Buffer) {
	if e.Message != "" {
		pad(b, ": ")
		b.WriteString(e.Message)
	}
	if e.Kind != Other && e.Kind != OK {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Severity != Unknown {
		pad(b, " ")
		b.WriteByte('(')
		b.WriteString(e.Severity.String())
		b.WriteByte(')')
	}

	if e.Err == nil {
		return
	}
	if err, ok := e.Err.(*Error); ok {
		pad(b, Separator)
		b.WriteString(err.Error())
	} else {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
}

// Temporary tells whether this error is temporary.
func (e *Error) Temporary() bool {
	return e.Severity <= Temporary
}

// Unwrap returns e's cause, if any, or nil. It lets the standard library's
// errors.Unwrap work with *Error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is tells whether e.Kind is equivalent to err.
//
// This implements interoperability with the standard library's errors.Is:
//
//	errors.Is(e, os.ErrNotExist)
//
// works if e.Kind corresponds (in this example, NotFound). This is useful
// when passing *Error to third-party libraries. Users should still prefer
// this package's Is for their own tests because it's less prone to error
// (type checking disallows accidentally swapped arguments).
//
// Note: This match does not recurse into err's cause, if any; see the standard
// library's errors.Is for how this is used.
func (e *Error) Is(err error) bool {
	if err == nil {
		return false
	}
	return err == kindStdErrs[e.Kind]
}

type gobError struct {
	Kind     Kind
	Severity Severity
	Message  string
	Next     *gobError
	Err      string
}

func (ge *gobError) toError() *Error {
	e := &Error{
		Kind:     ge.Kind,
		Severity: ge.Severity,
		Message:  ge.Message,
	}
	if ge.Next != nil {
		e.Err = ge.Next.toError()
	} else if ge.Err != "" {
		e.Err = errors.New(ge.Err)
	}
	return e
}

func (e *Error) toGobError() *gobError {
	ge := &gobError{
		Kind:     e.Kind,
		Severity: e.Severity,
		Message:  e.Message,
	}
	if e.Err == nil {
		return ge
	}
	switch arg := e.Err.(type) {
	case *Error:
		ge.Next = arg.toGobError()
	default:
		ge.Err = arg.Error()
	}
	return ge
}

// GobEncode encodes the error for gob. Since underlying errors may
// be interfaces unknown to gob, Error's gob encoding replaces these
// with error strings.
func (e *Error) GobEncode() ([]byte, error) {
	var b bytes.Buffer
	err := gob.NewEncoder(&b).Encode(e.toGobError())
	return b.Bytes(), err
}

// GobDecode decodes an error encoded by GobEncode.
func (e *Error) GobDecode(p []byte) error {
	var ge gobError
	if err := gob.NewDecoder(bytes.NewBuffer(p)).Decode(&ge); err != nil {
		return err
	}
	*e = *ge.toError()
	return nil
}

// Is tells whether an error has a specified kind, except for the
// indeterminate kind Other. In the case an error has kind Other, the
// chain is traversed until a non-Other error is encountered.
//
// A nil error has kind OK and nothing else.
func Is(kind Kind, err error) bool {
	if err == nil {
		return kind == OK
	}
	return is(kind, Recover(err))
}

func is(kind Kind, e *Error) bool {
	if e.Kind != Other {
		return e.Kind == kind
	}
	if e.Err != nil {
		if e2, ok := e.Err.(*Error); ok {
			return is(kind, e2)
		}
	}
	return kind == Other
}

// IsTemporary tells whether the provided error is likely temporary.
func IsTemporary(err error) bool {
	return Recover(err).Temporary()
}

// Match tells whether every nonempty field in err1
// matches the corresponding fields in err2. The comparison
// recurses on chained errors. Match is designed to aid in
// testing errors.
func Match(err1, err2 error) bool {
	var (
		e1 = Recover(err1)
		e2 = Recover(err2)
	)
	if e1.Kind != Other && e1.Kind != e2.Kind {
		return false
	}
	if e1.Severity != Unknown && e1.Severity != e2.Severity {
		return false
	}
	if e1.Message != "" && e1.Message != e2.Message {
		return false
	}
	if e1.Err != nil {
		if e2.Err == nil {
			return false
		}
		switch e1.Err.(type) {
		case *Error:
			return Match(e1.Err, e2.Err)
		default:
			return e1.Err.Error() == e2.Err.Error()
		}
	}
	return true
}

// Visit calls the given function for every error object in the chain, including
// itself.  Recursion stops after the function finds an error object of type
// other than *Error.
func Visit(err error, callback func(err error)) {
	callback(err)
	for {
		next, ok := err.(*Error)
		if !ok {
			break
		}
		err = next.Err
		callback(err)
	}
}

// New is synonymous with errors.New, and is provided here so that
// users need only import one errors package.
func New(msg string) error {
	return errors.New(msg)
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}
