package core

import "github.com/giantswarm/fdtable/internal/sentinel"

// ErrBadDescriptor is returned when a descriptor is out of range, not open,
// or being closed concurrently.
const ErrBadDescriptor = sentinel.Error("bad file descriptor")

// ErrTooManyOpen is returned when a process reaches its descriptor limit.
const ErrTooManyOpen = sentinel.Error("too many open files")

// ErrSystemLimit is returned when the system-wide file table is full.
const ErrSystemLimit = sentinel.Error("too many open files in system")

// ErrWrongType is returned when a descriptor refers to a file of another type.
const ErrWrongType = sentinel.Error("descriptor refers to a file of the wrong type")

// ErrNotSocket is returned when a socket was required.
const ErrNotSocket = sentinel.Error("descriptor is not a socket")

// ErrInvalidArgument is returned for malformed flags or arguments.
const ErrInvalidArgument = sentinel.Error("invalid argument")

// ErrPermission is returned when a requested access mode exceeds the file's.
const ErrPermission = sentinel.Error("permission denied")

// ErrNotSupported is returned by file operations a backend does not implement.
const ErrNotSupported = sentinel.Error("operation not supported")

// ErrRestart is returned by a blocked file operation aborted by a concurrent
// close of its descriptor.
const ErrRestart = sentinel.Error("operation interrupted by close")

// ErrProcessExited is returned by every Process method after Exit.
const ErrProcessExited = sentinel.Error("process has exited")

// ErrInvalidConfig is returned when loaded settings fail validation.
const ErrInvalidConfig = sentinel.Error("invalid configuration")

// errTableFull signals that the current descriptor array has no free slot
// below the limit but can still grow. It never escapes the package.
const errTableFull = sentinel.Error("descriptor table full")
