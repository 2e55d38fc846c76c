package fdtable

import "github.com/giantswarm/fdtable/internal/core"

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
// Errors returned by the library add context to them, e.g.
// "bad file descriptor: fd 7", without breaking errors.Is.
const (
	// ErrBadDescriptor is returned when a descriptor is out of range, not
	// open, or being closed concurrently.
	ErrBadDescriptor = core.ErrBadDescriptor

	// ErrTooManyOpen is returned when a process reaches its descriptor limit.
	ErrTooManyOpen = core.ErrTooManyOpen

	// ErrSystemLimit is returned when the system-wide file limit is reached.
	ErrSystemLimit = core.ErrSystemLimit

	// ErrWrongType is returned by GetOfType on a type mismatch.
	ErrWrongType = core.ErrWrongType

	// ErrNotSocket is returned by GetOfType when a socket was requested.
	ErrNotSocket = core.ErrNotSocket

	// ErrInvalidArgument is returned for malformed flags or arguments.
	ErrInvalidArgument = core.ErrInvalidArgument

	// ErrPermission is returned by DupOpen when the requested access mode
	// exceeds the file's.
	ErrPermission = core.ErrPermission

	// ErrNotSupported is returned by file operations a backend lacks.
	ErrNotSupported = core.ErrNotSupported

	// ErrRestart is returned by a blocked file operation aborted by a
	// concurrent close of its descriptor.
	ErrRestart = core.ErrRestart

	// ErrProcessExited is returned by Process methods after Exit.
	ErrProcessExited = core.ErrProcessExited

	// ErrShuttingDown is returned by NewProcess, Fork and Clone once
	// Shutdown has started.
	ErrShuttingDown = core.ErrShuttingDown

	// ErrInvalidConfig is returned by LoadOptions when settings fail
	// validation.
	ErrInvalidConfig = core.ErrInvalidConfig
)
