package fdtable

import (
	"errors"

	"golang.org/x/sys/unix"
)

// errnos maps each sentinel to the errno a system call would return.
var errnos = []struct {
	err   error
	errno unix.Errno
}{
	{ErrBadDescriptor, unix.EBADF},
	{ErrTooManyOpen, unix.EMFILE},
	{ErrSystemLimit, unix.ENFILE},
	{ErrInvalidArgument, unix.EINVAL},
	{ErrWrongType, unix.EINVAL},
	{ErrNotSocket, unix.ENOTSOCK},
	{ErrPermission, unix.EACCES},
	{ErrNotSupported, unix.EOPNOTSUPP},
	{ErrRestart, unix.EINTR},
	{ErrProcessExited, unix.ESRCH},
	{ErrShuttingDown, unix.ESHUTDOWN},
	{ErrInvalidConfig, unix.EINVAL},
}

// Errno returns the errno for err. Errors that already wrap a unix.Errno,
// such as EAGAIN from a non-blocking pipe, keep it. A nil error maps to 0
// and anything unrecognized to EIO.
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}
	for _, e := range errnos {
		if errors.Is(err, e.err) {
			return e.errno
		}
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return unix.EIO
}
