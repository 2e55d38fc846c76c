package fdtable

import (
	"errors"
	"fmt"
	"os"

	"github.com/giantswarm/fdtable/internal/fileops"
)

// DefaultPipeCapacity is the pipe buffer size NewPipe uses for a
// non-positive capacity.
const DefaultPipeCapacity = fileops.DefaultPipeCapacity

// NewPipe returns the read and write ends of an in-memory pipe. Reads block
// until data arrives or the write end is closed; writes block while the
// buffer is full. Closing a descriptor restarts operations blocked on it.
//
//nolint:ireturn // Backends are consumed through the FileOps interface.
func NewPipe(capacity int) (r, w FileOps) {
	re, we := fileops.NewPipe(capacity)
	return re, we
}

// OpenHost opens a host file with os.OpenFile and returns a backend for it
// together with the status flags matching flag. Advisory locks on the
// backend are whole-file flock(2) locks on path.
//
//nolint:ireturn // Backends are consumed through the FileOps interface.
func OpenHost(path string, flag int, perm os.FileMode) (FileOps, FileFlags, error) {
	h, flags, err := fileops.OpenHost(path, flag, perm)
	if err != nil {
		return nil, 0, err
	}
	return h, flags, nil
}

// Pipe opens a pipe in p as pipe(2) does and returns the read and write
// descriptors. dflags applies to both. On failure neither descriptor is
// left open.
func Pipe(p Process, dflags DescriptorFlags) (r, w int, err error) {
	re, we := NewPipe(0)

	r, _, err = p.Open(re, TypePipe, FlagRead, dflags)
	if err != nil {
		return -1, -1, fmt.Errorf("open pipe read end: %w", err)
	}
	w, _, err = p.Open(we, TypePipe, FlagWrite, dflags)
	if err != nil {
		if cerr := p.Close(r); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return -1, -1, fmt.Errorf("open pipe write end: %w", err)
	}
	return r, w, nil
}
