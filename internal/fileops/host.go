package fileops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"github.com/giantswarm/fdtable/internal/core"
)

// lockRetryInterval is how often a blocking advisory lock is retried while
// another holder keeps it.
const lockRetryInterval = 10 * time.Millisecond

// Host is a file backend over a host *os.File. Reads and writes are
// positional, so the File offset is the only offset that matters.
//
// Advisory locks are taken on the file's path through gofrs/flock, one lock
// handle per Host. Locks of either kind share that handle.
type Host struct {
	file *os.File
	lock *flock.Flock

	// mu guards ctx and cancel. Restart cancels ctx to abort blocking lock
	// attempts.
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

var (
	_ core.FileOps        = (*Host)(nil)
	_ core.AdvisoryLocker = (*Host)(nil)
)

// NewHost wraps f. The Host owns f and closes it when the File is torn down.
func NewHost(f *os.File) *Host {
	h := &Host{file: f, lock: flock.New(f.Name())}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

// OpenHost opens path with os.OpenFile and wraps it. The returned FileFlags
// describe the access mode of flag.
func OpenHost(path string, flag int, perm os.FileMode) (*Host, core.FileFlags, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, 0, fmt.Errorf("open host file: %w", err)
	}

	var ff core.FileFlags
	switch flag & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR) {
	case os.O_RDONLY:
		ff = core.FlagRead
	case os.O_WRONLY:
		ff = core.FlagWrite
	case os.O_RDWR:
		ff = core.FlagRead | core.FlagWrite
	}
	if flag&os.O_APPEND != 0 {
		ff |= core.FlagAppend
	}
	return NewHost(f), ff, nil
}

// Name returns the path the host file was opened with.
func (h *Host) Name() string { return h.file.Name() }

func (h *Host) fd() int { return int(h.file.Fd()) }

// Read reads at *off. A read at or past the end returns io.EOF.
func (h *Host) Read(_ *core.File, off *int64, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Pread(h.fd(), p, *off)
	if err != nil {
		return 0, fmt.Errorf("pread %s: %w", h.Name(), err)
	}
	*off += int64(n)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write writes at *off, or at the current end of file when the File was
// opened for appending.
func (h *Host) Write(f *core.File, off *int64, p []byte) (int, error) {
	if f.Flags()&core.FlagAppend != 0 {
		size, err := h.size()
		if err != nil {
			return 0, err
		}
		*off = size
	}
	n, err := unix.Pwrite(h.fd(), p, *off)
	if n > 0 {
		*off += int64(n)
	}
	if err != nil {
		return n, fmt.Errorf("pwrite %s: %w", h.Name(), err)
	}
	return n, nil
}

func (h *Host) size() (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(h.fd(), &st); err != nil {
		return 0, fmt.Errorf("fstat %s: %w", h.Name(), err)
	}
	return st.Size, nil
}

// Ioctl supports core.IoctlNRead, reporting the bytes between the File
// offset and the end of file.
func (h *Host) Ioctl(f *core.File, cmd uint, arg any) error {
	if cmd != core.IoctlNRead {
		return core.ErrNotSupported.With("host file ioctl %#x", cmd)
	}
	n, ok := arg.(*int)
	if !ok {
		return core.ErrInvalidArgument.With("IoctlNRead wants *int, got %T", arg)
	}
	size, err := h.size()
	if err != nil {
		return err
	}
	*n = int(max(size-f.Offset(), 0))
	return nil
}

// Poll reports regular files as always ready.
func (h *Host) Poll(_ *core.File, events core.PollEvents) core.PollEvents {
	return events & (core.PollIn | core.PollOut)
}

// Stat returns the host file's metadata.
func (h *Host) Stat(*core.File) (core.Stat, error) {
	var st unix.Stat_t
	if err := unix.Fstat(h.fd(), &st); err != nil {
		return core.Stat{}, fmt.Errorf("fstat %s: %w", h.Name(), err)
	}
	return core.Stat{
		Size: st.Size,
		Mode: uint32(st.Mode),
		Dev:  uint64(st.Dev), //nolint:unconvert // Dev is narrower on some platforms.
		Ino:  uint64(st.Ino), //nolint:unconvert // Ino is narrower on some platforms.
	}, nil
}

// Restart aborts blocking lock attempts with core.ErrRestart.
func (h *Host) Restart(*core.File) {
	h.mu.Lock()
	h.cancel()
	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.mu.Unlock()
}

func (h *Host) lockContext() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ctx
}

// AdvLock applies an advisory lock on the host path. A blocking request
// waits until the lock is free or the File is restarted. A LockNoWait
// request that cannot be granted fails with EWOULDBLOCK.
func (h *Host) AdvLock(_ *core.File, _ any, op core.LockOp, _ core.LockKind) error {
	if op&core.LockUnlock != 0 {
		if err := h.lock.Unlock(); err != nil {
			return fmt.Errorf("unlock %s: %w", h.Name(), err)
		}
		return nil
	}

	shared := op&core.LockShared != 0
	if shared == (op&core.LockExclusive != 0) {
		return core.ErrInvalidArgument.With("lock op %#x", uint8(op))
	}

	var (
		ok  bool
		err error
	)
	switch {
	case op&core.LockNoWait != 0 && shared:
		ok, err = h.lock.TryRLock()
	case op&core.LockNoWait != 0:
		ok, err = h.lock.TryLock()
	case shared:
		ok, err = h.lock.TryRLockContext(h.lockContext(), lockRetryInterval)
	default:
		ok, err = h.lock.TryLockContext(h.lockContext(), lockRetryInterval)
	}
	if errors.Is(err, context.Canceled) {
		return core.ErrRestart
	}
	if err != nil {
		return fmt.Errorf("lock %s: %w", h.Name(), err)
	}
	if !ok {
		return unix.EWOULDBLOCK
	}
	return nil
}

// Close releases any advisory lock and closes the host file.
func (h *Host) Close(*core.File) error {
	h.mu.Lock()
	h.cancel()
	h.mu.Unlock()

	var errs []error
	if err := h.lock.Close(); err != nil {
		core.Logger().Debug("failed to close host file lock", "path", h.Name(), "error", err)
		errs = append(errs, fmt.Errorf("close lock %s: %w", h.Name(), err))
	}
	if err := h.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", h.Name(), err))
	}
	return errors.Join(errs...)
}
