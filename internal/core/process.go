package core

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/giantswarm/fdtable/internal/metrics"
)

// dup2RetryInterval is how long Dup2 sleeps when its target descriptor is
// allocated but not yet affixed by a concurrent open.
const dup2RetryInterval = time.Millisecond

// Process is the descriptor-table view of one process: its credential,
// descriptor limit and current table. Several processes may share a table
// (see Clone).
//
// A Process may be used from many goroutines at once, with two exceptions
// that mirror the kernel's single-threaded exec and exit: Exec and Exit must
// not run concurrently with other operations on the same Process.
type Process struct {
	sys  *System
	pid  int
	cred Cred

	limit   atomic.Int64
	advlock atomic.Bool
	table   atomic.Pointer[Table]
	exited  atomic.Bool
}

// PID returns the process identifier assigned by the System.
func (p *Process) PID() int { return p.pid }

// Cred returns the process credential.
func (p *Process) Cred() Cred { return p.cred }

// Limit returns the soft descriptor limit.
func (p *Process) Limit() int { return int(p.limit.Load()) }

// Table returns the process's current descriptor table.
func (p *Process) Table() *Table { return p.table.Load() }

// SetLimit changes the soft descriptor limit. Descriptors already open above
// the new limit stay open.
func (p *Process) SetLimit(n int) error {
	if err := p.alive(); err != nil {
		return err
	}
	if n <= 0 {
		return ErrInvalidArgument.With("descriptor limit must be greater than 0, got %d", n)
	}
	p.limit.Store(int64(n))
	return nil
}

func (p *Process) alive() error {
	if p.exited.Load() {
		return ErrProcessExited.With("pid %d", p.pid)
	}
	return nil
}

// effectiveLimit is the soft limit capped by the system-wide limit.
func (p *Process) effectiveLimit() int {
	return min(p.Limit(), p.sys.cfg.MaxFiles)
}

// Alloc reserves the lowest free descriptor at or above minfd, growing the
// table as needed. The descriptor is allocated but not open until Affix.
func (p *Process) Alloc(minfd int) (int, error) {
	if err := p.alive(); err != nil {
		return -1, err
	}
	if minfd < 0 {
		return -1, ErrInvalidArgument.With("negative descriptor %d", minfd)
	}
	return p.alloc(p.Table(), minfd)
}

func (p *Process) alloc(t *Table, minfd int) (int, error) {
	limit := p.effectiveLimit()
	for {
		fd, err := t.alloc(minfd, limit)
		if err == nil {
			p.sys.metrics.DescriptorAllocated()
			return fd, nil
		}
		if !errors.Is(err, errTableFull) {
			p.sys.metrics.LimitHit(metrics.LimitProcess)
			return -1, err
		}
		t.grow()
	}
}

// AllocFile reserves a descriptor and creates a registered File for it.
// Both must be completed with Affix or undone with Abort.
func (p *Process) AllocFile(ops FileOps, typ FileType, flags FileFlags) (int, *File, error) {
	fd, err := p.Alloc(0)
	if err != nil {
		return -1, nil, err
	}
	f, err := p.sys.NewFile(ops, typ, flags, p.cred)
	if err != nil {
		p.Table().abort(fd, nil)
		return -1, nil, err
	}
	return fd, f, nil
}

// Affix publishes f at the allocated descriptor fd.
func (p *Process) Affix(fd int, f *File) {
	p.Table().affix(fd, f)
}

// Abort frees a descriptor reserved by Alloc or AllocFile. f may be nil.
func (p *Process) Abort(fd int, f *File) {
	p.Table().abort(fd, f)
}

// Open allocates a descriptor and a File and affixes them in one step.
func (p *Process) Open(ops FileOps, typ FileType, flags FileFlags, dflags DescriptorFlags) (int, *File, error) {
	if dflags&^dup2Flags != 0 {
		return -1, nil, ErrInvalidArgument.With("descriptor flags %#x", uint32(dflags))
	}
	fd, f, err := p.AllocFile(ops, typ, flags|dflags.fileFlags())
	if err != nil {
		return -1, nil, err
	}
	t := p.Table()
	s := t.slotAt(fd)
	t.setExclose(s, dflags&CloseOnExec != 0)
	t.setFoclose(s, dflags&CloseOnFork != 0)
	t.affix(fd, f)
	return fd, f, nil
}

// Get returns the File open at fd and holds a descriptor reference until
// Put. A concurrent Close of fd waits for the reference to be dropped.
func (p *Process) Get(fd int) (*File, error) {
	if err := p.alive(); err != nil {
		return nil, err
	}
	f, _, err := p.Table().get(fd)
	return f, err
}

// GetOfType is Get restricted to one file type. A socket lookup that finds
// another type fails with ErrNotSocket; every other mismatch fails with
// ErrWrongType.
func (p *Process) GetOfType(fd int, typ FileType) (*File, error) {
	f, err := p.Get(fd)
	if err != nil {
		return nil, err
	}
	if f.typ != typ {
		p.Put(fd)
		if typ == TypeSocket {
			return nil, ErrNotSocket.With("fd %d is a %s", fd, f.typ)
		}
		return nil, ErrWrongType.With("fd %d is a %s, want %s", fd, f.typ, typ)
	}
	return f, nil
}

// Put drops the descriptor reference taken by Get.
//
// Panics if fd holds no reference.
func (p *Process) Put(fd int) {
	t := p.Table()
	s := t.slotAt(fd)
	if s == nil {
		panic(fmt.Sprintf("fdtable: put of unknown descriptor %d", fd))
	}
	t.put(fd, s)
}

// FileRef returns the File open at fd with an object reference instead of a
// descriptor reference, for inspecting another process's descriptors.
// Release it with File.Release.
func (p *Process) FileRef(fd int) (*File, error) {
	t := p.Table()
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.slotAt(fd)
	if s == nil {
		return nil, ErrBadDescriptor.With("fd %d", fd)
	}
	f := s.file.Load()
	if f == nil {
		return nil, ErrBadDescriptor.With("fd %d", fd)
	}
	f.Hold()
	return f, nil
}

// Close closes fd. If other goroutines are using fd, their blocked operations
// are restarted and Close waits for them to finish. The backend's close
// error, if this was the last reference to the File, is returned.
func (p *Process) Close(fd int) error {
	if err := p.alive(); err != nil {
		return err
	}
	t := p.Table()
	_, s, err := t.get(fd)
	if err != nil {
		return err
	}
	return t.closeDescriptor(p, fd, s)
}

// Dup duplicates fd onto the lowest free descriptor. The copy inherits the
// source's close-on-exec and close-on-fork flags.
func (p *Process) Dup(fd int) (int, error) {
	if err := p.alive(); err != nil {
		return -1, err
	}
	t := p.Table()
	f, s, err := t.get(fd)
	if err != nil {
		return -1, err
	}
	defer t.put(fd, s)

	return p.dupTo(t, f, 0, s.exclose.Load(), s.foclose.Load())
}

// DupMin duplicates fd onto the lowest free descriptor at or above minfd
// with the given flags (F_DUPFD and F_DUPFD_CLOEXEC).
func (p *Process) DupMin(fd, minfd int, flags DescriptorFlags) (int, error) {
	if err := p.alive(); err != nil {
		return -1, err
	}
	if flags&^dup2Flags != 0 {
		return -1, ErrInvalidArgument.With("descriptor flags %#x", uint32(flags))
	}
	if minfd < 0 || minfd >= p.effectiveLimit() {
		return -1, ErrInvalidArgument.With("minimum descriptor %d out of range", minfd)
	}
	t := p.Table()
	f, s, err := t.get(fd)
	if err != nil {
		return -1, err
	}
	defer t.put(fd, s)

	nfd, err := p.dupTo(t, f, minfd, flags&CloseOnExec != 0, flags&CloseOnFork != 0)
	if err != nil {
		return -1, err
	}
	f.SetFlags(flags.fileFlags())
	return nfd, nil
}

func (p *Process) dupTo(t *Table, f *File, minfd int, exclose, foclose bool) (int, error) {
	nfd, err := p.alloc(t, minfd)
	if err != nil {
		return -1, err
	}
	ns := t.slotAt(nfd)
	t.setExclose(ns, exclose)
	t.setFoclose(ns, foclose)
	t.affix(nfd, f)
	return nfd, nil
}

// Dup2 makes target refer to the same File as fd, closing whatever target
// referred to before. flags may carry CloseOnExec, CloseOnFork, NonBlock
// and NoSigPipe. When fd equals target only the flags are applied.
func (p *Process) Dup2(fd, target int, flags DescriptorFlags) error {
	if err := p.alive(); err != nil {
		return err
	}
	if flags&^dup2Flags != 0 {
		return ErrInvalidArgument.With("descriptor flags %#x", uint32(flags))
	}
	t := p.Table()
	f, s, err := t.get(fd)
	if err != nil {
		return err
	}
	defer t.put(fd, s)

	if target < 0 || target >= p.effectiveLimit() {
		return ErrBadDescriptor.With("target fd %d out of range", target)
	}

	if target == fd {
		t.setExclose(s, flags&CloseOnExec != 0)
		t.setFoclose(s, flags&CloseOnFork != 0)
		f.SetFlags(flags.fileFlags())
		return nil
	}

	for target >= t.Capacity() {
		t.grow()
	}

	t.mu.Lock()
	for t.bits.IsSet(target) {
		t.mu.Unlock()
		if _, ts, err := t.get(target); err == nil {
			_ = t.closeDescriptor(p, target, ts)
		} else {
			// half open by a concurrent allocation
			time.Sleep(dup2RetryInterval)
		}
		t.mu.Lock()
	}
	d := t.dt.Load()
	ts := d.slots[target].Load()
	if ts == nil {
		ts = newSlot(&t.mu)
		d.slots[target].Store(ts)
	}
	t.used(target, ts)
	t.mu.Unlock()
	p.sys.metrics.DescriptorAllocated()

	t.setExclose(ts, flags&CloseOnExec != 0)
	t.setFoclose(ts, flags&CloseOnFork != 0)
	f.SetFlags(flags.fileFlags())
	t.affix(target, f)
	return nil
}

// DupOpen serves an open of an existing descriptor, as /dev/fd/N does. With
// move unset it duplicates fd onto the lowest free descriptor, provided
// mode's read and write bits are a subset of the File's. With move set the
// File is moved: the duplicate is made and fd is closed.
func (p *Process) DupOpen(fd int, move bool, mode FileFlags) (int, error) {
	if err := p.alive(); err != nil {
		return -1, err
	}
	t := p.Table()
	f, s, err := t.get(fd)
	if err != nil {
		return -1, err
	}

	if !move && (mode&accessMode)|f.Flags() != f.Flags() {
		t.put(fd, s)
		return -1, ErrPermission.With("fd %d not open for requested mode", fd)
	}

	nfd, err := p.dupTo(t, f, 0, s.exclose.Load(), s.foclose.Load())
	if err != nil || !move {
		t.put(fd, s)
		return nfd, err
	}

	_ = t.closeDescriptor(p, fd, s)
	return nfd, nil
}

// SetCloseOnExec sets or clears close-on-exec on fd.
func (p *Process) SetCloseOnExec(fd int, on bool) error {
	return p.withSlot(fd, func(t *Table, s *slot) { t.setExclose(s, on) })
}

// SetCloseOnFork sets or clears close-on-fork on fd.
func (p *Process) SetCloseOnFork(fd int, on bool) error {
	return p.withSlot(fd, func(t *Table, s *slot) { t.setFoclose(s, on) })
}

// CloseOnExec reports whether fd is close-on-exec.
func (p *Process) CloseOnExec(fd int) (bool, error) {
	var on bool
	err := p.withSlot(fd, func(_ *Table, s *slot) { on = s.exclose.Load() })
	return on, err
}

// CloseOnFork reports whether fd is close-on-fork.
func (p *Process) CloseOnFork(fd int) (bool, error) {
	var on bool
	err := p.withSlot(fd, func(_ *Table, s *slot) { on = s.foclose.Load() })
	return on, err
}

func (p *Process) withSlot(fd int, fn func(*Table, *slot)) error {
	if err := p.alive(); err != nil {
		return err
	}
	t := p.Table()
	_, s, err := t.get(fd)
	if err != nil {
		return err
	}
	fn(t, s)
	t.put(fd, s)
	return nil
}

// AdvLock applies a POSIX record lock owned by the process to the file at
// fd. Once a process has used POSIX locks, every close of a lockable file
// releases the process's locks on it.
func (p *Process) AdvLock(fd int, op LockOp) error {
	if err := p.alive(); err != nil {
		return err
	}
	t := p.Table()
	f, s, err := t.get(fd)
	if err != nil {
		return err
	}
	defer t.put(fd, s)

	locker, ok := f.ops.(AdvisoryLocker)
	if !ok {
		return ErrNotSupported.With("%s file has no advisory locks", f.typ)
	}
	p.advlock.Store(true)
	return locker.AdvLock(f, p, op, LockPOSIX)
}

// Fork creates a child process with a private copy of the descriptor table.
// The child inherits the credential and the current limit.
func (p *Process) Fork() (*Process, error) {
	if err := p.alive(); err != nil {
		return nil, err
	}
	nt := p.Table().copyTable()
	child, err := p.sys.register(p.cred, p.Limit(), nt)
	if err != nil {
		_ = nt.release(nil)
		return nil, err
	}
	return child, nil
}

// Clone creates a child process that shares the descriptor table.
func (p *Process) Clone() (*Process, error) {
	if err := p.alive(); err != nil {
		return nil, err
	}
	t := p.Table()
	t.refs.Add(1)
	child, err := p.sys.register(p.cred, p.Limit(), t)
	if err != nil {
		_ = t.release(nil)
		return nil, err
	}
	return child, nil
}

// Exec performs the descriptor side of exec: a shared table is replaced by a
// private copy, close-on-exec descriptors are closed and close-on-fork flags
// are cleared.
func (p *Process) Exec() error {
	if err := p.alive(); err != nil {
		return err
	}

	t := p.Table()
	if t.refs.Load() > 1 {
		nt := t.copyTable()
		p.table.Store(nt)
		Logger().Debug("exec unshared descriptor table", "pid", p.pid)
		if err := t.release(p); err != nil {
			Logger().Warn("close errors releasing shared table", "pid", p.pid, "error", err)
		}
		t = nt
	}

	if !t.exclose.Load() && !t.foclose.Load() {
		return nil
	}
	t.exclose.Store(false)
	t.foclose.Store(false)

	var errs []error
	for fd := 0; fd <= t.lastFile(); fd++ {
		s := t.slotAt(fd)
		if s == nil || s.file.Load() == nil {
			continue
		}
		switch {
		case s.exclose.Load():
			s.refs.Add(1)
			if err := t.closeDescriptor(p, fd, s); err != nil && !errors.Is(err, ErrBadDescriptor) {
				errs = append(errs, fmt.Errorf("close fd %d: %w", fd, err))
			}
		case s.foclose.Load():
			s.foclose.Store(false)
		}
	}
	return errors.Join(errs...)
}

// Exit releases the process's descriptor table and unregisters the process.
// The last process of a table group closes every descriptor. Close errors
// are logged and returned; the process is gone either way.
func (p *Process) Exit() error {
	if !p.exited.CompareAndSwap(false, true) {
		return ErrProcessExited.With("pid %d", p.pid)
	}

	err := p.Table().release(p)
	if err != nil {
		Logger().Warn("close errors during process exit", "pid", p.pid, "error", err)
	}
	p.sys.unregister(p)
	return err
}
