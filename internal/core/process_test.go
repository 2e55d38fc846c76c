package core

import (
	"errors"
	"slices"
	"testing"
)

func TestOpenGetPutClose(t *testing.T) {
	t.Parallel()
	sys := newTestSystem(t)
	p := newTestProcess(t, sys)

	fd, f, ops := openFake(t, p, TypeVnode, 0)
	if f.Refs() != 1 {
		t.Fatalf("Refs() after open = %d, want 1", f.Refs())
	}

	got, err := p.Get(fd)
	if err != nil {
		t.Fatalf("Get(): %v", err)
	}
	if got != f {
		t.Fatal("Get() returned a different file")
	}
	p.Put(fd)

	if err := p.Close(fd); err != nil {
		t.Fatalf("Close(): %v", err)
	}
	if ops.closeCount() != 1 {
		t.Errorf("backend closed %d times, want 1", ops.closeCount())
	}
	if sys.NumFiles() != 0 {
		t.Errorf("NumFiles() = %d, want 0", sys.NumFiles())
	}

	if _, err := p.Get(fd); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("Get() after close error = %v, want ErrBadDescriptor", err)
	}
	if err := p.Close(fd); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("second Close() error = %v, want ErrBadDescriptor", err)
	}
}

func TestGetRejectsBadDescriptors(t *testing.T) {
	t.Parallel()
	p := newTestProcess(t, newTestSystem(t))
	openFake(t, p, TypeVnode, 0)

	for _, fd := range []int{-1, 1, 5, BuiltinCapacity, 1 << 20} {
		if _, err := p.Get(fd); !errors.Is(err, ErrBadDescriptor) {
			t.Errorf("Get(%d) error = %v, want ErrBadDescriptor", fd, err)
		}
	}
}

func TestGetHalfOpenDescriptor(t *testing.T) {
	t.Parallel()
	p := newTestProcess(t, newTestSystem(t))

	fd, f, err := p.AllocFile(newFakeOps(), TypePipe, FlagRead)
	if err != nil {
		t.Fatalf("AllocFile(): %v", err)
	}
	if _, err := p.Get(fd); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("Get() of half-open fd error = %v, want ErrBadDescriptor", err)
	}
	if next, _, _ := openFake(t, p, TypeVnode, 0); next == fd {
		t.Errorf("Open() reused half-open fd %d", fd)
	}

	p.Affix(fd, f)
	if _, err := p.Get(fd); err != nil {
		t.Errorf("Get() after Affix: %v", err)
	}
	p.Put(fd)
}

func TestAbortReleasesReservation(t *testing.T) {
	t.Parallel()
	sys := newTestSystem(t)
	p := newTestProcess(t, sys)

	ops := newFakeOps()
	fd, f, err := p.AllocFile(ops, TypeVnode, FlagRead)
	if err != nil {
		t.Fatalf("AllocFile(): %v", err)
	}
	if sys.NumFiles() != 1 {
		t.Fatalf("NumFiles() = %d, want 1", sys.NumFiles())
	}

	p.Abort(fd, f)
	if sys.NumFiles() != 0 {
		t.Errorf("NumFiles() after Abort = %d, want 0", sys.NumFiles())
	}
	if ops.closeCount() != 0 {
		t.Errorf("Abort closed the backend %d times, want 0", ops.closeCount())
	}
	if next, _ := p.Alloc(0); next != fd {
		t.Errorf("Alloc() after Abort = %d, want %d", next, fd)
	}
}

func TestAffixPanics(t *testing.T) {
	t.Parallel()
	p := newTestProcess(t, newTestSystem(t))
	fd, f, _ := openFake(t, p, TypeVnode, 0)

	requirePanicContains(t, func() { p.Affix(fd, f) }, "affix into open descriptor")
	requirePanicContains(t, func() { p.Affix(fd+1, f) }, "affix into unallocated descriptor")
}

func TestPutPanicsWithoutReference(t *testing.T) {
	t.Parallel()
	p := newTestProcess(t, newTestSystem(t))
	fd, _, _ := openFake(t, p, TypeVnode, 0)

	requirePanicContains(t, func() { p.Put(fd) }, "put of unreferenced descriptor")
	requirePanicContains(t, func() { p.Put(BuiltinCapacity + 1) }, "put of unknown descriptor")
}

func TestOpenRejectsUnknownFlags(t *testing.T) {
	t.Parallel()
	p := newTestProcess(t, newTestSystem(t))

	if _, _, err := p.Open(newFakeOps(), TypeVnode, FlagRead, 1<<10); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Open() error = %v, want ErrInvalidArgument", err)
	}
	if _, _, err := p.Open(newFakeOps(), FileType(99), FlagRead, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Open() with bad type error = %v, want ErrInvalidArgument", err)
	}
	if fds := openFDs(p); len(fds) != 0 {
		t.Errorf("descriptors after failed opens = %v, want none", fds)
	}
}

func TestGetOfType(t *testing.T) {
	t.Parallel()
	p := newTestProcess(t, newTestSystem(t))
	vnode, _, _ := openFake(t, p, TypeVnode, 0)
	sock, _, _ := openFake(t, p, TypeSocket, 0)

	tests := map[string]struct {
		fd      int
		typ     FileType
		wantErr error
	}{
		"matching vnode":  {fd: vnode, typ: TypeVnode},
		"matching socket": {fd: sock, typ: TypeSocket},
		"want socket":     {fd: vnode, typ: TypeSocket, wantErr: ErrNotSocket},
		"want pipe":       {fd: sock, typ: TypePipe, wantErr: ErrWrongType},
		"closed fd":       {fd: 7, typ: TypeVnode, wantErr: ErrBadDescriptor},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f, err := p.GetOfType(tc.fd, tc.typ)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("GetOfType() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetOfType(): %v", err)
			}
			if f.Type() != tc.typ {
				t.Errorf("Type() = %v, want %v", f.Type(), tc.typ)
			}
			p.Put(tc.fd)
		})
	}

	// Failed lookups must not leak descriptor references.
	for _, d := range p.Descriptors() {
		if d.HandleRefs != 0 {
			t.Errorf("fd %d HandleRefs = %d, want 0", d.FD, d.HandleRefs)
		}
	}
}

func TestFileRef(t *testing.T) {
	t.Parallel()
	sys := newTestSystem(t)
	p := newTestProcess(t, sys)
	fd, _, ops := openFake(t, p, TypeVnode, 0)

	f, err := p.FileRef(fd)
	if err != nil {
		t.Fatalf("FileRef(): %v", err)
	}
	if f.Refs() != 2 {
		t.Errorf("Refs() = %d, want 2", f.Refs())
	}

	if err := p.Close(fd); err != nil {
		t.Fatalf("Close(): %v", err)
	}
	if ops.closeCount() != 0 {
		t.Fatal("backend closed while a FileRef reference is held")
	}
	if err := f.Release(); err != nil {
		t.Fatalf("Release(): %v", err)
	}
	if ops.closeCount() != 1 {
		t.Errorf("backend closed %d times, want 1", ops.closeCount())
	}
	if _, err := p.FileRef(fd); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("FileRef() of closed fd error = %v, want ErrBadDescriptor", err)
	}
}

func TestDupSharesFile(t *testing.T) {
	t.Parallel()
	p := newTestProcess(t, newTestSystem(t))
	fd, f, ops := openFake(t, p, TypeVnode, CloseOnExec)

	nfd, err := p.Dup(fd)
	if err != nil {
		t.Fatalf("Dup(): %v", err)
	}
	if nfd != fd+1 {
		t.Errorf("Dup() = %d, want %d", nfd, fd+1)
	}
	if f.Refs() != 2 {
		t.Errorf("Refs() after dup = %d, want 2", f.Refs())
	}
	if on, _ := p.CloseOnExec(nfd); !on {
		t.Error("dup did not inherit close-on-exec")
	}

	if err := p.Close(fd); err != nil {
		t.Fatalf("Close(): %v", err)
	}
	if ops.closeCount() != 0 {
		t.Fatal("backend closed while a duplicate is open")
	}
	got, err := p.Get(nfd)
	if err != nil || got != f {
		t.Fatalf("Get(dup) = %v, %v, want the original file", got, err)
	}
	p.Put(nfd)
}

func TestDupMin(t *testing.T) {
	t.Parallel()
	p := newTestProcess(t, newTestSystem(t))
	fd, f, _ := openFake(t, p, TypeVnode, 0)

	nfd, err := p.DupMin(fd, 10, CloseOnExec|NonBlock)
	if err != nil {
		t.Fatalf("DupMin(): %v", err)
	}
	if nfd != 10 {
		t.Errorf("DupMin() = %d, want 10", nfd)
	}
	if on, _ := p.CloseOnExec(nfd); !on {
		t.Error("DupMin did not set close-on-exec")
	}
	if on, _ := p.CloseOnExec(fd); on {
		t.Error("DupMin set close-on-exec on the source")
	}
	if f.Flags()&FlagNonBlock == 0 {
		t.Error("DupMin did not set FlagNonBlock on the file")
	}

	if next, _ := p.DupMin(fd, 10, 0); next != 11 {
		t.Errorf("second DupMin() = %d, want 11", next)
	}

	tests := map[string]struct {
		fd, minfd int
		flags     DescriptorFlags
		wantErr   error
	}{
		"negative minimum": {fd: fd, minfd: -1, wantErr: ErrInvalidArgument},
		"minimum at limit": {fd: fd, minfd: 1024, wantErr: ErrInvalidArgument},
		"unknown flags":    {fd: fd, minfd: 0, flags: 1 << 8, wantErr: ErrInvalidArgument},
		"closed source":    {fd: 5, minfd: 0, wantErr: ErrBadDescriptor},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := p.DupMin(tc.fd, tc.minfd, tc.flags); !errors.Is(err, tc.wantErr) {
				t.Errorf("DupMin() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestDupMinFailureLeavesFileFlags(t *testing.T) {
	t.Parallel()
	p := newTestProcess(t, newTestSystem(t))
	fd, f, _ := openFake(t, p, TypeVnode, 0)
	if err := p.SetLimit(1); err != nil {
		t.Fatalf("SetLimit(): %v", err)
	}

	if _, err := p.DupMin(fd, 0, NonBlock|NoSigPipe); !errors.Is(err, ErrTooManyOpen) {
		t.Fatalf("DupMin() error = %v, want ErrTooManyOpen", err)
	}
	if got := f.Flags() & (FlagNonBlock | FlagNoSigPipe); got != 0 {
		t.Errorf("file flags after failed DupMin = %#x, want none of NonBlock and NoSigPipe", uint32(got))
	}
}

func TestDup2(t *testing.T) {
	t.Parallel()

	t.Run("replaces open target", func(t *testing.T) {
		t.Parallel()
		p := newTestProcess(t, newTestSystem(t))
		src, f, _ := openFake(t, p, TypeVnode, 0)
		dst, _, dstOps := openFake(t, p, TypePipe, 0)

		if err := p.Dup2(src, dst, CloseOnFork); err != nil {
			t.Fatalf("Dup2(): %v", err)
		}
		if dstOps.closeCount() != 1 {
			t.Errorf("replaced file closed %d times, want 1", dstOps.closeCount())
		}
		got, err := p.Get(dst)
		if err != nil || got != f {
			t.Fatalf("Get(target) = %v, %v, want the source file", got, err)
		}
		p.Put(dst)
		if on, _ := p.CloseOnFork(dst); !on {
			t.Error("Dup2 did not set close-on-fork")
		}
		if f.Refs() != 2 {
			t.Errorf("Refs() = %d, want 2", f.Refs())
		}
	})

	t.Run("grows to reach target", func(t *testing.T) {
		t.Parallel()
		p := newTestProcess(t, newTestSystem(t))
		src, _, _ := openFake(t, p, TypeVnode, 0)

		if err := p.Dup2(src, 300, 0); err != nil {
			t.Fatalf("Dup2(): %v", err)
		}
		if got := p.Table().Capacity(); got < 301 {
			t.Errorf("Capacity() = %d, want at least 301", got)
		}
		if fds := openFDs(p); !slices.Equal(fds, []int{0, 300}) {
			t.Errorf("descriptors = %v, want [0 300]", fds)
		}
		if next, _, _ := openFake(t, p, TypeVnode, 0); next != 1 {
			t.Errorf("Open() after Dup2 = %d, want 1", next)
		}
	})

	t.Run("same descriptor only sets flags", func(t *testing.T) {
		t.Parallel()
		p := newTestProcess(t, newTestSystem(t))
		fd, f, ops := openFake(t, p, TypeVnode, 0)

		if err := p.Dup2(fd, fd, CloseOnExec|NoSigPipe); err != nil {
			t.Fatalf("Dup2(): %v", err)
		}
		if on, _ := p.CloseOnExec(fd); !on {
			t.Error("close-on-exec not set")
		}
		if f.Flags()&FlagNoSigPipe == 0 {
			t.Error("FlagNoSigPipe not set")
		}
		if f.Refs() != 1 || ops.closeCount() != 0 {
			t.Errorf("Refs() = %d, closes = %d, want 1 and 0", f.Refs(), ops.closeCount())
		}
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()
		p := newTestProcess(t, newTestSystem(t))
		fd, _, _ := openFake(t, p, TypeVnode, 0)

		tests := map[string]struct {
			fd, target int
			flags      DescriptorFlags
			wantErr    error
		}{
			"closed source":   {fd: 3, target: 4, wantErr: ErrBadDescriptor},
			"negative target": {fd: fd, target: -1, wantErr: ErrBadDescriptor},
			"target at limit": {fd: fd, target: 1024, wantErr: ErrBadDescriptor},
			"unknown flags":   {fd: fd, target: 4, flags: 1 << 9, wantErr: ErrInvalidArgument},
		}
		for name, tc := range tests {
			if err := p.Dup2(tc.fd, tc.target, tc.flags); !errors.Is(err, tc.wantErr) {
				t.Errorf("%s: Dup2() error = %v, want %v", name, err, tc.wantErr)
			}
		}
	})
}

func TestDupOpen(t *testing.T) {
	t.Parallel()

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()
		p := newTestProcess(t, newTestSystem(t))
		ops := newFakeOps()
		fd, f, err := p.Open(ops, TypeVnode, FlagRead, 0)
		if err != nil {
			t.Fatalf("Open(): %v", err)
		}

		if _, err := p.DupOpen(fd, false, FlagRead|FlagWrite); !errors.Is(err, ErrPermission) {
			t.Fatalf("DupOpen() wider mode error = %v, want ErrPermission", err)
		}
		nfd, err := p.DupOpen(fd, false, FlagRead)
		if err != nil {
			t.Fatalf("DupOpen(): %v", err)
		}
		if f.Refs() != 2 {
			t.Errorf("Refs() = %d, want 2", f.Refs())
		}
		if fds := openFDs(p); !slices.Equal(fds, []int{fd, nfd}) {
			t.Errorf("descriptors = %v, want [%d %d]", fds, fd, nfd)
		}
	})

	t.Run("move", func(t *testing.T) {
		t.Parallel()
		p := newTestProcess(t, newTestSystem(t))
		openFake(t, p, TypeVnode, 0)
		fd, f, ops := openFake(t, p, TypeVnode, 0)
		if err := p.Close(0); err != nil {
			t.Fatalf("Close(0): %v", err)
		}

		nfd, err := p.DupOpen(fd, true, 0)
		if err != nil {
			t.Fatalf("DupOpen(move): %v", err)
		}
		if nfd != 0 {
			t.Errorf("DupOpen(move) = %d, want 0", nfd)
		}
		if fds := openFDs(p); !slices.Equal(fds, []int{0}) {
			t.Errorf("descriptors = %v, want [0]", fds)
		}
		if f.Refs() != 1 || ops.closeCount() != 0 {
			t.Errorf("Refs() = %d, closes = %d, want 1 and 0", f.Refs(), ops.closeCount())
		}
	})
}

func TestDescriptorFlagAccessors(t *testing.T) {
	t.Parallel()
	p := newTestProcess(t, newTestSystem(t))
	fd, _, _ := openFake(t, p, TypeVnode, 0)

	if err := p.SetCloseOnExec(fd, true); err != nil {
		t.Fatalf("SetCloseOnExec(): %v", err)
	}
	if err := p.SetCloseOnFork(fd, true); err != nil {
		t.Fatalf("SetCloseOnFork(): %v", err)
	}
	exec, _ := p.CloseOnExec(fd)
	fork, _ := p.CloseOnFork(fd)
	if !exec || !fork {
		t.Errorf("flags = exec %v fork %v, want both set", exec, fork)
	}

	if err := p.SetCloseOnExec(fd, false); err != nil {
		t.Fatalf("SetCloseOnExec(false): %v", err)
	}
	if exec, _ := p.CloseOnExec(fd); exec {
		t.Error("close-on-exec still set")
	}

	if err := p.SetCloseOnExec(9, true); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("SetCloseOnExec(closed) error = %v, want ErrBadDescriptor", err)
	}
	if _, err := p.CloseOnFork(9); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("CloseOnFork(closed) error = %v, want ErrBadDescriptor", err)
	}
}

func TestFork(t *testing.T) {
	t.Parallel()
	sys := newTestSystem(t)
	parent := newTestProcess(t, sys)

	plain, plainFile, _ := openFake(t, parent, TypeVnode, 0)
	exec, _, _ := openFake(t, parent, TypeVnode, CloseOnExec)
	fork, forkFile, _ := openFake(t, parent, TypeVnode, CloseOnFork)
	kq, kqFile, _ := openFake(t, parent, TypeKqueue, 0)

	child, err := parent.Fork()
	if err != nil {
		t.Fatalf("Fork(): %v", err)
	}
	if child.PID() == parent.PID() {
		t.Fatal("child shares the parent pid")
	}
	if child.Table() == parent.Table() {
		t.Fatal("Fork() shared the table")
	}
	if child.Cred() != parent.Cred() || child.Limit() != parent.Limit() {
		t.Error("child did not inherit credential and limit")
	}

	if fds := openFDs(child); !slices.Equal(fds, []int{plain, exec}) {
		t.Errorf("child descriptors = %v, want [%d %d]", fds, plain, exec)
	}
	if on, _ := child.CloseOnExec(exec); !on {
		t.Error("child lost close-on-exec")
	}
	if plainFile.Refs() != 2 {
		t.Errorf("shared file Refs() = %d, want 2", plainFile.Refs())
	}
	if forkFile.Refs() != 1 || kqFile.Refs() != 1 {
		t.Error("skipped files gained references")
	}

	// The child fills the holes left by skipped descriptors first.
	if fd, _, _ := openFake(t, child, TypeVnode, 0); fd != fork {
		t.Errorf("child Open() = %d, want %d", fd, fork)
	}
	if fd, _, _ := openFake(t, child, TypeVnode, 0); fd != kq {
		t.Errorf("child Open() = %d, want %d", fd, kq)
	}

	// Closing in the child leaves the parent's descriptor open.
	if err := child.Close(plain); err != nil {
		t.Fatalf("child Close(): %v", err)
	}
	if _, err := parent.Get(plain); err != nil {
		t.Errorf("parent Get() after child close: %v", err)
	}
	parent.Put(plain)
}

func TestCloneSharesTable(t *testing.T) {
	t.Parallel()
	sys := newTestSystem(t)
	parent := newTestProcess(t, sys)
	fd, _, ops := openFake(t, parent, TypeVnode, 0)

	child, err := parent.Clone()
	if err != nil {
		t.Fatalf("Clone(): %v", err)
	}
	if child.Table() != parent.Table() || parent.Table().Refs() != 2 {
		t.Fatal("Clone() did not share the table")
	}

	cfd, _, _ := openFake(t, child, TypePipe, 0)
	if _, err := parent.Get(cfd); err != nil {
		t.Errorf("parent cannot see child's descriptor: %v", err)
	} else {
		parent.Put(cfd)
	}

	if err := child.Exit(); err != nil {
		t.Fatalf("child Exit(): %v", err)
	}
	if ops.closeCount() != 0 {
		t.Fatal("descriptors closed while the table is still shared")
	}
	if parent.Table().Refs() != 1 {
		t.Errorf("Refs() after child exit = %d, want 1", parent.Table().Refs())
	}
	if _, err := parent.Get(fd); err != nil {
		t.Errorf("Get() after child exit: %v", err)
	} else {
		parent.Put(fd)
	}
}

func TestExec(t *testing.T) {
	t.Parallel()

	t.Run("closes close-on-exec descriptors", func(t *testing.T) {
		t.Parallel()
		p := newTestProcess(t, newTestSystem(t))
		keep, _, _ := openFake(t, p, TypeVnode, CloseOnFork)
		drop, _, dropOps := openFake(t, p, TypeVnode, CloseOnExec)

		if err := p.Exec(); err != nil {
			t.Fatalf("Exec(): %v", err)
		}
		if fds := openFDs(p); !slices.Equal(fds, []int{keep}) {
			t.Errorf("descriptors = %v, want [%d]", fds, keep)
		}
		if dropOps.closeCount() != 1 {
			t.Errorf("fd %d closed %d times, want 1", drop, dropOps.closeCount())
		}
		if on, _ := p.CloseOnFork(keep); on {
			t.Error("Exec() did not clear close-on-fork")
		}
	})

	t.Run("unshares table", func(t *testing.T) {
		t.Parallel()
		p := newTestProcess(t, newTestSystem(t))
		fd, f, _ := openFake(t, p, TypeVnode, 0)
		sibling, err := p.Clone()
		if err != nil {
			t.Fatalf("Clone(): %v", err)
		}
		shared := p.Table()

		if err := p.Exec(); err != nil {
			t.Fatalf("Exec(): %v", err)
		}
		if p.Table() == shared {
			t.Fatal("Exec() kept the shared table")
		}
		if shared.Refs() != 1 || sibling.Table() != shared {
			t.Error("sibling lost its table")
		}
		if f.Refs() != 2 {
			t.Errorf("Refs() = %d, want 2", f.Refs())
		}

		if err := p.Close(fd); err != nil {
			t.Fatalf("Close(): %v", err)
		}
		if _, err := sibling.Get(fd); err != nil {
			t.Errorf("sibling Get() after exec'd close: %v", err)
		} else {
			sibling.Put(fd)
		}
	})
}

func TestExit(t *testing.T) {
	t.Parallel()
	sys := newTestSystem(t)
	p := newTestProcess(t, sys)

	var all []*fakeOps
	for range 30 {
		_, _, ops := openFake(t, p, TypeVnode, 0)
		all = append(all, ops)
	}
	bad := newFakeOps()
	bad.closeErr = errors.New("flush failed")
	if _, _, err := p.Open(bad, TypeVnode, FlagWrite, 0); err != nil {
		t.Fatalf("Open(): %v", err)
	}

	err := p.Exit()
	if err == nil || !errors.Is(err, bad.closeErr) {
		t.Fatalf("Exit() error = %v, want the backend close error", err)
	}
	for i, ops := range all {
		if ops.closeCount() != 1 {
			t.Errorf("file %d closed %d times, want 1", i, ops.closeCount())
		}
	}
	if sys.NumFiles() != 0 {
		t.Errorf("NumFiles() = %d, want 0", sys.NumFiles())
	}
	if _, ok := sys.Process(p.PID()); ok {
		t.Error("exited process still registered")
	}
	if p.Table().Capacity() != BuiltinCapacity {
		t.Errorf("Capacity() after exit = %d, want %d", p.Table().Capacity(), BuiltinCapacity)
	}

	calls := map[string]func() error{
		"Exit":     p.Exit,
		"Close":    func() error { return p.Close(0) },
		"SetLimit": func() error { return p.SetLimit(10) },
		"Exec":     p.Exec,
		"Get":      func() error { _, err := p.Get(0); return err },
		"Fork":     func() error { _, err := p.Fork(); return err },
		"Clone":    func() error { _, err := p.Clone(); return err },
		"Dup":      func() error { _, err := p.Dup(0); return err },
		"Alloc":    func() error { _, err := p.Alloc(0); return err },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrProcessExited) {
			t.Errorf("%s after Exit error = %v, want ErrProcessExited", name, err)
		}
	}
}

func TestSetLimitRejectsNonPositive(t *testing.T) {
	t.Parallel()
	p := newTestProcess(t, newTestSystem(t))

	for _, n := range []int{0, -5} {
		if err := p.SetLimit(n); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SetLimit(%d) error = %v, want ErrInvalidArgument", n, err)
		}
	}
	if p.Limit() != testConfig().ProcessLimit {
		t.Errorf("Limit() = %d, want %d", p.Limit(), testConfig().ProcessLimit)
	}
}

func TestProcessAdvLock(t *testing.T) {
	t.Parallel()
	p := newTestProcess(t, newTestSystem(t))

	ops := lockingOps{newFakeOps()}
	fd, _, err := p.Open(ops, TypeVnode, FlagRead|FlagWrite, 0)
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}
	dup, err := p.Dup(fd)
	if err != nil {
		t.Fatalf("Dup(): %v", err)
	}

	if err := p.AdvLock(fd, LockExclusive); err != nil {
		t.Fatalf("AdvLock(): %v", err)
	}
	// Closing any descriptor drops the process's record locks on the file.
	if err := p.Close(dup); err != nil {
		t.Fatalf("Close(): %v", err)
	}

	want := []string{
		"posix:process:2",
		"posix:process:4",
	}
	if got := ops.lockLog(); !slices.Equal(got, want) {
		t.Errorf("lock log = %v, want %v", got, want)
	}

	plain, _, _ := openFake(t, p, TypePipe, 0)
	if err := p.AdvLock(plain, LockShared); !errors.Is(err, ErrNotSupported) {
		t.Errorf("AdvLock() on non-lockable file error = %v, want ErrNotSupported", err)
	}
}

func TestExitUnlocksPOSIXLocks(t *testing.T) {
	t.Parallel()
	p := newTestProcess(t, newTestSystem(t))

	ops := lockingOps{newFakeOps()}
	fd, _, err := p.Open(ops, TypeVnode, FlagRead|FlagWrite, 0)
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}
	if err := p.AdvLock(fd, LockShared|LockNoWait); err != nil {
		t.Fatalf("AdvLock(): %v", err)
	}
	if err := p.Exit(); err != nil {
		t.Fatalf("Exit(): %v", err)
	}

	want := []string{"posix:process:9", "posix:process:4"}
	if got := ops.lockLog(); !slices.Equal(got, want) {
		t.Errorf("lock log = %v, want %v", got, want)
	}
	if ops.closeCount() != 1 {
		t.Errorf("backend closed %d times, want 1", ops.closeCount())
	}
}
