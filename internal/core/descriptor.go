package core

import "fmt"

// get takes a descriptor reference on fd and returns the open File.
//
// The reference is taken before the file pointer is read. A close stores nil
// before dropping its own reference, so either get observes nil and backs
// out, or the closer observes get's reference and waits for it to drain.
func (t *Table) get(fd int) (*File, *slot, error) {
	s := t.slotAt(fd)
	if s == nil {
		return nil, nil, ErrBadDescriptor.With("fd %d", fd)
	}
	s.refs.Add(1)
	if f := s.file.Load(); f != nil {
		return f, s, nil
	}
	t.put(fd, s)
	return nil, nil, ErrBadDescriptor.With("fd %d", fd)
}

// put drops a descriptor reference taken by get. If a close is waiting for
// the descriptor to drain, put wakes it.
func (t *Table) put(fd int, s *slot) {
	if s.refs.Load()&refMask == 0 {
		panic(fmt.Sprintf("fdtable: put of unreferenced descriptor %d", fd))
	}

	if t.sys.cfg.SingleThreadFastPath && t.refs.Load() == 1 {
		if s.refs.Add(^uint32(0))&closingBit != 0 {
			t.mu.Lock()
			s.closing.Broadcast()
			t.mu.Unlock()
		}
		return
	}

	for u := s.refs.Load() & refMask; ; {
		if s.refs.CompareAndSwap(u, u-1) {
			return
		}
		v := s.refs.Load()
		if v&closingBit != 0 {
			break
		}
		u = v
	}

	// Another goroutine is closing the descriptor: join it.
	_ = t.closeDescriptor(nil, fd, s)
}

// affix makes f visible at the allocated descriptor fd and takes a File
// reference for it. No lock is needed: nobody else publishes into an
// allocated, empty slot.
func (t *Table) affix(fd int, f *File) {
	s := t.slotAt(fd)
	if s == nil || !s.allocated.Load() {
		panic(fmt.Sprintf("fdtable: affix into unallocated descriptor %d", fd))
	}
	if s.file.Load() != nil {
		panic(fmt.Sprintf("fdtable: affix into open descriptor %d", fd))
	}
	f.Hold()
	s.file.Store(f)
}

// abort releases an allocated descriptor that was never affixed. A non-nil
// f must be unreferenced; it is dropped from the registry without closing
// its backend.
func (t *Table) abort(fd int, f *File) {
	s := t.slotAt(fd)
	if s == nil {
		panic(fmt.Sprintf("fdtable: abort of unallocated descriptor %d", fd))
	}
	s.exclose.Store(false)
	s.foclose.Store(false)

	t.mu.Lock()
	t.unused(fd, s)
	t.mu.Unlock()

	if f != nil {
		f.discard()
	}
}

// closeDescriptor closes fd. The caller holds one descriptor reference,
// which is consumed.
//
// The file pointer is cleared first so new lookups fail. If other users
// still hold references the slot is marked closing, the backend is asked to
// abort blocked operations, and the close waits until every reference has
// been dropped. Only then is the slot freed and the File reference released.
//
// A caller that finds the file pointer already cleared is joining a close in
// progress: it drops its reference, wakes the closer and reports
// ErrBadDescriptor.
func (t *Table) closeDescriptor(p *Process, fd int, s *slot) error {
	t.mu.Lock()
	if s.refs.Load()&refMask == 0 {
		t.mu.Unlock()
		panic(fmt.Sprintf("fdtable: close of unreferenced descriptor %d", fd))
	}

	f := s.file.Load()
	if f == nil {
		s.refs.Add(^uint32(0))
		s.closing.Broadcast()
		t.mu.Unlock()
		return ErrBadDescriptor.With("fd %d is being closed", fd)
	}
	if s.refs.Load()&closingBit != 0 {
		t.mu.Unlock()
		panic(fmt.Sprintf("fdtable: descriptor %d open while closing", fd))
	}

	s.file.Store(nil)
	s.exclose.Store(false)
	s.foclose.Store(false)

	if s.refs.Add(^uint32(0)) != 0 {
		s.refs.Or(closingBit)
		t.mu.Unlock()

		Logger().Debug("close waiting for descriptor users", "fd", fd, "type", f.typ.String())
		f.ops.Restart(f)

		t.mu.Lock()
		for s.refs.Load()&refMask != 0 {
			s.closing.Wait()
		}
		s.refs.And(^closingBit)
		Logger().Debug("close drained descriptor users", "fd", fd)
		t.sys.metrics.CloseDrained()
	}

	// Any close drops every POSIX record lock the process holds on the file.
	if p != nil && p.advlock.Load() {
		if locker, ok := f.ops.(AdvisoryLocker); ok {
			t.mu.Unlock()
			_ = locker.AdvLock(f, p, LockUnlock, LockPOSIX)
			t.mu.Lock()
		}
	}

	t.unused(fd, s)
	t.mu.Unlock()

	t.sys.metrics.DescriptorClosed()
	return f.Release()
}

// setExclose sets or clears close-on-exec on an allocated slot.
func (t *Table) setExclose(s *slot, on bool) {
	s.exclose.Store(on)
	if on {
		t.exclose.Store(true)
	}
}

// setFoclose sets or clears close-on-fork on an allocated slot.
func (t *Table) setFoclose(s *slot, on bool) {
	s.foclose.Store(on)
	if on {
		t.foclose.Store(true)
	}
}
