package core

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/giantswarm/fdtable/internal/bitmap"
)

// dtab is one generation of the descriptor array. Lookups load the current
// generation and index it without the table lock; grow publishes a larger
// copy with a single atomic store. A displaced generation stays reachable
// for as long as a reader still holds it.
type dtab struct {
	slots []atomic.Pointer[slot]
}

func newDtab(n int) *dtab {
	return &dtab{slots: make([]atomic.Pointer[slot], n)}
}

// Table is a descriptor table, shared by every process of a descriptor
// table group.
//
// mu guards the bitmap, freefile, lastfile, slot creation and replacement of
// dt. Slot contents are read without it.
type Table struct {
	sys *System

	mu sync.Mutex
	dt atomic.Pointer[dtab]

	// refs is the number of processes sharing the table.
	refs atomic.Int32

	bits     *bitmap.Map
	freefile int
	lastfile int

	// exclose and foclose are set when any slot may carry the flag, so
	// exec can skip the sweep on tables that never used them.
	exclose atomic.Bool
	foclose atomic.Bool

	builtin [InlineSlots]slot
}

func newTable(sys *System) *Table {
	t := &Table{sys: sys}
	t.refs.Store(1)
	t.resetLocked()
	return t
}

// resetLocked returns the table to its initial builtin geometry.
func (t *Table) resetLocked() {
	d := newDtab(BuiltinCapacity)
	for i := range t.builtin {
		s := &t.builtin[i]
		s.reset()
		s.closing.L = &t.mu
		d.slots[i].Store(s)
	}
	t.dt.Store(d)
	t.bits = bitmap.New(BuiltinCapacity)
	t.freefile = 0
	t.lastfile = -1
	t.exclose.Store(false)
	t.foclose.Store(false)
}

// Refs returns the number of processes sharing the table.
func (t *Table) Refs() int { return int(t.refs.Load()) }

// Capacity returns the number of addressable descriptors.
func (t *Table) Capacity() int { return len(t.dt.Load().slots) }

// slotAt returns the slot for fd, or nil when fd is out of range or the slot
// was never created. It takes no locks.
func (t *Table) slotAt(fd int) *slot {
	d := t.dt.Load()
	if fd < 0 || fd >= len(d.slots) {
		return nil
	}
	return d.slots[fd].Load()
}

func (t *Table) lastFile() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastfile
}

// used marks fd allocated. Caller holds mu.
func (t *Table) used(fd int, s *slot) {
	if s.file.Load() != nil || s.allocated.Load() {
		panic(fmt.Sprintf("fdtable: descriptor %d marked used twice", fd))
	}
	t.bits.Set(fd)
	s.allocated.Store(true)
	if fd > t.lastfile {
		t.lastfile = fd
	}
}

// unused marks fd free. Caller holds mu.
func (t *Table) unused(fd int, s *slot) {
	if s.file.Load() != nil || !s.allocated.Load() {
		panic(fmt.Sprintf("fdtable: descriptor %d freed while open or unallocated", fd))
	}
	if fd < t.freefile {
		t.freefile = fd
	}
	t.bits.Clear(fd)
	s.allocated.Store(false)
	if fd == t.lastfile {
		t.lastfile = t.bits.LastSetBelow(fd)
	}
}

// alloc reserves the lowest free descriptor at or above want and below
// limit. It returns errTableFull when the array must grow first and
// ErrTooManyOpen when the array already spans the limit.
func (t *Table) alloc(want, limit int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.dt.Load()
	last := min(len(d.slots), limit)
	fd := t.bits.NextClear(max(want, t.freefile), last)
	if fd < 0 {
		if len(d.slots) >= limit {
			return -1, ErrTooManyOpen.With("limit %d reached", limit)
		}
		return -1, errTableFull
	}

	s := d.slots[fd].Load()
	if s == nil {
		s = newSlot(&t.mu)
		d.slots[fd].Store(s)
	}
	t.used(fd, s)
	if want <= t.freefile {
		t.freefile = fd
	}
	return fd, nil
}

// grow expands the descriptor array. The new array is allocated before
// taking the lock; if another goroutine grew the table in the meantime the
// allocation is dropped and grow reports false so the caller retries.
func (t *Table) grow() bool {
	old := t.Capacity()
	n := GrowthExtent
	if old >= GrowthExtent {
		n = 2 * old
	}
	next := newDtab(n)

	t.mu.Lock()
	cur := t.dt.Load()
	if len(cur.slots) != old {
		t.mu.Unlock()
		Logger().Debug("descriptor table grow lost race, retrying", "capacity", len(cur.slots))
		t.sys.metrics.GrowRetried()
		return false
	}
	for i := range cur.slots {
		next.slots[i].Store(cur.slots[i].Load())
	}
	t.bits.Grow(n)
	t.dt.Store(next)
	t.mu.Unlock()

	Logger().Debug("descriptor table grown", "old_capacity", old, "new_capacity", n)
	t.sys.metrics.TableGrown(old, n)
	return true
}

// copyTable returns a new, unshared table holding a copy of every open
// descriptor that survives fork. Close-on-fork descriptors and
// non-inheritable types are skipped, close-on-exec is preserved and each
// copied descriptor takes a File reference. The array shrinks toward the
// highest copied descriptor when the source grew far past it.
func (t *Table) copyTable() *Table {
	nt := newTable(t.sys)

	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.dt.Load()
	lastfile := t.lastfile

	n := BuiltinCapacity
	if lastfile >= BuiltinCapacity {
		n = len(cur.slots)
		for n >= 2*GrowthExtent && n > 2*lastfile {
			n /= 2
		}
		d := newDtab(n)
		for i := range nt.builtin {
			d.slots[i].Store(&nt.builtin[i])
		}
		nt.dt.Store(d)
		nt.bits = bitmap.New(n)
	}

	nd := nt.dt.Load()
	newLast := -1
	for fd := 0; fd <= lastfile; fd++ {
		s := cur.slots[fd].Load()
		if s == nil {
			continue
		}
		f := s.file.Load()
		if f == nil {
			// unused or half open
			continue
		}
		if s.foclose.Load() || !f.typ.Inheritable() {
			continue
		}
		f.Hold()

		ns := nd.slots[fd].Load()
		if ns == nil {
			ns = newSlot(&nt.mu)
			nd.slots[fd].Store(ns)
		}
		ns.file.Store(f)
		ns.exclose.Store(s.exclose.Load())
		ns.allocated.Store(true)
		nt.bits.Set(fd)
		newLast = fd
	}

	nt.lastfile = newLast
	nt.freefile = nt.bits.NextClear(0, n)
	if nt.freefile < 0 {
		nt.freefile = n
	}
	nt.exclose.Store(t.exclose.Load())
	return nt
}

// release drops one group reference on behalf of p. The last reference
// closes every open descriptor and returns the table to its builtin
// geometry. Descriptors still referenced by in-flight operations, and vnodes
// of a process that used POSIX locks, go through the full close protocol;
// everything else is torn down directly.
func (t *Table) release(p *Process) error {
	if t.refs.Add(-1) > 0 {
		return nil
	}

	d := t.dt.Load()
	posixLocks := p != nil && p.advlock.Load()

	var errs []error
	for fd := range d.slots {
		s := d.slots[fd].Load()
		if s == nil {
			continue
		}
		f := s.file.Load()
		if f == nil {
			continue
		}

		var err error
		if s.refs.Load() == 0 && (!posixLocks || f.typ != TypeVnode) {
			s.file.Store(nil)
			s.exclose.Store(false)
			s.foclose.Store(false)
			s.allocated.Store(false)
			t.sys.metrics.DescriptorClosed()
			err = f.Release()
		} else {
			s.refs.Add(1)
			err = t.closeDescriptor(p, fd, s)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("close fd %d: %w", fd, err))
		}
	}

	t.mu.Lock()
	t.resetLocked()
	t.mu.Unlock()

	return errors.Join(errs...)
}
