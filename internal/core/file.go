package core

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// File is an open file object. It is shared by every descriptor, in any
// process, that was duplicated or inherited from the same open.
//
// count holds one reference per descriptor slot referring to the File plus
// one per FileRef caller. When it drops to zero the File is torn down:
// flock-style locks are released, the backend is closed, and the File leaves
// the system registry.
type File struct {
	ops  FileOps
	typ  FileType
	cred Cred
	id   uint64
	sys  *System

	count  atomic.Int64
	flags  atomic.Uint32
	offset atomic.Int64

	// mu guards data and serialises the final teardown.
	mu       sync.Mutex
	data     any
	tornDown bool
}

func newFile(sys *System, id uint64, ops FileOps, typ FileType, flags FileFlags, cred Cred) *File {
	if ops == nil {
		panic("fdtable: file created with nil ops")
	}
	f := &File{ops: ops, typ: typ, cred: cred, id: id, sys: sys}
	f.flags.Store(uint32(flags &^ FlagHasLock))
	return f
}

// NewDummyFile returns a File that is not registered with any System and
// does not count against MaxFiles. It starts with no references; the caller
// must take one with Hold before releasing it.
func NewDummyFile(ops FileOps, typ FileType) *File {
	return newFile(nil, 0, ops, typ, 0, Cred{})
}

// ID returns the system-unique identifier of the File. Dummy files have ID 0.
func (f *File) ID() uint64 { return f.id }

// Type returns the file type.
func (f *File) Type() FileType { return f.typ }

// Cred returns the credential the File was opened with.
func (f *File) Cred() Cred { return f.cred }

// Ops returns the backend.
func (f *File) Ops() FileOps { return f.ops }

// Refs returns the current object reference count.
func (f *File) Refs() int64 { return f.count.Load() }

// Flags returns the current status flags.
func (f *File) Flags() FileFlags { return FileFlags(f.flags.Load()) }

// SetFlags sets the given status flags.
func (f *File) SetFlags(fl FileFlags) { f.flags.Or(uint32(fl)) }

// ClearFlags clears the given status flags.
func (f *File) ClearFlags(fl FileFlags) { f.flags.And(^uint32(fl)) }

// Offset returns the current file offset.
func (f *File) Offset() int64 { return f.offset.Load() }

// Data returns the backend-private value attached with SetData.
func (f *File) Data() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data
}

// SetData attaches a backend-private value to the File.
func (f *File) SetData(v any) {
	f.mu.Lock()
	f.data = v
	f.mu.Unlock()
}

// Read reads from the current offset and advances it.
func (f *File) Read(p []byte) (int, error) {
	if f.Flags()&FlagRead == 0 {
		return 0, ErrBadDescriptor.With("file %d not open for reading", f.id)
	}
	off := f.offset.Load()
	n, err := f.ops.Read(f, &off, p)
	f.offset.Store(off)
	return n, err
}

// Write writes at the current offset and advances it.
func (f *File) Write(p []byte) (int, error) {
	if f.Flags()&FlagWrite == 0 {
		return 0, ErrBadDescriptor.With("file %d not open for writing", f.id)
	}
	off := f.offset.Load()
	n, err := f.ops.Write(f, &off, p)
	f.offset.Store(off)
	return n, err
}

// Ioctl forwards a control request to the backend.
func (f *File) Ioctl(cmd uint, arg any) error {
	return f.ops.Ioctl(f, cmd, arg)
}

// Poll reports which of events are ready.
func (f *File) Poll(events PollEvents) PollEvents {
	return f.ops.Poll(f, events)
}

// Stat returns backend metadata. The Type field is always the File's type.
func (f *File) Stat() (Stat, error) {
	st, err := f.ops.Stat(f)
	if err != nil {
		return Stat{}, err
	}
	st.Type = f.typ
	return st, nil
}

// AdvLock applies a flock-style advisory lock owned by the File. A
// successful lock marks the File so the final Release unlocks it.
func (f *File) AdvLock(op LockOp) error {
	locker, ok := f.ops.(AdvisoryLocker)
	if !ok {
		return ErrNotSupported.With("%s file has no advisory locks", f.typ)
	}
	if err := locker.AdvLock(f, f, op, LockFlock); err != nil {
		return err
	}
	if op&LockUnlock != 0 {
		f.ClearFlags(FlagHasLock)
	} else {
		f.SetFlags(FlagHasLock)
	}
	return nil
}

// Hold adds an object reference.
func (f *File) Hold() {
	f.count.Add(1)
}

// Release drops an object reference taken by a descriptor, FileRef or Hold.
// The caller that drops the last reference tears the File down and receives
// the backend's Close error.
//
// Panics if the File has no references.
func (f *File) Release() error {
	n := f.count.Add(-1)
	if n > 0 {
		return nil
	}
	if n < 0 {
		panic(fmt.Sprintf("fdtable: release of unreferenced file %d", f.id))
	}
	return f.teardown()
}

func (f *File) teardown() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.tornDown {
		panic(fmt.Sprintf("fdtable: file %d torn down twice", f.id))
	}
	f.tornDown = true

	if f.Flags()&FlagHasLock != 0 {
		if locker, ok := f.ops.(AdvisoryLocker); ok {
			_ = locker.AdvLock(f, f, LockUnlock, LockFlock)
		}
		f.ClearFlags(FlagHasLock)
	}

	err := f.ops.Close(f)
	if errors.Is(err, ErrRestart) {
		panic(fmt.Sprintf("fdtable: close of %s file %d requested restart", f.typ, f.id))
	}

	if f.sys != nil {
		f.sys.forget(f)
	}
	return err
}

// discard drops a File that never became visible through a descriptor.
// Only the registry entry is removed; the backend is not closed.
func (f *File) discard() {
	if n := f.count.Load(); n != 0 {
		panic(fmt.Sprintf("fdtable: discard of file %d with %d references", f.id, n))
	}
	if f.sys != nil {
		f.sys.forget(f)
	}
}
