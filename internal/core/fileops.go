package core

import "fmt"

// FileType identifies the kind of object behind a File.
type FileType int

const (
	TypeVnode FileType = iota + 1
	TypeSocket
	TypePipe
	TypeKqueue
	TypeMisc
	TypeCrypto
	TypeMqueue
	TypeSemaphore
	TypeEventFD
	TypeTimerFD
	TypeMemFD
)

// IsValid reports whether t is a recognized FileType value.
func (t FileType) IsValid() bool {
	return t >= TypeVnode && t <= TypeMemFD
}

// Inheritable reports whether descriptors of this type survive fork.
// Kernel event queues belong to the process that created them.
func (t FileType) Inheritable() bool {
	return t != TypeKqueue
}

// String returns the lower-case type name.
func (t FileType) String() string {
	switch t {
	case TypeVnode:
		return "vnode"
	case TypeSocket:
		return "socket"
	case TypePipe:
		return "pipe"
	case TypeKqueue:
		return "kqueue"
	case TypeMisc:
		return "misc"
	case TypeCrypto:
		return "crypto"
	case TypeMqueue:
		return "mqueue"
	case TypeSemaphore:
		return "semaphore"
	case TypeEventFD:
		return "eventfd"
	case TypeTimerFD:
		return "timerfd"
	case TypeMemFD:
		return "memfd"
	default:
		return fmt.Sprintf("FileType(%d)", int(t))
	}
}

// FileFlags are the open-file status flags shared by every descriptor that
// refers to the same File.
type FileFlags uint32

const (
	FlagRead FileFlags = 1 << iota
	FlagWrite
	FlagNonBlock
	FlagAppend
	FlagNoSigPipe
	// FlagHasLock is set once a flock-style lock has been taken through the
	// File, so the final release drops it.
	FlagHasLock
)

// accessMode masks the read and write bits.
const accessMode = FlagRead | FlagWrite

// DescriptorFlags are per-descriptor flags accepted by Open, DupMin and Dup2.
// NonBlock and NoSigPipe are applied to the shared File.
type DescriptorFlags uint32

const (
	CloseOnExec DescriptorFlags = 1 << iota
	CloseOnFork
	NonBlock
	NoSigPipe
)

// dup2Flags is every flag Dup2 accepts.
const dup2Flags = CloseOnExec | CloseOnFork | NonBlock | NoSigPipe

// fileFlags translates the file-level descriptor flags into FileFlags.
func (d DescriptorFlags) fileFlags() FileFlags {
	var ff FileFlags
	if d&NonBlock != 0 {
		ff |= FlagNonBlock
	}
	if d&NoSigPipe != 0 {
		ff |= FlagNoSigPipe
	}
	return ff
}

// PollEvents is a poll(2) style readiness mask.
type PollEvents uint32

const (
	PollIn PollEvents = 1 << iota
	PollOut
	PollErr
	PollHup
)

// Stat is the subset of stat(2) the table layer passes around.
type Stat struct {
	Type FileType
	Size int64
	Mode uint32
	Dev  uint64
	Ino  uint64
}

// Cred is the owner credential recorded on processes and files.
type Cred struct {
	UID uint32
	GID uint32
}

// IoctlNRead asks a backend for the number of bytes readable without
// blocking. The argument must be a *int.
const IoctlNRead uint = 0x4004667f

// LockOp selects an advisory lock operation. LockNoWait may be combined with
// LockShared or LockExclusive.
type LockOp uint8

const (
	LockShared LockOp = 1 << iota
	LockExclusive
	LockUnlock
	LockNoWait
)

// LockKind distinguishes flock-style locks, owned by the File, from POSIX
// record locks, owned by the process.
type LockKind uint8

const (
	LockFlock LockKind = iota
	LockPOSIX
)

// FileOps is the capability set of a file backend. Every method receives the
// File it was called through so shared backends can reach File.Data.
type FileOps interface {
	// Read reads into p at *off and advances it.
	Read(f *File, off *int64, p []byte) (int, error)
	// Write writes p at *off and advances it.
	Write(f *File, off *int64, p []byte) (int, error)
	Ioctl(f *File, cmd uint, arg any) error
	Poll(f *File, events PollEvents) PollEvents
	Stat(f *File) (Stat, error)
	// Restart makes operations blocked in this file return ErrRestart. It
	// is called by a close that finds the descriptor still in use.
	Restart(f *File)
	// Close releases the backend. It is final: it runs once, after the
	// last reference is gone, and must never return ErrRestart.
	Close(f *File) error
}

// AdvisoryLocker is implemented by backends that support advisory locks.
type AdvisoryLocker interface {
	AdvLock(f *File, owner any, op LockOp, kind LockKind) error
}

// BadOps implements the data-path FileOps methods by failing with
// ErrNotSupported. Embed it next to NullOps in backends that only need a
// subset.
type BadOps struct{}

func (BadOps) Read(*File, *int64, []byte) (int, error)  { return 0, ErrNotSupported }
func (BadOps) Write(*File, *int64, []byte) (int, error) { return 0, ErrNotSupported }
func (BadOps) Ioctl(*File, uint, any) error             { return ErrNotSupported }
func (BadOps) Stat(*File) (Stat, error)                 { return Stat{}, ErrNotSupported }

// NullOps implements the control-path FileOps methods as no-ops.
type NullOps struct{}

func (NullOps) Poll(*File, PollEvents) PollEvents { return 0 }
func (NullOps) Restart(*File)                     {}
func (NullOps) Close(*File) error                 { return nil }
