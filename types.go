package fdtable

import "github.com/giantswarm/fdtable/internal/core"

// Types shared with backends. They are aliases so values flow between this
// package and backend implementations without conversion.
type (
	// File is an open file, shared by every descriptor duplicated or
	// inherited from the same open.
	File = core.File

	// FileOps is the capability set a file backend implements.
	FileOps = core.FileOps

	// AdvisoryLocker is implemented by backends that support advisory
	// locks.
	AdvisoryLocker = core.AdvisoryLocker

	// BadOps fails the data-path FileOps methods with ErrNotSupported.
	BadOps = core.BadOps

	// NullOps implements the control-path FileOps methods as no-ops.
	NullOps = core.NullOps

	FileType        = core.FileType
	FileFlags       = core.FileFlags
	DescriptorFlags = core.DescriptorFlags
	PollEvents      = core.PollEvents
	LockOp          = core.LockOp
	LockKind        = core.LockKind
	Stat            = core.Stat
	Cred            = core.Cred
	FileInfo        = core.FileInfo
	DescriptorInfo  = core.DescriptorInfo
)

// File types.
const (
	TypeVnode     = core.TypeVnode
	TypeSocket    = core.TypeSocket
	TypePipe      = core.TypePipe
	TypeKqueue    = core.TypeKqueue
	TypeMisc      = core.TypeMisc
	TypeCrypto    = core.TypeCrypto
	TypeMqueue    = core.TypeMqueue
	TypeSemaphore = core.TypeSemaphore
	TypeEventFD   = core.TypeEventFD
	TypeTimerFD   = core.TypeTimerFD
	TypeMemFD     = core.TypeMemFD
)

// File status flags.
const (
	FlagRead      = core.FlagRead
	FlagWrite     = core.FlagWrite
	FlagNonBlock  = core.FlagNonBlock
	FlagAppend    = core.FlagAppend
	FlagNoSigPipe = core.FlagNoSigPipe
	FlagHasLock   = core.FlagHasLock
)

// Descriptor flags accepted by Open, DupMin and Dup2.
const (
	CloseOnExec = core.CloseOnExec
	CloseOnFork = core.CloseOnFork
	NonBlock    = core.NonBlock
	NoSigPipe   = core.NoSigPipe
)

// Poll events.
const (
	PollIn  = core.PollIn
	PollOut = core.PollOut
	PollErr = core.PollErr
	PollHup = core.PollHup
)

// Advisory lock operations and kinds.
const (
	LockShared    = core.LockShared
	LockExclusive = core.LockExclusive
	LockUnlock    = core.LockUnlock
	LockNoWait    = core.LockNoWait

	LockFlock = core.LockFlock
	LockPOSIX = core.LockPOSIX
)

// IoctlNRead asks a backend for the number of bytes readable without
// blocking. The argument must be a *int.
const IoctlNRead = core.IoctlNRead

// Table geometry.
const (
	BuiltinCapacity = core.BuiltinCapacity
	GrowthExtent    = core.GrowthExtent
)

// NewDummyFile returns a file that belongs to no System and does not count
// against any limit. Take a reference with Hold before releasing it.
func NewDummyFile(ops FileOps, typ FileType) *File {
	return core.NewDummyFile(ops, typ)
}
