package fdtable

import "context"

// System is the registry every process and open file belongs to. It
// enforces the system-wide open file limit.
//
// Callers must follow this lifecycle ordering:
//
//	NewSystem → NewProcess/NewFile (repeatable) → Shutdown
//
// Every method is safe for concurrent use.
type System interface {
	// NewProcess creates a process with an empty descriptor table and the
	// configured default descriptor limit.
	//
	// Returns ErrShuttingDown once Shutdown has started.
	NewProcess(cred Cred) (Process, error)

	// Process returns the live process with the given pid.
	Process(pid int) (Process, bool)

	// NewFile creates an open file with no references, for callers that
	// build descriptors with Process.Alloc and Process.Affix themselves.
	//
	// Returns ErrSystemLimit when the system-wide limit is reached.
	NewFile(ops FileOps, typ FileType, flags FileFlags, cred Cred) (*File, error)

	// NumFiles returns the number of live open files.
	NumFiles() int

	// Files lists every live open file, including files whose descriptor
	// is allocated but not yet affixed.
	Files() []FileInfo

	// OpenFiles lists every file reachable from a descriptor, once each.
	OpenFiles() []FileInfo

	// Descriptors lists the descriptors of the process with the given pid,
	// or of every process when pid is negative.
	Descriptors(pid int) []DescriptorInfo

	// ExportSQLite writes Files and Descriptors to a SQLite database at
	// path. An existing file at path is replaced only once the new report
	// is complete.
	ExportSQLite(ctx context.Context, path string) error

	// Shutdown exits every live process and refuses new ones. It returns
	// the joined close errors of the exited processes. Calling it again is
	// a no-op.
	Shutdown() error
}

// Process is the descriptor-table view of one process.
//
// Methods may be called from many goroutines at once, except Exec and Exit,
// which must not run concurrently with other calls on the same Process.
// After Exit every method except PID, Cred, Limit and Descriptors returns
// ErrProcessExited.
type Process interface {
	// PID returns the process identifier.
	PID() int

	// Cred returns the process credential.
	Cred() Cred

	// Limit returns the soft descriptor limit.
	Limit() int

	// SetLimit changes the soft descriptor limit. Descriptors already
	// open above the new limit stay open. The effective limit never
	// exceeds the system-wide limit.
	SetLimit(n int) error

	// Alloc reserves the lowest free descriptor at or above minfd. The
	// descriptor is not open until Affix; undo it with Abort.
	//
	// Returns ErrTooManyOpen when the limit is reached.
	Alloc(minfd int) (int, error)

	// AllocFile reserves a descriptor and creates an open file for it.
	AllocFile(ops FileOps, typ FileType, flags FileFlags) (int, *File, error)

	// Affix publishes f at a descriptor reserved by Alloc or AllocFile.
	//
	// Panics if fd is not reserved or already open.
	Affix(fd int, f *File)

	// Abort frees a reserved descriptor. f may be nil; a non-nil f must be
	// the unreferenced file returned by AllocFile.
	Abort(fd int, f *File)

	// Open allocates a descriptor and a file and publishes them in one step.
	Open(ops FileOps, typ FileType, flags FileFlags, dflags DescriptorFlags) (int, *File, error)

	// Get returns the file open at fd and holds the descriptor until Put.
	// A concurrent Close of fd waits for the hold to be dropped.
	//
	// Returns ErrBadDescriptor if fd is not open.
	Get(fd int) (*File, error)

	// GetOfType is Get restricted to one file type.
	//
	// Returns ErrNotSocket when a socket was requested, ErrWrongType for
	// any other mismatch.
	GetOfType(fd int, typ FileType) (*File, error)

	// Put drops a hold taken by Get or GetOfType.
	//
	// Panics if fd is not held.
	Put(fd int)

	// FileRef returns the file open at fd with a file reference instead of
	// a descriptor hold. Drop it with File.Release.
	FileRef(fd int) (*File, error)

	// Close closes fd. Operations blocked on fd in other goroutines are
	// restarted and Close waits until they return. If this was the last
	// reference to the file, the backend's close error is returned.
	Close(fd int) error

	// Dup duplicates fd onto the lowest free descriptor, copying its
	// close-on-exec and close-on-fork flags.
	Dup(fd int) (int, error)

	// DupMin duplicates fd onto the lowest free descriptor at or above
	// minfd with the given flags.
	DupMin(fd, minfd int, flags DescriptorFlags) (int, error)

	// Dup2 makes target refer to the file open at fd, closing whatever
	// target referred to before.
	Dup2(fd, target int, flags DescriptorFlags) error

	// DupOpen duplicates fd as an open of /dev/fd/N does, or moves it when
	// move is set.
	//
	// Returns ErrPermission when mode asks for access the file lacks.
	DupOpen(fd int, move bool, mode FileFlags) (int, error)

	// SetCloseOnExec sets or clears close-on-exec on fd.
	SetCloseOnExec(fd int, on bool) error

	// SetCloseOnFork sets or clears close-on-fork on fd.
	SetCloseOnFork(fd int, on bool) error

	// CloseOnExec reports whether fd is close-on-exec.
	CloseOnExec(fd int) (bool, error)

	// CloseOnFork reports whether fd is close-on-fork.
	CloseOnFork(fd int) (bool, error)

	// AdvLock applies a POSIX record lock owned by the process to the file
	// at fd. Closing any descriptor of that file releases it.
	AdvLock(fd int, op LockOp) error

	// Fork creates a child process with a private copy of the descriptor
	// table. Close-on-fork descriptors and kernel event queues are not
	// copied.
	Fork() (Process, error)

	// Clone creates a child process sharing this descriptor table.
	Clone() (Process, error)

	// Exec unshares the descriptor table, closes close-on-exec descriptors
	// and clears close-on-fork flags.
	Exec() error

	// Exit drops the process's reference to its table and unregisters it.
	// The last process of a table closes every descriptor.
	Exit() error

	// Descriptors lists the open descriptors in ascending order.
	Descriptors() []DescriptorInfo
}
