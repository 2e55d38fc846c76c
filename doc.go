// Package fdtable provides per-process file descriptor tables with the
// semantics of a Unix kernel: lowest-free allocation, dup/dup2, close-on-exec
// and close-on-fork, fork/exec table sharing, and a close that waits for
// concurrent users of the descriptor to drain.
//
// Lookups are lock-free. Allocation, growth and close take a per-table mutex.
// Open files are shared between descriptors and processes and counted against
// a system-wide limit.
//
// # Basic Usage
//
//	import "github.com/giantswarm/fdtable"
//
//	sys := fdtable.NewSystem(fdtable.WithMaxFiles(4096))
//	defer sys.Shutdown()
//
//	p, err := sys.NewProcess(fdtable.Cred{UID: 1000, GID: 1000})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r, w, err := fdtable.Pipe(p, fdtable.CloseOnExec)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	f, err := p.Get(w)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_, err = f.Write([]byte("hello"))
//	p.Put(w)
//
// # Holding Descriptors
//
// Get takes a short-lived hold on a descriptor; every Get must be paired with
// Put. A Close of a held descriptor clears it immediately, asks the backend
// to abort blocked operations (which return ErrRestart), and returns only
// once every hold has been dropped. For a reference that outlives the
// descriptor, use FileRef and release it with File.Release.
//
// # Backends
//
// A file's behaviour comes from its FileOps. NewPipe and OpenHost provide an
// in-memory pipe and a host-file backend with flock(2) advisory locks.
// Custom backends embed BadOps and NullOps and override what they support.
//
// # Configuration
//
// Options may be given directly or loaded from a file and the environment:
//
//	opts, err := fdtable.LoadOptions("fdtable.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sys := fdtable.NewSystem(opts...)
//
// # Errors
//
// Errors wrap the exported sentinels and can be inspected with errors.Is.
// Errno maps an error to the errno a system call would return.
package fdtable
