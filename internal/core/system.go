package core

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/giantswarm/fdtable/internal/metrics"
	"github.com/giantswarm/fdtable/internal/sentinel"
)

// ErrShuttingDown is returned by NewProcess, Fork and Clone once Shutdown
// has started.
const ErrShuttingDown = sentinel.Error("system is shutting down")

// System is the registry every table and file belongs to. It enforces the
// system-wide open file limit and hands out process and file identifiers.
//
// fileMu guards files. procMu guards procs. Neither is held while a table
// lock is taken, except that File teardown takes fileMu from under no other
// lock.
type System struct {
	cfg     SystemConfig
	metrics metrics.Recorder

	fileMu     sync.Mutex
	files      map[uint64]*File
	nextFileID atomic.Uint64

	procMu   sync.RWMutex
	procs    map[int]*Process
	nextPID  atomic.Int64
	shutdown atomic.Bool
}

// NewSystem returns a System configured by cfg.
//
// Panics if cfg is invalid.
func NewSystem(cfg SystemConfig) *System {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("fdtable: invalid system config: %v", err))
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}
	return &System{
		cfg:     cfg,
		metrics: m,
		files:   make(map[uint64]*File),
		procs:   make(map[int]*Process),
	}
}

// Config returns the configuration the System was built with.
func (s *System) Config() SystemConfig { return s.cfg }

// NewProcess creates a process with an empty descriptor table and the
// configured default limit.
func (s *System) NewProcess(cred Cred) (*Process, error) {
	return s.register(cred, s.cfg.ProcessLimit, newTable(s))
}

func (s *System) register(cred Cred, limit int, t *Table) (*Process, error) {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	if s.shutdown.Load() {
		return nil, ErrShuttingDown
	}
	p := &Process{sys: s, pid: int(s.nextPID.Add(1)), cred: cred}
	p.limit.Store(int64(limit))
	p.table.Store(t)
	s.procs[p.pid] = p
	return p, nil
}

func (s *System) unregister(p *Process) {
	s.procMu.Lock()
	delete(s.procs, p.pid)
	s.procMu.Unlock()
}

// Process returns the live process with the given pid.
func (s *System) Process(pid int) (*Process, bool) {
	s.procMu.RLock()
	defer s.procMu.RUnlock()
	p, ok := s.procs[pid]
	return p, ok
}

// processes returns a snapshot of live processes ordered by pid.
func (s *System) processes() []*Process {
	s.procMu.RLock()
	out := make([]*Process, 0, len(s.procs))
	for _, p := range s.procs {
		out = append(out, p)
	}
	s.procMu.RUnlock()
	sortByPID(out)
	return out
}

// NewFile creates a registered File with no references. It fails with
// ErrSystemLimit once MaxFiles files are live.
func (s *System) NewFile(ops FileOps, typ FileType, flags FileFlags, cred Cred) (*File, error) {
	if ops == nil {
		return nil, ErrInvalidArgument.With("nil file ops")
	}
	if !typ.IsValid() {
		return nil, ErrInvalidArgument.With("file type %v", typ)
	}

	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if n := len(s.files); n >= s.cfg.MaxFiles {
		Logger().Warn("file table is full", "max_files", s.cfg.MaxFiles)
		s.metrics.LimitHit(metrics.LimitSystem)
		return nil, ErrSystemLimit.With("%d files open", n)
	}
	f := newFile(s, s.nextFileID.Add(1), ops, typ, flags, cred)
	s.files[f.id] = f
	s.metrics.SetOpenFiles(len(s.files))
	return f, nil
}

func (s *System) forget(f *File) {
	s.fileMu.Lock()
	delete(s.files, f.id)
	s.metrics.SetOpenFiles(len(s.files))
	s.fileMu.Unlock()
}

// NumFiles returns the number of live registered files.
func (s *System) NumFiles() int {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	return len(s.files)
}

// Shutdown exits every live process and refuses new ones. It returns the
// joined close errors. Calling it again is a no-op.
func (s *System) Shutdown() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	// Wait out a register that observed shutdown as false.
	s.procMu.Lock()
	s.procMu.Unlock() //nolint:staticcheck // SA2001: empty critical section is a barrier.

	var errs []error
	for _, p := range s.processes() {
		if err := p.Exit(); err != nil && !errors.Is(err, ErrProcessExited) {
			errs = append(errs, fmt.Errorf("exit pid %d: %w", p.pid, err))
		}
	}
	return errors.Join(errs...)
}
