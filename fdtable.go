package fdtable

import (
	"context"

	"github.com/giantswarm/fdtable/internal/core"
	prommetrics "github.com/giantswarm/fdtable/internal/metrics/prometheus"
	"github.com/giantswarm/fdtable/internal/report"
)

// Compile-time interface satisfaction checks.
var (
	_ System  = (*systemWrapper)(nil)
	_ Process = (*processWrapper)(nil)
)

// systemWrapper wraps core.System to implement the System interface.
//
// The core.System is stored as a named field rather than embedded so callers
// cannot reach internal methods through a type assertion.
type systemWrapper struct {
	sys *core.System
}

// NewProcess implements System.NewProcess, returning the Process interface.
//
//nolint:ireturn // Callers depend on the Process interface.
func (w *systemWrapper) NewProcess(cred Cred) (Process, error) {
	p, err := w.sys.NewProcess(cred)
	if err != nil {
		return nil, err
	}
	return &processWrapper{p: p}, nil
}

// Process implements System.Process.
//
//nolint:ireturn // Callers depend on the Process interface.
func (w *systemWrapper) Process(pid int) (Process, bool) {
	p, ok := w.sys.Process(pid)
	if !ok {
		return nil, false
	}
	return &processWrapper{p: p}, true
}

func (w *systemWrapper) NewFile(ops FileOps, typ FileType, flags FileFlags, cred Cred) (*File, error) {
	return w.sys.NewFile(ops, typ, flags, cred)
}

func (w *systemWrapper) NumFiles() int         { return w.sys.NumFiles() }
func (w *systemWrapper) Files() []FileInfo     { return w.sys.Files() }
func (w *systemWrapper) OpenFiles() []FileInfo { return w.sys.OpenFiles() }
func (w *systemWrapper) Shutdown() error       { return w.sys.Shutdown() }
func (w *systemWrapper) Descriptors(pid int) []DescriptorInfo {
	return w.sys.Descriptors(pid)
}

// ExportSQLite implements System.ExportSQLite. Files and descriptors are
// snapshotted separately, so a report taken under concurrent activity may
// list a file no descriptor refers to any more.
func (w *systemWrapper) ExportSQLite(ctx context.Context, path string) error {
	return report.WriteSQLite(ctx, path, w.sys.Files(), w.sys.Descriptors(-1))
}

// processWrapper wraps core.Process to implement the Process interface.
type processWrapper struct {
	p *core.Process
}

func (w *processWrapper) PID() int             { return w.p.PID() }
func (w *processWrapper) Cred() Cred           { return w.p.Cred() }
func (w *processWrapper) Limit() int           { return w.p.Limit() }
func (w *processWrapper) SetLimit(n int) error { return w.p.SetLimit(n) }

func (w *processWrapper) Alloc(minfd int) (int, error) { return w.p.Alloc(minfd) }

func (w *processWrapper) AllocFile(ops FileOps, typ FileType, flags FileFlags) (int, *File, error) {
	return w.p.AllocFile(ops, typ, flags)
}

func (w *processWrapper) Affix(fd int, f *File) { w.p.Affix(fd, f) }
func (w *processWrapper) Abort(fd int, f *File) { w.p.Abort(fd, f) }

func (w *processWrapper) Open(ops FileOps, typ FileType, flags FileFlags, dflags DescriptorFlags) (int, *File, error) {
	return w.p.Open(ops, typ, flags, dflags)
}

func (w *processWrapper) Get(fd int) (*File, error) { return w.p.Get(fd) }

func (w *processWrapper) GetOfType(fd int, typ FileType) (*File, error) {
	return w.p.GetOfType(fd, typ)
}

func (w *processWrapper) Put(fd int)                    { w.p.Put(fd) }
func (w *processWrapper) FileRef(fd int) (*File, error) { return w.p.FileRef(fd) }
func (w *processWrapper) Close(fd int) error            { return w.p.Close(fd) }
func (w *processWrapper) Dup(fd int) (int, error)       { return w.p.Dup(fd) }

func (w *processWrapper) DupMin(fd, minfd int, flags DescriptorFlags) (int, error) {
	return w.p.DupMin(fd, minfd, flags)
}

func (w *processWrapper) Dup2(fd, target int, flags DescriptorFlags) error {
	return w.p.Dup2(fd, target, flags)
}

func (w *processWrapper) DupOpen(fd int, move bool, mode FileFlags) (int, error) {
	return w.p.DupOpen(fd, move, mode)
}

func (w *processWrapper) SetCloseOnExec(fd int, on bool) error { return w.p.SetCloseOnExec(fd, on) }
func (w *processWrapper) SetCloseOnFork(fd int, on bool) error { return w.p.SetCloseOnFork(fd, on) }
func (w *processWrapper) CloseOnExec(fd int) (bool, error)     { return w.p.CloseOnExec(fd) }
func (w *processWrapper) CloseOnFork(fd int) (bool, error)     { return w.p.CloseOnFork(fd) }
func (w *processWrapper) AdvLock(fd int, op LockOp) error      { return w.p.AdvLock(fd, op) }

// Fork implements Process.Fork, returning the Process interface.
//
//nolint:ireturn // Callers depend on the Process interface.
func (w *processWrapper) Fork() (Process, error) {
	child, err := w.p.Fork()
	if err != nil {
		return nil, err
	}
	return &processWrapper{p: child}, nil
}

// Clone implements Process.Clone, returning the Process interface.
//
//nolint:ireturn // Callers depend on the Process interface.
func (w *processWrapper) Clone() (Process, error) {
	child, err := w.p.Clone()
	if err != nil {
		return nil, err
	}
	return &processWrapper{p: child}, nil
}

func (w *processWrapper) Exec() error                   { return w.p.Exec() }
func (w *processWrapper) Exit() error                   { return w.p.Exit() }
func (w *processWrapper) Descriptors() []DescriptorInfo { return w.p.Descriptors() }

// defaultSystemConfig returns a systemConfig populated with all default
// values. Both NewSystem and test helpers use it.
func defaultSystemConfig() systemConfig {
	return systemConfig{SystemConfig: core.SystemConfig{
		MaxFiles:     DefaultMaxFiles,
		ProcessLimit: DefaultProcessLimit,
	}}
}

// NewSystem returns a new System configured by opts. It performs no I/O.
//
// Panics if any option receives an invalid value, or if the combined
// configuration is inconsistent (a process limit above the system limit).
//
//nolint:ireturn // Callers depend on the System interface.
func NewSystem(opts ...Option) System {
	cfg := defaultSystemConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &systemWrapper{sys: core.NewSystem(cfg.toCoreConfig())}
}

// toCoreConfig resolves the Prometheus registerer into a metrics recorder
// and returns the core configuration.
func (c systemConfig) toCoreConfig() core.SystemConfig {
	out := c.SystemConfig
	if c.registerer != nil {
		out.Metrics = prommetrics.New(c.registerer)
	}
	return out
}
