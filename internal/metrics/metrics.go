// Package metrics defines the observability hooks of the descriptor table.
//
// All metrics are optional. When no Recorder is configured the table uses
// the no-op implementation returned by NewNoop, which has zero overhead. The
// Prometheus-backed implementation lives in the prometheus subpackage.
package metrics

// Limit names reported through Recorder.LimitHit.
const (
	// LimitProcess is the per-process soft limit (EMFILE).
	LimitProcess = "process"

	// LimitSystem is the system-wide open file limit (ENFILE).
	LimitSystem = "system"
)

// Recorder receives descriptor table events.
//
// Implementations must be safe for concurrent use: every method may be
// called from any goroutine, including while the table lock is held, so
// implementations must not call back into the table.
type Recorder interface {
	// DescriptorAllocated records a successful descriptor allocation.
	DescriptorAllocated()

	// DescriptorClosed records a descriptor leaving the table, whether by
	// close, exec sweep or process exit.
	DescriptorClosed()

	// TableGrown records a descriptor array expansion.
	TableGrown(oldCap, newCap int)

	// GrowRetried records an expansion abandoned because another goroutine
	// grew the table first.
	GrowRetried()

	// CloseDrained records a close that had to wait for concurrent users of
	// the descriptor to drain.
	CloseDrained()

	// LimitHit records an allocation refused by a limit. kind is
	// LimitProcess or LimitSystem.
	LimitHit(kind string)

	// SetOpenFiles reports the current number of live file objects.
	SetOpenFiles(n int)
}

// noop implements Recorder with no-op methods.
type noop struct{}

// NewNoop returns a Recorder that discards every event.
func NewNoop() Recorder {
	return noop{}
}

func (noop) DescriptorAllocated() {}
func (noop) DescriptorClosed()    {}
func (noop) TableGrown(_, _ int)  {}
func (noop) GrowRetried()         {}
func (noop) CloseDrained()        {}
func (noop) LimitHit(_ string)    {}
func (noop) SetOpenFiles(_ int)   {}
