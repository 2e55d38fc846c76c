package core

import (
	"errors"
	"fmt"

	"github.com/giantswarm/fdtable/internal/metrics"
)

// Table geometry. A fresh table addresses BuiltinCapacity descriptors, the
// first InlineSlots of which live inside the Table itself. Expansion jumps to
// GrowthExtent and doubles after that.
const (
	BuiltinCapacity = 20
	GrowthExtent    = 50
	InlineSlots     = 6
)

// SystemConfig holds configuration for a System.
//
// All fields are immutable after construction via NewSystem.
type SystemConfig struct {
	// MaxFiles is the hard limit on live file objects across the system.
	// It also caps every process's descriptor limit.
	MaxFiles int

	// ProcessLimit is the descriptor limit given to processes created with
	// NewProcess. Forked children inherit their parent's current limit.
	ProcessLimit int

	// SingleThreadFastPath releases descriptor references with a single
	// atomic decrement instead of a compare-and-swap loop while a table is
	// not shared between processes.
	SingleThreadFastPath bool

	// Metrics receives table events. Nil means no-op.
	Metrics metrics.Recorder
}

// Validate checks all SystemConfig invariants and returns an error describing
// every violation found.
func (c SystemConfig) Validate() error {
	var errs []error

	if c.MaxFiles <= 0 {
		errs = append(errs, fmt.Errorf("max files must be greater than 0, got %d", c.MaxFiles))
	}
	if c.ProcessLimit <= 0 {
		errs = append(errs, fmt.Errorf("process limit must be greater than 0, got %d", c.ProcessLimit))
	}
	if c.MaxFiles > 0 && c.ProcessLimit > c.MaxFiles {
		errs = append(errs, fmt.Errorf("process limit %d exceeds max files %d", c.ProcessLimit, c.MaxFiles))
	}

	return errors.Join(errs...)
}
