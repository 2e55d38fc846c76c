package fdtable

import (
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive(name string, v int) {
	if v <= 0 {
		panic(fmt.Sprintf("fdtable: %s must be greater than 0, got %d", name, v))
	}
}

// Option configures a System during construction via NewSystem.
// Each With* function returns an Option that sets a specific field.
//
// Options panic on invalid input. Option values are typically constants, so
// an invalid value is a programmer error; failing fast during construction
// beats returning an error every caller would treat as fatal.
type Option func(*systemConfig)

// WithMaxFiles sets the system-wide limit on open files. It also caps the
// descriptor limit of every process.
//
// Default: 65536.
//
// Panics if n <= 0.
func WithMaxFiles(n int) Option {
	requirePositive("max files", n)
	return func(c *systemConfig) {
		c.MaxFiles = n
	}
}

// WithProcessLimit sets the descriptor limit given to new processes. Forked
// and cloned children inherit their parent's current limit instead.
//
// Default: 1024.
//
// Panics if n <= 0. NewSystem panics if n exceeds the max files setting.
func WithProcessLimit(n int) Option {
	requirePositive("process limit", n)
	return func(c *systemConfig) {
		c.ProcessLimit = n
	}
}

// WithSingleThreadFastPath makes descriptor release use a single atomic
// decrement while a table is not shared between processes, instead of a
// compare-and-swap loop.
//
// Default: false.
func WithSingleThreadFastPath(enabled bool) Option {
	return func(c *systemConfig) {
		c.SingleThreadFastPath = enabled
	}
}

// WithPrometheusRegisterer registers the fdtable_* metrics with reg and
// feeds them from the System. Registering two Systems with the same
// registerer panics, as Prometheus rejects duplicate collectors.
//
// Panics if reg is nil.
func WithPrometheusRegisterer(reg prom.Registerer) Option {
	if reg == nil {
		panic("fdtable: prometheus registerer must not be nil")
	}
	return func(c *systemConfig) {
		c.registerer = reg
	}
}
