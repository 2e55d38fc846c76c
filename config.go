package fdtable

import (
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/giantswarm/fdtable/internal/core"
)

// systemConfig holds configuration for a System. It embeds
// core.SystemConfig, keeping internal/core types out of the public API
// signature, and carries the Prometheus registerer until NewSystem turns it
// into a recorder.
type systemConfig struct {
	core.SystemConfig

	registerer prom.Registerer
}
