package fdtable

import (
	"log/slog"

	"github.com/giantswarm/fdtable/internal/core"
)

// SetLogger replaces the package-level logger used by fdtable.
// This allows applications to integrate fdtable logging with their own
// logging infrastructure. The provided logger should already have any
// desired attributes; fdtable will not add additional attributes.
//
// If l is nil, the logger resets to the default: slog.Default() with
// "component" attribute, re-derived on the next log call and then cached.
// Call SetLogger(nil) after slog.SetDefault() to pick up changes.
//
// SetLogger is safe to call concurrently with other fdtable operations. A
// close racing with SetLogger may still log through the previous logger.
//
// Example:
//
//	fdtable.SetLogger(myLogger.With("component", "fdtable"))
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
