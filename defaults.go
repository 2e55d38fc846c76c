package fdtable

// Default configuration values for NewSystem.
const (
	// DefaultMaxFiles is the system-wide limit on open files.
	DefaultMaxFiles = 65536

	// DefaultProcessLimit is the descriptor limit of a new process.
	DefaultProcessLimit = 1024
)
