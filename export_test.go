package fdtable

// ConfigSnapshot holds a copy of systemConfig fields for test assertions.
// Exported only via export_test.go so that the _test package can verify
// option closures actually mutate the config without accessing internals.
type ConfigSnapshot struct {
	MaxFiles             int
	ProcessLimit         int
	SingleThreadFastPath bool
	HasRegisterer        bool
}

// ApplyOptionsForTesting creates a default systemConfig, applies the given
// options, and returns a ConfigSnapshot of the result.
func ApplyOptionsForTesting(opts ...Option) ConfigSnapshot {
	cfg := defaultSystemConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return ConfigSnapshot{
		MaxFiles:             cfg.MaxFiles,
		ProcessLimit:         cfg.ProcessLimit,
		SingleThreadFastPath: cfg.SingleThreadFastPath,
		HasRegisterer:        cfg.registerer != nil,
	}
}
