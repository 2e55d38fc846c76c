package fdtable

import "github.com/giantswarm/fdtable/internal/settings"

// LoadOptions reads system settings from the config file at path (YAML,
// TOML or JSON, chosen by extension) and from FDTABLE_* environment
// variables, which take precedence. A missing file is not an error; an
// empty path reads only the environment. Unset keys keep the defaults.
//
// Recognised keys: max_files, process_limit and single_thread_fast_path.
//
// Returns an error wrapping ErrInvalidConfig when the settings fail
// validation.
func LoadOptions(path string) ([]Option, error) {
	s, err := settings.Load(path, settings.Settings{
		MaxFiles:     DefaultMaxFiles,
		ProcessLimit: DefaultProcessLimit,
	})
	if err != nil {
		return nil, err
	}
	return []Option{
		WithMaxFiles(s.MaxFiles),
		WithProcessLimit(s.ProcessLimit),
		WithSingleThreadFastPath(s.SingleThreadFastPath),
	}, nil
}
