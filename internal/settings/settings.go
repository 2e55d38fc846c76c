package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/giantswarm/fdtable/internal/core"
)

// EnvPrefix prefixes every environment variable Load consults, e.g.
// FDTABLE_MAX_FILES.
const EnvPrefix = "FDTABLE"

// Settings is the file and environment form of the system configuration.
type Settings struct {
	// MaxFiles is the system-wide limit on open files.
	MaxFiles int `mapstructure:"max_files" validate:"gt=0"`

	// ProcessLimit is the descriptor limit of new processes.
	ProcessLimit int `mapstructure:"process_limit" validate:"gt=0,ltefield=MaxFiles"`

	// SingleThreadFastPath enables the unshared-table release shortcut.
	SingleThreadFastPath bool `mapstructure:"single_thread_fast_path"`
}

var validate = validator.New()

// Load reads settings from path and the environment on top of defaults.
// An empty path reads only the environment. Validation failures wrap
// core.ErrInvalidConfig.
func Load(path string, defaults Settings) (*Settings, error) {
	v := viper.New()
	setupViper(v, path, defaults)

	if path != "" {
		if err := readConfigFile(v); err != nil {
			return nil, err
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// setupViper registers every key with its default so AutomaticEnv can bind
// it, and points viper at the config file.
func setupViper(v *viper.Viper, path string, defaults Settings) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("max_files", defaults.MaxFiles)
	v.SetDefault("process_limit", defaults.ProcessLimit)
	v.SetDefault("single_thread_fast_path", defaults.SingleThreadFastPath)

	if path != "" {
		v.SetConfigFile(path)
	}
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Validate checks s against its struct tags.
func Validate(s *Settings) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidConfig, formatValidationError(err))
	}
	return nil
}

// formatValidationError reports the first failed field.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
