// Package settings loads descriptor table settings from a config file and
// FDTABLE_ environment variables.
//
// Precedence, highest first: environment variables, the config file, the
// defaults passed to Load. Any format viper reads (YAML, TOML, JSON) is
// accepted; a missing file is not an error.
package settings
