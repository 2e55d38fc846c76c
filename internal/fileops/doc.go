// Package fileops provides file backends for descriptor tables.
//
// Pipe is an in-memory pipe whose blocking reads and writes are aborted with
// core.ErrRestart when a concurrent close restarts the file. Host wraps an
// *os.File: data goes through positional reads and writes on the host
// descriptor and advisory locks are taken with gofrs/flock.
package fileops
