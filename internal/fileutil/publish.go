package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/giantswarm/fdtable/internal/sentinel"
)

// ErrEmptyDst is returned when a destination path is empty.
const ErrEmptyDst = sentinel.Error("destination path must not be empty")

// PublishOptions configures Publish.
type PublishOptions struct {
	Mode *os.FileMode // Optional: final permissions, default 0644
	Sync bool         // If true, fsync the file before the rename
}

// EnsureDirForFile creates the parent directory of filePath if it does not
// already exist.
func EnsureDirForFile(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// TempFile creates an empty scratch file in the directory of dst, creating
// that directory if needed, and returns its path. The scratch file lives on
// the same filesystem as dst so Publish can rename it.
func TempFile(dst string) (string, error) {
	if dst == "" {
		return "", ErrEmptyDst
	}
	if err := EnsureDirForFile(dst); err != nil {
		return "", fmt.Errorf("prepare destination: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}

// Publish moves the file at tmpPath to dst. If opts is nil, the file gets
// mode 0644 and is not synced. On failure tmpPath is removed and dst is left
// untouched.
func Publish(tmpPath, dst string, opts *PublishOptions) (retErr error) {
	if dst == "" {
		return ErrEmptyDst
	}
	defer func() {
		if retErr != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	var o PublishOptions
	if opts != nil {
		o = *opts
	}
	mode := os.FileMode(0o644)
	if o.Mode != nil {
		mode = *o.Mode
	}

	if o.Sync {
		if err := syncFile(tmpPath); err != nil {
			return err
		}
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename temp file to destination: %w", err)
	}
	return nil
}

// syncFile flushes path to stable storage.
func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0) //nolint:gosec // G304: path is from TempFile
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return nil
}
