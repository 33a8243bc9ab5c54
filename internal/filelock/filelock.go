// Package filelock provides advisory file locking and atomic writes for the
// generated outputs (__init__.py files, combined output, structure reports).
// Writers never leave a partial file behind, and concurrent pyweaver
// invocations targeting the same output serialize on a sidecar lock file.
package filelock

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/edwardmakesthings/pyweaver/internal/errs"
)

// FileLock wraps a flock advisory lock for coordinating access to one file.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// New creates a file lock backed by the given lock-file path.
func New(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// Lock acquires the lock, blocking until it is available.
func (fl *FileLock) Lock() error {
	if err := fl.flock.Lock(); err != nil {
		return errs.NewFileError("lock", "failed to acquire lock", fl.path, err).
			WithCode(errs.CodeFileLock)
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking. It reports whether
// the lock was acquired.
func (fl *FileLock) TryLock() (bool, error) {
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, errs.NewFileError("try_lock", "failed to try lock", fl.path, err).
			WithCode(errs.CodeFileLock)
	}
	return acquired, nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return errs.NewFileError("unlock", "failed to release lock", fl.path, err).
			WithCode(errs.CodeFileLock)
	}
	return nil
}

// AtomicWrite writes data to path via a temp file in the same directory and
// an atomic rename, so readers never observe a partial file. Parent
// directories are created as needed; the original file survives any failure.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.NewFileError("atomic_write", "failed to create directory", dir, err).
			WithCode(errs.CodeFileWrite)
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errs.NewFileError("atomic_write", "failed to create temp file", path, err).
			WithCode(errs.CodeFileWrite)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return errs.NewFileError("atomic_write", "failed to write temp file", path, err).
			WithCode(errs.CodeFileWrite)
	}
	if err := tempFile.Sync(); err != nil {
		return errs.NewFileError("atomic_write", "failed to sync temp file", path, err).
			WithCode(errs.CodeFileWrite)
	}
	if err := tempFile.Close(); err != nil {
		return errs.NewFileError("atomic_write", "failed to close temp file", path, err).
			WithCode(errs.CodeFileWrite)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return errs.NewFileError("atomic_write", "failed to set permissions", path, err).
			WithCode(errs.CodeFilePermission)
	}

	// Rename is atomic within one filesystem; the temp file lives beside
	// the target for exactly this reason.
	if err := os.Rename(tempPath, path); err != nil {
		return errs.NewFileError("atomic_write", "failed to rename temp file", path, err).
			WithCode(errs.CodeFileWrite)
	}

	tempFile = nil
	return nil
}

// LockAndWrite acquires the sidecar lock (path + ".lock"), performs an
// atomic write, and releases the lock.
func LockAndWrite(path string, data []byte) error {
	lock := New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	return AtomicWrite(path, data)
}

// WriteIfChanged writes data only when it differs from the file's current
// content, reporting whether a write happened. Generators use it so
// untouched outputs keep their timestamps.
func WriteIfChanged(path string, data []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, errs.NewFileError("write_if_changed", "failed to read existing file", path, err).
			WithCode(errs.CodeFileRead)
	}

	if err := LockAndWrite(path, data); err != nil {
		return false, err
	}
	return true, nil
}
