// Package fsutil provides the all-or-none file primitives artifacts and
// prediction tables are written with: a reader either sees the previous
// complete file or the new complete file, never a torn one.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to a temporary file in the destination
// directory, syncs it, and renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return WriteAtomic(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteAtomic is WriteFileAtomic for content produced by a callback. If fill
// returns an error the destination is left untouched.
func WriteAtomic(path string, perm os.FileMode, fill func(w io.Writer) error) error {
	f, err := CreateAtomic(path, perm)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		_ = f.Abort()
		return err
	}
	return f.Commit()
}

// AtomicFile is a file that becomes visible at its destination only on
// Commit. Until then writes go to a temporary file in the same directory.
type AtomicFile struct {
	*os.File
	path string
	perm os.FileMode
	done bool
}

// CreateAtomic opens a temporary file next to path, creating the directory
// if necessary.
func CreateAtomic(path string, perm os.FileMode) (*AtomicFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &AtomicFile{File: tmp, path: path, perm: perm}, nil
}

// Path returns the destination path.
func (f *AtomicFile) Path() string {
	return f.path
}

// Commit syncs the temporary file and renames it over the destination. On
// failure the temporary file is removed.
func (f *AtomicFile) Commit() error {
	if f.done {
		return fmt.Errorf("%s already committed or aborted", f.path)
	}
	f.done = true
	tmpPath := f.Name()

	if err := f.Sync(); err != nil {
		f.discard()
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := f.File.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, f.perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s to %s: %w", tmpPath, f.path, err)
	}
	return syncDir(filepath.Dir(f.path))
}

// Abort discards the temporary file. It is a no-op after Commit or Abort.
func (f *AtomicFile) Abort() error {
	if f.done {
		return nil
	}
	f.done = true
	return f.discard()
}

// Close aborts an uncommitted file.
func (f *AtomicFile) Close() error {
	return f.Abort()
}

func (f *AtomicFile) discard() error {
	_ = f.File.Close()
	if err := os.Remove(f.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ReplaceDir moves the fully written directory src to dst. An existing dst
// is moved aside first and restored if the swap fails, then removed.
func ReplaceDir(src, dst string) error {
	backup := ""
	if _, err := os.Stat(dst); err == nil {
		backup = filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".old")
		if err := os.RemoveAll(backup); err != nil {
			return fmt.Errorf("failed to clear stale backup %s: %w", backup, err)
		}
		if err := os.Rename(dst, backup); err != nil {
			return fmt.Errorf("failed to move %s aside: %w", dst, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", dst, err)
	}

	if err := os.Rename(src, dst); err != nil {
		if backup != "" {
			if rerr := os.Rename(backup, dst); rerr != nil {
				return errors.Join(
					fmt.Errorf("failed to move %s to %s: %w", src, dst, err),
					fmt.Errorf("failed to restore %s: %w", dst, rerr),
				)
			}
		}
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			return fmt.Errorf("failed to remove backup %s: %w", backup, err)
		}
	}
	return syncDir(filepath.Dir(dst))
}

// Exists reports whether path exists. Errors other than not-exist are returned.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// syncDir flushes directory entries so a rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open directory %s: %w", dir, err)
	}
	defer d.Close()

	// fsync on a directory is unsupported on some platforms
	_ = d.Sync()
	return nil
}
