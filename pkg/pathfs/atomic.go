// Package pathfs provides the shared filesystem primitives every other
// package in this module builds on: atomic writes, cross-filesystem-safe
// directory moves, a data-root-relative path resolver, and path-jail
// enforcement for user-supplied filenames.
package pathfs

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// AtomicWrite writes data to path durably: a sibling temp file is written,
// fsynced, renamed over the target, and the containing directory is fsynced
// best-effort. Partial writes never appear at the target path.
//
// Grounded on rig's internal/core.SaveState and Raven's task.StateManager
// write-atomic pattern, generalized with the fsync-before-rename and
// fsync-the-directory steps spec.md §4.5 requires for durability.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pathfs: create parent dir %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf("%s.tmp.%d.%x", filepath.Base(path), os.Getpid(), rand.Uint32()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("pathfs: create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("pathfs: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("pathfs: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("pathfs: close temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("pathfs: atomic rename: %w", err)
	}

	syncDirBestEffort(dir)
	return nil
}

// syncDirBestEffort fsyncs a directory so the rename is durable across a
// crash. Some platforms/filesystems don't support fsync on directories;
// errors are intentionally swallowed per spec.md §4.3 step 6 ("best-effort").
func syncDirBestEffort(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}
