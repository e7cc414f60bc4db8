package testutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// MakeWritable restores write permission on everything under dir so that it
// can be removed even after a test left read-only files behind.
func MakeWritable(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		mode := os.FileMode(0o644)
		if d.IsDir() {
			mode = 0o755
		}
		return os.Chmod(path, mode)
	})
}

// CleanupTestDir removes a test directory and all its contents.
func CleanupTestDir(dir string) error {
	if _, err := os.Lstat(dir); os.IsNotExist(err) {
		return nil // Already cleaned up
	}
	if err := MakeWritable(dir); err != nil {
		return fmt.Errorf("failed to restore permissions under %s: %w", dir, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove directory %s: %w", dir, err)
	}
	return nil
}

// RegisterCleanup registers removal of dir with t.Cleanup. Failures are
// logged, not reported as test failures.
func RegisterCleanup(t *testing.T, dir string) {
	t.Helper()

	t.Cleanup(func() {
		if err := CleanupTestDir(dir); err != nil {
			t.Logf("Warning: cleanup failed for %s: %v", dir, err)
		}
	})
}
