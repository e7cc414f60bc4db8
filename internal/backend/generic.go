//go:build !windows

package backend

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/yourusername/locked-folder-removal/internal/logger"
	"github.com/yourusername/locked-folder-removal/internal/model"
)

// GenericBackend provides deletion primitives using standard Go file
// operations and the POSIX rm command.
type GenericBackend struct {
	// runCommand runs external commands; tests replace it.
	runCommand func(ctx context.Context, name string, args ...string) (string, error)
}

// NewGenericBackend creates a new generic cross-platform backend.
func NewGenericBackend() *GenericBackend {
	return &GenericBackend{runCommand: RunCommand}
}

// DeleteFile deletes a single file using os.Remove.
func (b *GenericBackend) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil {
		logger.Debug("os.Remove failed for file: %s (error: %v)", path, err)
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}
	return nil
}

// DeleteDirectory deletes an empty directory using os.Remove.
func (b *GenericBackend) DeleteDirectory(path string) error {
	if err := os.Remove(path); err != nil {
		logger.Debug("os.Remove failed for directory: %s (error: %v)", path, err)
		return fmt.Errorf("failed to delete directory %s: %w", path, err)
	}
	return nil
}

// ClearAttributes gives the owner write permission, and search permission
// on directories, so that the entry and its children can be removed.
func (b *GenericBackend) ClearAttributes(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil
	}
	want := info.Mode().Perm() | 0o200
	if info.IsDir() {
		want |= 0o700
	}
	if want == info.Mode().Perm() {
		return nil
	}
	return os.Chmod(path, want)
}

func (b *GenericBackend) IsReparsePoint(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return info.Mode()&fs.ModeSymlink != 0, nil
}

func (b *GenericBackend) RemoveReparsePoint(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove link %s: %w", path, err)
	}
	return nil
}

func (b *GenericBackend) ReparseTarget(path string) (string, error) {
	return os.Readlink(path)
}

// ShellDelete is only available on Windows.
func (b *GenericBackend) ShellDelete(path string) error {
	return model.ErrUnsupported
}

func (b *GenericBackend) RemoveTree(ctx context.Context, path string) (string, error) {
	name, args := removeTreeCommand(path)
	return b.runCommand(ctx, name, args...)
}

func (b *GenericBackend) PrivilegedRemoveTree(ctx context.Context, path string) (string, error) {
	name, args := privilegedRemoveTreeCommand(path, os.Geteuid() == 0)
	return b.runCommand(ctx, name, args...)
}

func removeTreeCommand(path string) (string, []string) {
	return "rm", []string{"-rf", "--", path}
}

// privilegedRemoveTreeCommand uses sudo without prompting; it fails when no
// cached credentials are available.
func privilegedRemoveTreeCommand(path string, elevated bool) (string, []string) {
	if elevated {
		return removeTreeCommand(path)
	}
	return "sudo", []string{"-n", "rm", "-rf", "--", path}
}
