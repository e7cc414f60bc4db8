//go:build windows

package backend

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/yourusername/locked-folder-removal/internal/logger"
)

// WindowsBackend provides deletion primitives using direct Win32 calls.
// Every path is converted to the extended-length form (\\?\) so that deep
// trees beyond MAX_PATH and names with trailing dots or spaces, which the
// Win32 name parser would otherwise rewrite, can be removed.
type WindowsBackend struct {
	method DeletionMethod

	// runCommand runs external commands; tests replace it.
	runCommand func(ctx context.Context, name string, args ...string) (string, error)
}

// NewWindowsBackend creates a Windows backend using MethodAuto.
func NewWindowsBackend() *WindowsBackend {
	return &WindowsBackend{method: MethodAuto, runCommand: RunCommand}
}

// SetDeletionMethod restricts DeleteFile to a single method.
func (b *WindowsBackend) SetDeletionMethod(method DeletionMethod) {
	b.method = method
}

func utf16Path(path string) (*uint16, error) {
	p, err := windows.UTF16PtrFromString(toExtendedLengthPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to convert path to UTF-16: %w", err)
	}
	return p, nil
}

// DeleteFile deletes a single file. With MethodAuto the POSIX disposition
// is tried first, then delete-on-close, then DeleteFile after clearing the
// read-only attribute.
func (b *WindowsBackend) DeleteFile(path string) error {
	p, err := utf16Path(path)
	if err != nil {
		return err
	}

	if b.method != MethodAuto {
		if err := deleteWithMethod(b.method, p); err != nil {
			return fmt.Errorf("failed to delete file %s: %w", path, err)
		}
		return nil
	}

	var errs []error
	for _, method := range []DeletionMethod{MethodFileInfo, MethodDeleteOnClose, MethodDeleteAPI} {
		err := deleteWithMethod(method, p)
		if err == nil {
			return nil
		}
		if isNotFound(err) {
			return fmt.Errorf("failed to delete file %s: %w", path, err)
		}
		logger.Debug("%s failed for %s: %v", method, path, err)
		errs = append(errs, fmt.Errorf("%s: %w", method, err))
	}
	if err := clearReadOnlyAndRetry(p); err == nil {
		return nil
	}
	return fmt.Errorf("failed to delete file %s: %w", path, errors.Join(errs...))
}

// DeleteDirectory removes an empty directory with RemoveDirectory, and
// with a POSIX disposition when that is refused.
func (b *WindowsBackend) DeleteDirectory(path string) error {
	p, err := utf16Path(path)
	if err != nil {
		return err
	}
	err = windows.RemoveDirectory(p)
	if err == nil {
		return nil
	}
	if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
		if clearErr := clearAttributes(p); clearErr == nil {
			if err = windows.RemoveDirectory(p); err == nil {
				return nil
			}
		}
	}
	if errors.Is(err, windows.ERROR_DIR_NOT_EMPTY) || isNotFound(err) {
		return fmt.Errorf("failed to delete directory %s: %w", path, err)
	}
	if dispErr := deleteWithFileInfo(p); dispErr == nil {
		return nil
	}
	logger.Debug("RemoveDirectory failed for: %s (error: %v)", path, err)
	return fmt.Errorf("failed to delete directory %s: %w", path, err)
}

func (b *WindowsBackend) ClearAttributes(path string) error {
	p, err := utf16Path(path)
	if err != nil {
		return err
	}
	return clearAttributes(p)
}

func (b *WindowsBackend) RemoveTree(ctx context.Context, path string) (string, error) {
	name, args := removeTreeCommand(path)
	return b.runCommand(ctx, name, args...)
}

func (b *WindowsBackend) PrivilegedRemoveTree(ctx context.Context, path string) (string, error) {
	name, args := privilegedRemoveTreeCommand(path, windows.GetCurrentProcessToken().IsElevated())
	return b.runCommand(ctx, name, args...)
}

func isNotFound(err error) bool {
	return errors.Is(err, windows.ERROR_FILE_NOT_FOUND) || errors.Is(err, windows.ERROR_PATH_NOT_FOUND)
}

// toExtendedLengthPath converts a regular path to Windows extended-length path format.
//
// Path conversion rules:
//   - Already extended (\\?\...): Return as-is
//   - UNC path (\\server\share): Convert to \\?\UNC\server\share
//   - Absolute path (C:\path): Convert to \\?\C:\path
func toExtendedLengthPath(path string) string {
	if len(path) >= 4 && path[:4] == `\\?\` {
		return path
	}
	if len(path) >= 2 && path[:2] == `\\` {
		return `\\?\UNC\` + path[2:]
	}
	return `\\?\` + path
}
