// Package backend provides the operating-system deletion primitives the
// deletion cascade is assembled from. It defines the Backend interface and
// a factory that returns the implementation for the current platform.
package backend

import (
	"context"
)

// Backend defines the deletion primitives of one platform.
// On Windows, the WindowsBackend uses Win32 calls directly, including POSIX
// delete semantics and shell-level deletion. On other platforms, the
// GenericBackend uses standard Go file operations and shell commands.
type Backend interface {
	// DeleteFile deletes a single file.
	// Returns an error if the file cannot be deleted (e.g., permission denied, file locked).
	DeleteFile(path string) error

	// DeleteDirectory deletes an empty directory.
	DeleteDirectory(path string) error

	// ClearAttributes removes the read-only, hidden and system attributes
	// (on Windows) or restores owner write permission (elsewhere).
	ClearAttributes(path string) error

	// IsReparsePoint reports whether path is a junction, symbolic link or
	// other reparse point. The final path element is never followed.
	IsReparsePoint(path string) (bool, error)

	// RemoveReparsePoint removes the link at path without touching what it
	// points to.
	RemoveReparsePoint(path string) error

	// ReparseTarget returns the target of a link, for diagnostics.
	ReparseTarget(path string) (string, error)

	// ShellDelete removes a whole tree through the desktop shell's file
	// operation, without confirmation dialogs and without the recycle bin.
	ShellDelete(path string) error

	// RemoveTree removes a whole tree with the platform's recursive
	// directory removal command and returns the command's output.
	RemoveTree(ctx context.Context, path string) (string, error)

	// PrivilegedRemoveTree does the same with elevated privileges, prompting
	// for elevation when the current process is not elevated.
	PrivilegedRemoveTree(ctx context.Context, path string) (string, error)
}

// DeletionMethod represents the different file deletion methods available on Windows.
type DeletionMethod int

const (
	// MethodAuto tries every method in order until one succeeds.
	// This is the default.
	MethodAuto DeletionMethod = iota

	// MethodFileInfo uses SetFileInformationByHandle with FileDispositionInfoEx
	// and POSIX delete semantics: the name disappears immediately even while
	// other processes still hold the file open with FILE_SHARE_DELETE.
	// Falls back to FileDispositionInfo on Windows versions before 10 RS1.
	MethodFileInfo

	// MethodDeleteOnClose uses FILE_FLAG_DELETE_ON_CLOSE with CreateFile.
	MethodDeleteOnClose

	// MethodDeleteAPI uses the standard windows.DeleteFile API (baseline).
	MethodDeleteAPI
)

// String returns the string representation of the deletion method.
func (m DeletionMethod) String() string {
	switch m {
	case MethodAuto:
		return "auto"
	case MethodFileInfo:
		return "fileinfo"
	case MethodDeleteOnClose:
		return "deleteonclose"
	case MethodDeleteAPI:
		return "deleteapi"
	default:
		return "unknown"
	}
}

// NewBackend creates and returns the appropriate backend for the current platform.
// The backend selection is done at compile time using build tags
// (see factory_windows.go and factory_generic.go).
func NewBackend() Backend {
	return newPlatformBackend()
}
