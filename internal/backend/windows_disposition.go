//go:build windows

package backend

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// FILE_DISPOSITION_INFO is used with SetFileInformationByHandle when
// FileDispositionInfoEx is not available (before Windows 10 RS1).
type FILE_DISPOSITION_INFO struct {
	DeleteFile bool
}

// FILE_DISPOSITION_INFO_EX is used with SetFileInformationByHandle on
// Windows 10 RS1 (build 14393) and later.
type FILE_DISPOSITION_INFO_EX struct {
	Flags uint32
}

// FILE_DISPOSITION_INFO_EX flags
const (
	FILE_DISPOSITION_FLAG_DELETE                    = 0x00000001
	FILE_DISPOSITION_FLAG_POSIX_SEMANTICS           = 0x00000002
	FILE_DISPOSITION_FLAG_IGNORE_READONLY_ATTRIBUTE = 0x00000010
)

// File information classes for SetFileInformationByHandle.
const (
	FileDispositionInfo   = 4
	FileDispositionInfoEx = 21
)

const strippedAttributes = windows.FILE_ATTRIBUTE_READONLY | windows.FILE_ATTRIBUTE_HIDDEN | windows.FILE_ATTRIBUTE_SYSTEM

func deleteWithMethod(method DeletionMethod, path *uint16) error {
	switch method {
	case MethodFileInfo:
		return deleteWithFileInfo(path)
	case MethodDeleteOnClose:
		return deleteWithDeleteOnClose(path)
	case MethodDeleteAPI:
		return windows.DeleteFile(path)
	default:
		return fmt.Errorf("unknown deletion method: %v", method)
	}
}

// deleteWithFileInfo marks path for deletion through its handle. With
// FileDispositionInfoEx the name is unlinked immediately (POSIX semantics)
// and the read-only attribute is ignored. If FileDispositionInfoEx is
// rejected with ERROR_INVALID_PARAMETER, FileDispositionInfo is used.
// Works on directories too because of FILE_FLAG_BACKUP_SEMANTICS.
func deleteWithFileInfo(path *uint16) error {
	handle, err := windows.CreateFile(
		path,
		windows.DELETE,
		windows.FILE_SHARE_DELETE|windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT,
		0,
	)
	if err != nil {
		return fmt.Errorf("failed to open file for deletion: %w", err)
	}
	defer windows.CloseHandle(handle)

	infoEx := FILE_DISPOSITION_INFO_EX{
		Flags: FILE_DISPOSITION_FLAG_DELETE |
			FILE_DISPOSITION_FLAG_POSIX_SEMANTICS |
			FILE_DISPOSITION_FLAG_IGNORE_READONLY_ATTRIBUTE,
	}
	err = windows.SetFileInformationByHandle(
		handle,
		FileDispositionInfoEx,
		(*byte)(unsafe.Pointer(&infoEx)),
		uint32(unsafe.Sizeof(infoEx)),
	)
	if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
		info := FILE_DISPOSITION_INFO{DeleteFile: true}
		err = windows.SetFileInformationByHandle(
			handle,
			FileDispositionInfo,
			(*byte)(unsafe.Pointer(&info)),
			uint32(unsafe.Sizeof(info)),
		)
		if err != nil {
			return fmt.Errorf("failed to set file disposition (fallback): %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to set file disposition: %w", err)
	}
	return nil
}

// deleteWithDeleteOnClose opens path with FILE_FLAG_DELETE_ON_CLOSE; the
// file goes away when the last handle to it is closed.
func deleteWithDeleteOnClose(path *uint16) error {
	handle, err := windows.CreateFile(
		path,
		windows.DELETE,
		windows.FILE_SHARE_DELETE|windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_DELETE_ON_CLOSE|windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT,
		0,
	)
	if err != nil {
		return fmt.Errorf("failed to open file with DELETE_ON_CLOSE: %w", err)
	}
	if err := windows.CloseHandle(handle); err != nil {
		return fmt.Errorf("failed to close handle for DELETE_ON_CLOSE: %w", err)
	}
	return nil
}

// clearAttributes strips read-only, hidden and system.
func clearAttributes(path *uint16) error {
	attrs, err := windows.GetFileAttributes(path)
	if err != nil {
		return fmt.Errorf("failed to get file attributes: %w", err)
	}
	if attrs&strippedAttributes == 0 {
		return nil
	}
	newAttrs := attrs &^ strippedAttributes
	if newAttrs&^windows.FILE_ATTRIBUTE_DIRECTORY == 0 {
		newAttrs = windows.FILE_ATTRIBUTE_NORMAL
	}
	if err := windows.SetFileAttributes(path, newAttrs); err != nil {
		return fmt.Errorf("failed to clear attributes: %w", err)
	}
	return nil
}

// clearReadOnlyAndRetry clears the attributes of a file that refused every
// method and retries with DeleteFile.
func clearReadOnlyAndRetry(path *uint16) error {
	if err := clearAttributes(path); err != nil {
		return err
	}
	return windows.DeleteFile(path)
}
