//go:build windows

package backend

import (
	"fmt"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"
)

func (b *WindowsBackend) IsReparsePoint(path string) (bool, error) {
	p, err := utf16Path(path)
	if err != nil {
		return false, err
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return false, err
	}
	return attrs&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0, nil
}

// RemoveReparsePoint removes a junction or link. A directory link is
// removed with RemoveDirectory, which deletes the link itself and never
// the contents of its target.
func (b *WindowsBackend) RemoveReparsePoint(path string) error {
	p, err := utf16Path(path)
	if err != nil {
		return err
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return fmt.Errorf("failed to read attributes of %s: %w", path, err)
	}
	if attrs&strippedAttributes != 0 {
		_ = clearAttributes(p)
	}
	if attrs&windows.FILE_ATTRIBUTE_DIRECTORY != 0 {
		err = windows.RemoveDirectory(p)
	} else {
		err = windows.DeleteFile(p)
	}
	if err != nil {
		return fmt.Errorf("failed to remove link %s: %w", path, err)
	}
	return nil
}

// ReparseTarget reads and decodes the reparse buffer of a symbolic link or
// mount point.
func (b *WindowsBackend) ReparseTarget(path string) (string, error) {
	p, err := utf16Path(path)
	if err != nil {
		return "", err
	}
	h, err := windows.CreateFile(
		p,
		0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OPEN_REPARSE_POINT|windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return "", err
	}
	defer windows.CloseHandle(h)

	buf := make([]byte, windows.MAXIMUM_REPARSE_DATA_BUFFER_SIZE)
	var n uint32
	if err := windows.DeviceIoControl(h, windows.FSCTL_GET_REPARSE_POINT, nil, 0, &buf[0], uint32(len(buf)), &n, nil); err != nil {
		return "", fmt.Errorf("FSCTL_GET_REPARSE_POINT: %w", err)
	}
	rp, err := winio.DecodeReparsePoint(buf[:n])
	if err != nil {
		return "", err
	}
	return rp.Target, nil
}
