//go:build windows

package backend

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/yourusername/locked-folder-removal/internal/model"
)

// SHFileOperation constants
const (
	foDelete = 0x0003

	fofSilent          = 0x0004
	fofNoConfirmation  = 0x0010
	fofNoConfirmMkdir  = 0x0200
	fofNoErrorUI       = 0x0400
	shellDeleteOptions = fofSilent | fofNoConfirmation | fofNoConfirmMkdir | fofNoErrorUI
)

// shFileOpStruct mirrors SHFILEOPSTRUCTW with the 64-bit layout. The
// 32-bit header packs the structure to 1 byte, which Go cannot express.
type shFileOpStruct struct {
	Hwnd                 uintptr
	Func                 uint32
	From                 *uint16
	To                   *uint16
	Flags                uint16
	AnyOperationsAborted int32
	NameMappings         uintptr
	ProgressTitle        *uint16
}

var (
	modShell32           = windows.NewLazySystemDLL("shell32.dll")
	procSHFileOperationW = modShell32.NewProc("SHFileOperationW")
)

// ShellDelete removes path through SHFileOperationW. The recycle bin is
// not used and no dialog is shown. An aborted operation is a failure.
func (b *WindowsBackend) ShellDelete(path string) error {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		return model.ErrUnsupported
	}
	if err := procSHFileOperationW.Find(); err != nil {
		return err
	}

	// pFrom is a list terminated by an empty string. The shell does not
	// accept the \\?\ prefix.
	from, err := windows.UTF16FromString(path)
	if err != nil {
		return err
	}
	from = append(from, 0)

	op := shFileOpStruct{
		Func:  foDelete,
		From:  &from[0],
		Flags: shellDeleteOptions,
	}
	r1, _, _ := procSHFileOperationW.Call(uintptr(unsafe.Pointer(&op)))
	if r1 != 0 {
		return fmt.Errorf("SHFileOperation failed with code 0x%X", r1)
	}
	if op.AnyOperationsAborted != 0 {
		return fmt.Errorf("SHFileOperation was aborted")
	}
	return nil
}
