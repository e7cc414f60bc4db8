//go:build windows

package owners

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"golang.org/x/sys/windows"

	"github.com/yourusername/locked-folder-removal/internal/procs"
)

// sFalse is returned by CoInitializeEx when COM is already initialized on
// the thread.
const sFalse = 0x00000001

const win32ProcessQuery = "SELECT ProcessId, ParentProcessId, Name, ExecutablePath, CommandLine FROM Win32_Process"

// withCOM runs fn on a locked OS thread with COM initialized.
func withCOM(fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || oleErr.Code() != sFalse {
			return fmt.Errorf("CoInitializeEx: %w", err)
		}
	}
	defer ole.CoUninitialize()
	return fn()
}

func createDispatch(progID string) (*ole.IDispatch, error) {
	unknown, err := oleutil.CreateObject(progID)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", progID, err)
	}
	defer unknown.Release()
	return unknown.QueryInterface(ole.IID_IDispatch)
}

func stringProperty(d *ole.IDispatch, name string) string {
	v, err := oleutil.GetProperty(d, name)
	if err != nil {
		return ""
	}
	defer v.Clear()
	return v.ToString()
}

func intProperty(d *ole.IDispatch, name string) int64 {
	v, err := oleutil.GetProperty(d, name)
	if err != nil {
		return 0
	}
	defer v.Clear()
	switch n := v.Value().(type) {
	case int32:
		return int64(n)
	case uint32:
		return int64(n)
	case int64:
		return n
	case uint64:
		return int64(n)
	case int:
		return int64(n)
	}
	return 0
}

// queryWin32Processes lists processes through WMI.
func queryWin32Processes() ([]procs.Process, error) {
	var list []procs.Process
	err := withCOM(func() error {
		locator, err := createDispatch("WbemScripting.SWbemLocator")
		if err != nil {
			return err
		}
		defer locator.Release()

		serviceVar, err := oleutil.CallMethod(locator, "ConnectServer")
		if err != nil {
			return fmt.Errorf("ConnectServer: %w", err)
		}
		service := serviceVar.ToIDispatch()
		defer service.Release()

		resultVar, err := oleutil.CallMethod(service, "ExecQuery", win32ProcessQuery)
		if err != nil {
			return fmt.Errorf("ExecQuery: %w", err)
		}
		result := resultVar.ToIDispatch()
		defer result.Release()

		count := int(intProperty(result, "Count"))
		for i := 0; i < count; i++ {
			itemVar, err := oleutil.CallMethod(result, "ItemIndex", i)
			if err != nil {
				continue
			}
			item := itemVar.ToIDispatch()
			if item == nil {
				continue
			}
			list = append(list, procs.Process{
				PID:         int(intProperty(item, "ProcessId")),
				ParentPID:   int(intProperty(item, "ParentProcessId")),
				Name:        stringProperty(item, "Name"),
				ExePath:     stringProperty(item, "ExecutablePath"),
				CommandLine: stringProperty(item, "CommandLine"),
			})
			item.Release()
		}
		return nil
	})
	return list, err
}

// shellWindowFolders lists the folders open in file-manager windows.
func shellWindowFolders() ([]ShellFolder, error) {
	var folders []ShellFolder
	err := withCOM(func() error {
		shell, err := createDispatch("Shell.Application")
		if err != nil {
			return err
		}
		defer shell.Release()

		windowsVar, err := oleutil.CallMethod(shell, "Windows")
		if err != nil {
			return fmt.Errorf("Shell.Windows: %w", err)
		}
		shellWindows := windowsVar.ToIDispatch()
		defer shellWindows.Release()

		count := int(intProperty(shellWindows, "Count"))
		for i := 0; i < count; i++ {
			itemVar, err := oleutil.CallMethod(shellWindows, "Item", i)
			if err != nil {
				continue
			}
			item := itemVar.ToIDispatch()
			if item == nil {
				continue
			}
			location := stringProperty(item, "LocationURL")
			hwnd := intProperty(item, "HWND")
			item.Release()

			path, ok := FileURLToPath(location)
			if !ok {
				continue
			}
			var pid uint32
			if _, err := windows.GetWindowThreadProcessId(windows.HWND(hwnd), &pid); err != nil || pid == 0 {
				continue
			}
			folders = append(folders, ShellFolder{PID: int(pid), Path: path})
		}
		return nil
	})
	return folders, err
}
