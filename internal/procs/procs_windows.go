//go:build windows

package procs

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/yourusername/locked-folder-removal/internal/model"
)

// ImagePath returns the full image path of pid.
func ImagePath(pid int) (string, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return "", Translate(err)
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", Translate(err)
	}
	return windows.UTF16ToString(buf[:size]), nil
}

// Name returns the image name of pid. The bool is false when the process
// no longer exists.
func Name(pid int) (string, bool) {
	if path, err := ImagePath(pid); err == nil && path != "" {
		return BaseName(path), true
	}
	list, err := List()
	if err != nil {
		return "", false
	}
	for _, p := range list {
		if p.PID == pid {
			return p.Name, true
		}
	}
	return "", false
}

// List walks a Toolhelp process snapshot.
func List() ([]Process, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	var list []Process
	for err = windows.Process32First(snap, &entry); err == nil; err = windows.Process32Next(snap, &entry) {
		list = append(list, Process{
			PID:       int(entry.ProcessID),
			ParentPID: int(entry.ParentProcessID),
			Name:      windows.UTF16ToString(entry.ExeFile[:]),
		})
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return list, fmt.Errorf("Process32Next: %w", err)
	}
	return list, nil
}

// Modules returns the paths of the modules loaded by pid.
func Modules(pid int) ([]string, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, uint32(pid))
	if err != nil {
		return nil, Translate(err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	var modules []string
	for err = windows.Module32First(snap, &entry); err == nil; err = windows.Module32Next(snap, &entry) {
		modules = append(modules, windows.UTF16ToString(entry.ExePath[:]))
	}
	return modules, nil
}

// Translate maps the Win32 errors of process APIs onto the model taxonomy.
// OpenProcess reports ERROR_INVALID_PARAMETER for a pid that has exited.
func Translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
		return fmt.Errorf("%w: %v", model.ErrProcessVanished, err)
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%w: %v", model.ErrAccessDenied, err)
	default:
		return err
	}
}
