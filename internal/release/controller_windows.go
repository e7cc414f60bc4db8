//go:build windows

package release

import (
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sys/windows"

	"github.com/yourusername/locked-folder-removal/internal/logger"
	"github.com/yourusername/locked-folder-removal/internal/model"
	"github.com/yourusername/locked-folder-removal/internal/procs"
)

const wmClose = 0x0010

var (
	modUser32        = windows.NewLazySystemDLL("user32.dll")
	procPostMessageW = modUser32.NewProc("PostMessageW")

	// EnumWindows callbacks are never freed, so a single one is shared.
	enumMu       sync.Mutex
	enumPID      uint32
	enumFound    []windows.HWND
	enumCallback = syscall.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
		var pid uint32
		if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err == nil && pid == enumPID {
			enumFound = append(enumFound, hwnd)
		}
		return 1
	})
)

type windowsController struct{}

// NewController returns the Windows ProcessController.
func NewController() ProcessController { return windowsController{} }

func topLevelWindows(pid uint32) []windows.HWND {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumPID = pid
	enumFound = nil
	_ = windows.EnumWindows(enumCallback, nil)
	found := enumFound
	enumFound = nil
	return found
}

// RequestClose posts WM_CLOSE to every top-level window of pid.
func (windowsController) RequestClose(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return procs.Translate(err)
	}
	windows.CloseHandle(h)

	hwnds := topLevelWindows(uint32(pid))
	if len(hwnds) == 0 {
		return ErrNoGracefulPath
	}
	for _, hwnd := range hwnds {
		procPostMessageW.Call(uintptr(hwnd), wmClose, 0, 0)
	}
	return nil
}

func (windowsController) WaitExit(pid int, timeout time.Duration) (bool, error) {
	h, err := windows.OpenProcess(windows.SYNCHRONIZE, false, uint32(pid))
	if err != nil {
		err = procs.Translate(err)
		if errors.Is(err, model.ErrProcessVanished) {
			return true, nil
		}
		return false, err
	}
	defer windows.CloseHandle(h)

	event, err := windows.WaitForSingleObject(h, uint32(timeout.Milliseconds()))
	if err != nil {
		return false, err
	}
	return event == windows.WAIT_OBJECT_0, nil
}

func (windowsController) Kill(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return procs.Translate(err)
	}
	defer windows.CloseHandle(h)

	if err := windows.TerminateProcess(h, 1); err != nil {
		return procs.Translate(err)
	}
	return nil
}

// Launch starts image detached. The shell may already have been restarted
// by the system, in which case nothing is launched.
func (windowsController) Launch(image string) error {
	name := procs.BaseName(image)
	if list, err := procs.List(); err == nil && lo.ContainsBy(list, func(p procs.Process) bool {
		return procs.SameImage(p.Name, name)
	}) {
		logger.Debug("%s is already running, not relaunching", name)
		return nil
	}
	cmd := exec.Command(image)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func (windowsController) ImagePath(pid int) (string, error) {
	return procs.ImagePath(pid)
}
