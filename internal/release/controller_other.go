//go:build !windows

package release

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/yourusername/locked-folder-removal/internal/model"
)

const exitPollInterval = 100 * time.Millisecond

type signalController struct{}

// NewController returns a ProcessController that uses SIGTERM for close
// requests and SIGKILL for forced kills.
func NewController() ProcessController { return signalController{} }

func signal(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("%w: pid %d", model.ErrProcessVanished, pid)
		}
		if errors.Is(err, syscall.EPERM) {
			return fmt.Errorf("%w: pid %d", model.ErrAccessDenied, pid)
		}
		return err
	}
	return nil
}

func (signalController) RequestClose(pid int) error { return signal(pid, syscall.SIGTERM) }

func (signalController) WaitExit(pid int, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := signal(pid, syscall.Signal(0)); err != nil {
			if errors.Is(err, model.ErrProcessVanished) {
				return true, nil
			}
			return false, err
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(exitPollInterval)
	}
}

func (signalController) Kill(pid int) error { return signal(pid, syscall.SIGKILL) }

func (signalController) Launch(image string) error {
	cmd := exec.Command(image)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func (signalController) ImagePath(pid int) (string, error) {
	path, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return "", model.ErrUnsupported
	}
	return path, nil
}
