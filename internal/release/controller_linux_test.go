//go:build linux

package release

import (
	"os/exec"
	"testing"
	"time"
)

func TestSignalControllerStopsChild(t *testing.T) {
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	cmd := exec.Command(path, "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start child: %v", err)
	}
	go cmd.Wait()

	ctl := NewController()
	pid := cmd.Process.Pid

	if exited, err := ctl.WaitExit(pid, 0); err != nil || exited {
		t.Fatalf("child reported as exited before any request: %v %v", exited, err)
	}
	if err := ctl.RequestClose(pid); err != nil {
		t.Fatalf("RequestClose failed: %v", err)
	}
	exited, err := ctl.WaitExit(pid, 5*time.Second)
	if err != nil || !exited {
		t.Fatalf("child did not exit after SIGTERM: %v %v", exited, err)
	}
}
