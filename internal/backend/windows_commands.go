//go:build windows

package backend

import (
	"fmt"
	"strings"
)

func removeTreeCommand(path string) (string, []string) {
	return "cmd", []string{"/c", "rd", "/s", "/q", path}
}

// privilegedRemoveTreeCommand runs rd directly when already elevated and
// otherwise through an elevated cmd started by PowerShell, which triggers
// the elevation prompt and waits for the child.
func privilegedRemoveTreeCommand(path string, elevated bool) (string, []string) {
	if elevated {
		return removeTreeCommand(path)
	}
	inner := fmt.Sprintf(`/c rd /s /q "%s"`, path)
	script := fmt.Sprintf(
		"Start-Process -FilePath cmd.exe -ArgumentList '%s' -Verb RunAs -Wait -WindowStyle Hidden",
		strings.ReplaceAll(inner, "'", "''"),
	)
	return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", script}
}
