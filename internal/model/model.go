// Package model holds the types shared by every stage of a lock-resolution
// session: the target being removed, the processes holding it, the release
// plan built for them and the record of each deletion attempt.
package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SystemProcessID is the kernel's "System" pseudo-process. It owns handles
// for every driver and can never be stopped.
const SystemProcessID = 4

// TargetResource is the directory a session tries to remove.
// It is created by the caller and never modified during the session.
type TargetResource struct {
	Path        string // Absolute path of the directory
	DisplayName string // Human-meaningful name used in diagnostics
}

// NewTargetResource builds a TargetResource with a cleaned absolute path.
// An empty display name defaults to the last path element.
func NewTargetResource(path, displayName string) (TargetResource, error) {
	if strings.TrimSpace(path) == "" {
		return TargetResource{}, fmt.Errorf("target path is empty")
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return TargetResource{}, fmt.Errorf("cannot resolve absolute path for %s: %w", path, err)
	}
	if displayName == "" {
		displayName = filepath.Base(abs)
	}
	return TargetResource{Path: abs, DisplayName: displayName}, nil
}

// String returns "DisplayName (Path)".
func (t TargetResource) String() string {
	return fmt.Sprintf("%s (%s)", t.DisplayName, t.Path)
}

// LockOwner is a process found holding (or suspected of holding) a handle
// under the target. Owners are deduplicated by ProcessID and are never
// cached across sessions because process ids get reused.
type LockOwner struct {
	ProcessID           int
	ProcessName         string
	IsService           bool
	ServiceName         string // Empty unless IsService
	AutoRestartEligible bool   // Service start mode is automatic
	Evidence            string // Which enumeration method reported this owner
}

func (o LockOwner) String() string {
	if o.IsService {
		return fmt.Sprintf("%s (PID %d, service %s)", o.ProcessName, o.ProcessID, o.ServiceName)
	}
	return fmt.Sprintf("%s (PID %d)", o.ProcessName, o.ProcessID)
}

// ProcessPlaceholderName is used when a process exits before its image name
// could be read.
func ProcessPlaceholderName(pid int) string {
	return fmt.Sprintf("Process_%d", pid)
}
