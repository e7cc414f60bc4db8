// Package procs reads the process table: image names, image paths and the
// modules a process has loaded.
package procs

import (
	"path/filepath"
	"strings"
)

// Process is one entry of the process table.
type Process struct {
	PID         int
	ParentPID   int
	Name        string // Image name, e.g. "explorer.exe"
	ExePath     string // Full image path when known
	CommandLine string // Only filled by sources that expose it
}

// BaseName returns the image name of a full image path.
func BaseName(exePath string) string {
	exePath = strings.ReplaceAll(exePath, `\`, "/")
	return filepath.Base(exePath)
}

// SameImage reports whether two image names refer to the same executable,
// ignoring case and a missing ".exe" suffix.
func SameImage(a, b string) bool {
	trim := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		return strings.TrimSuffix(s, ".exe")
	}
	return trim(a) == trim(b)
}
