// Package safety refuses targets whose removal would damage the system:
// drive roots, protected system directories and any parent of one. It
// also holds the interactive confirmation used by the command line.
package safety

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/yourusername/locked-folder-removal/internal/logger"
	"github.com/yourusername/locked-folder-removal/internal/model"
)

// ProtectedPaths contains system-critical paths that are never removed.
// Environment-derived locations are added by protectedPaths.
var ProtectedPaths = []string{
	"C:\\Windows",
	"C:\\Program Files",
	"C:\\Program Files (x86)",
	"C:\\ProgramData",
	"C:\\Users",
	"C:\\System Volume Information",
	"C:\\$Recycle.Bin",
	"/bin",
	"/sbin",
	"/usr",
	"/lib",
	"/lib64",
	"/etc",
	"/boot",
	"/sys",
	"/proc",
	"/dev",
	"/home",
	"/root",
}

// protectedEnv names variables whose values are protected as well.
var protectedEnv = []string{"SystemRoot", "ProgramFiles", "ProgramFiles(x86)", "ProgramData", "USERPROFILE", "HOME"}

func protectedPaths() []string {
	paths := append([]string(nil), ProtectedPaths...)
	for _, name := range protectedEnv {
		if v := os.Getenv(name); v != "" {
			paths = append(paths, v)
		}
	}
	return paths
}

// UnsafePathError explains why a target was refused.
type UnsafePathError struct {
	Path   string
	Reason string
}

func (e *UnsafePathError) Error() string {
	return fmt.Sprintf("refusing to remove %s: %s", e.Path, e.Reason)
}

// Validate returns an *UnsafePathError when path must not be removed. A
// path that does not exist is not unsafe.
func Validate(path string) error {
	if ok, reason := IsSafePath(path); !ok {
		return &UnsafePathError{Path: path, Reason: reason}
	}
	return nil
}

// IsSafePath checks path against drive roots and the protected list,
// rejecting the protected paths themselves and every parent of one.
// Subdirectories of protected paths are allowed.
//
// Returns (isSafe, reason) where reason explains why the path is unsafe.
func IsSafePath(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "path is empty"
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		logger.Warning("Cannot resolve absolute path for: %s (error: %v)", path, err)
		return false, fmt.Sprintf("cannot resolve absolute path: %v", err)
	}

	logger.Debug("Validating path safety: %s", absPath)

	if isDriveRoot(absPath) {
		logger.Warning("Path is a drive root: %s", absPath)
		return false, "path is a drive root"
	}

	for _, protected := range protectedPaths() {
		protectedAbs, err := filepath.Abs(protected)
		if err != nil {
			continue
		}
		if pathsMatch(absPath, protectedAbs) {
			logger.Warning("Path is protected system directory: %s", absPath)
			return false, fmt.Sprintf("path is protected system directory: %s", protected)
		}
		if isParentOf(absPath, protectedAbs) {
			logger.Warning("Path contains protected system directory: %s (contains %s)", absPath, protected)
			return false, fmt.Sprintf("path contains protected system directory: %s", protected)
		}
	}

	logger.Debug("Path is safe to delete: %s", absPath)
	return true, ""
}

// isDriveRoot checks if a path is a drive root (C:\, a UNC share root or /).
func isDriveRoot(path string) bool {
	cleanPath := filepath.Clean(path)

	if runtime.GOOS == "windows" {
		if len(cleanPath) == 3 && cleanPath[1] == ':' && (cleanPath[2] == '\\' || cleanPath[2] == '/') {
			return true
		}
		if len(cleanPath) == 2 && cleanPath[1] == ':' {
			return true
		}
		// \\server\share
		if vol := filepath.VolumeName(cleanPath); vol != "" && strings.TrimRight(cleanPath, `\/`) == vol {
			return true
		}
		return false
	}
	return cleanPath == "/"
}

// isParentOf checks if parent is a proper ancestor of child. The
// comparison is case-insensitive on Windows and case-sensitive elsewhere.
func isParentOf(parent, child string) bool {
	parent = filepath.Clean(parent)
	child = filepath.Clean(child)

	if !strings.HasSuffix(parent, string(filepath.Separator)) {
		parent += string(filepath.Separator)
	}

	if runtime.GOOS == "windows" {
		return strings.HasPrefix(strings.ToLower(child), strings.ToLower(parent))
	}
	return strings.HasPrefix(child, parent)
}

// pathsMatch compares two paths for equality, respecting OS conventions.
func pathsMatch(path1, path2 string) bool {
	clean1 := filepath.Clean(path1)
	clean2 := filepath.Clean(path2)

	if runtime.GOOS == "windows" {
		return strings.EqualFold(clean1, clean2)
	}
	return clean1 == clean2
}

// GetUserConfirmation shows what a session is about to stop and delete and
// asks the user to type the target path back. force skips the prompt.
func GetUserConfirmation(in io.Reader, out io.Writer, target model.TargetResource, owners []model.LockOwner, force bool) bool {
	if force {
		logger.Debug("Confirmation skipped for %s", target.Path)
		return true
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "About to remove %s\n", target)
	if len(owners) > 0 {
		fmt.Fprintln(out, "The following processes hold it open and may be stopped:")
		for _, o := range owners {
			fmt.Fprintf(out, "   %s\n", o)
		}
	}
	fmt.Fprintln(out, "This action CANNOT be undone!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "To confirm, please type the full path exactly as shown above:")
	fmt.Fprint(out, "> ")

	reader := bufio.NewReader(in)
	userInput, err := reader.ReadString('\n')
	if err != nil && userInput == "" {
		logger.Warning("Failed to read user input: %v", err)
		return false
	}
	userInput = strings.TrimSpace(userInput)

	if !pathsMatch(target.Path, userInput) {
		fmt.Fprintln(out, "Path mismatch. Nothing was changed.")
		logger.Info("User confirmation failed: path mismatch")
		return false
	}
	logger.Info("User confirmed removal of %s", target.Path)
	return true
}
