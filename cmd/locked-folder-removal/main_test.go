package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/yourusername/locked-folder-removal/internal/testutil"
)

// run executes the CLI with an isolated config file and lock directory.
func run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()

	locks := t.TempDir()
	prevDir, prevWait := lockDir, sessionLockWait
	lockDir = func() (string, error) { return locks, nil }
	sessionLockWait = 0
	t.Cleanup(func() { lockDir, sessionLockWait = prevDir, prevWait })

	full := append([]string{}, args...)
	if len(full) > 0 && !strings.HasPrefix(full[0], "-") {
		full = append(full, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	}

	var out, errOut bytes.Buffer
	code := execute(full, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestDeleteRemovesFolder(t *testing.T) {
	v := testutil.CreateVault(t, "Vault", testutil.VaultOptions{Depth: 2, FilesPerDir: 3, ReadOnlyEvery: 3})

	code, out, stderr := run(t, "", "delete", "--yes", "--json", "--name", "Test vault", v.Root)

	if code != exitOK {
		t.Fatalf("exit code = %d, stderr:\n%s\nstdout:\n%s", code, stderr, out)
	}
	var report struct {
		Path      string `json:"path"`
		Name      string `json:"name"`
		Succeeded bool   `json:"succeeded"`
		Attempts  []struct {
			Strategy  string `json:"strategy"`
			Succeeded bool   `json:"succeeded"`
		} `json:"attempts"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !report.Succeeded || report.Name != "Test vault" || len(report.Attempts) == 0 {
		t.Errorf("report = %+v", report)
	}
	if testutil.Exists(v.Root) {
		t.Error("folder still exists")
	}
}

func TestDeleteMarkersOnlyKeepsFolder(t *testing.T) {
	v := testutil.CreateVault(t, "Vault", testutil.VaultOptions{Depth: 1, FilesPerDir: 2})

	code, out, stderr := run(t, "", "delete", "--yes", "--markers-only", v.Root)

	if code != exitOK {
		t.Fatalf("exit code = %d, stderr:\n%s\nstdout:\n%s", code, stderr, out)
	}
	if !testutil.Exists(v.Root) {
		t.Error("folder was removed")
	}
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	tests := []struct {
		name       string
		stdin      func(root string) string
		wantExists bool
	}{
		{"typed path", func(root string) string { return root + "\n" }, false},
		{"wrong path", func(string) string { return "nope\n" }, true},
		{"no input", func(string) string { return "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := testutil.CreateVault(t, "Vault", testutil.VaultOptions{Depth: 1, FilesPerDir: 1})

			code, out, stderr := run(t, tt.stdin(v.Root), "delete", v.Root)

			if code != exitOK {
				t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
			}
			if !strings.Contains(out, "type the full path") {
				t.Errorf("no prompt in output:\n%s", out)
			}
			if got := testutil.Exists(v.Root); got != tt.wantExists {
				t.Errorf("exists = %v, want %v", got, tt.wantExists)
			}
		})
	}
}

func TestDeleteRefusesDriveRoot(t *testing.T) {
	root := "/"
	if runtime.GOOS == "windows" {
		root = `C:\`
	}

	code, out, _ := run(t, "", "delete", "--yes", "--json", root)

	if code != exitUsage {
		t.Fatalf("exit code = %d, want %d", code, exitUsage)
	}
	if !strings.Contains(out, "safety-check") {
		t.Errorf("report does not name the safety check:\n%s", out)
	}
}

func TestUsageErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"no path", []string{"delete"}},
		{"two paths", []string{"delete", dir, dir}},
		{"unknown flag", []string{"delete", "--bogus", dir}},
		{"json without yes", []string{"delete", "--json", dir}},
		{"negative wait", []string{"delete", "--yes", "--wait", "-1", dir}},
		{"unknown command", []string{"shred", dir}},
		{"owners without path", []string{"owners"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := run(t, "", tt.args...)
			if code != exitUsage {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, exitUsage, stderr)
			}
			if !testutil.Exists(dir) {
				t.Fatal("folder was removed")
			}
		})
	}
}

func TestOwnersPrintsJSON(t *testing.T) {
	dir := t.TempDir()

	code, out, stderr := run(t, "", "owners", "--json", dir)

	if code != exitOK {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	var owners []map[string]any
	if err := json.Unmarshal([]byte(out), &owners); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, out)
	}
	if !testutil.Exists(dir) {
		t.Error("owners changed the folder")
	}
}

func TestSessionLockExcludesSecondSession(t *testing.T) {
	locks := t.TempDir()
	prevDir, prevWait := lockDir, sessionLockWait
	lockDir = func() (string, error) { return locks, nil }
	sessionLockWait = 0
	defer func() { lockDir, sessionLockWait = prevDir, prevWait }()

	target := filepath.Join(t.TempDir(), "Vault")

	unlock, err := acquireSessionLock(target)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := acquireSessionLock(target); err == nil {
		t.Fatal("second session acquired the same lock")
	}
	other, err := acquireSessionLock(target + "-other")
	if err != nil {
		t.Fatalf("lock for another folder: %v", err)
	}
	other()

	unlock()
	again, err := acquireSessionLock(target)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	again()
}

func TestSessionLockPathFoldsCase(t *testing.T) {
	testutil.RapidCheck(t, func(rt *rapid.T) {
		dir := "locks"
		segment := testutil.RapidSegmentGenerator().Draw(rt, "segment")
		target := filepath.Join(string(filepath.Separator)+"data", segment)

		lower := sessionLockPath(dir, strings.ToLower(target))
		upper := sessionLockPath(dir, strings.ToUpper(target))
		if lower != upper {
			rt.Fatalf("%q and %q map to different locks", lower, upper)
		}
		if sessionLockPath(dir, target+"x") == lower {
			rt.Fatalf("distinct folders share lock %q", lower)
		}
		if filepath.Dir(lower) != dir {
			rt.Fatalf("lock %q is outside %q", lower, dir)
		}
	})
}
