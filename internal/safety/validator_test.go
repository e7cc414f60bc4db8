package safety

import (
	"bytes"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/yourusername/locked-folder-removal/internal/model"
)

func TestDriveRootRejected(t *testing.T) {
	root := "/"
	if runtime.GOOS == "windows" {
		root = `C:\`
	}
	if ok, reason := IsSafePath(root); ok || !strings.Contains(reason, "drive root") {
		t.Errorf("IsSafePath(%q) = %v, %q", root, ok, reason)
	}
}

func TestProtectedPathsAndParentsRejected(t *testing.T) {
	for _, protected := range ProtectedPaths {
		// Windows paths are not absolute on Unix and the reverse; only
		// check the ones that mean something here.
		if !filepath.IsAbs(protected) {
			continue
		}
		if ok, _ := IsSafePath(protected); ok {
			t.Errorf("protected path %s accepted", protected)
		}
		if ok, _ := IsSafePath(filepath.Dir(protected)); ok {
			t.Errorf("parent of %s accepted", protected)
		}
	}
}

func TestProtectedSubdirectoryAllowed(t *testing.T) {
	sub := "/usr/local/vault"
	if runtime.GOOS == "windows" {
		sub = `C:\Users\someone\Documents\Vault`
	}
	if ok, reason := IsSafePath(sub); !ok {
		t.Errorf("IsSafePath(%q) rejected: %s", sub, reason)
	}
}

func TestTempVaultAllowed(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Vault")
	if err := Validate(dir); err != nil {
		t.Errorf("Validate(%s) = %v", dir, err)
	}
}

func TestValidateReturnsTypedError(t *testing.T) {
	err := Validate("")
	var unsafe *UnsafePathError
	if !errors.As(err, &unsafe) {
		t.Fatalf("Validate(\"\") = %v, want *UnsafePathError", err)
	}
	if unsafe.Reason != "path is empty" {
		t.Errorf("Reason = %q", unsafe.Reason)
	}
}

func TestIsParentOfNoPartialSegment(t *testing.T) {
	base := filepath.Join(string(filepath.Separator)+"data", "Vault")
	other := filepath.Join(string(filepath.Separator)+"data", "VaultOther")
	if isParentOf(base, other) {
		t.Errorf("%s treated as parent of %s", base, other)
	}
	if !isParentOf(base, filepath.Join(base, "Sub")) {
		t.Errorf("%s not treated as parent of its child", base)
	}
}

func TestGetUserConfirmation(t *testing.T) {
	target := model.TargetResource{Path: filepath.Join(t.TempDir(), "Vault"), DisplayName: "Vault"}
	owners := []model.LockOwner{{ProcessID: 42, ProcessName: "indexer.exe"}}

	tests := []struct {
		name  string
		input string
		force bool
		want  bool
	}{
		{name: "exact path", input: target.Path + "\n", want: true},
		{name: "path without newline", input: target.Path, want: true},
		{name: "mismatch", input: "nope\n", want: false},
		{name: "empty input", input: "", want: false},
		{name: "force", input: "", force: true, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := GetUserConfirmation(strings.NewReader(tt.input), &out, target, owners, tt.force)
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if !tt.force && !strings.Contains(out.String(), "indexer.exe (PID 42)") {
				t.Errorf("prompt does not list owners:\n%s", out.String())
			}
		})
	}
}
