//go:build windows

package backend

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/windows"
)

func TestToExtendedLengthPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{`C:\Vault`, `\\?\C:\Vault`},
		{`\\server\share\Vault`, `\\?\UNC\server\share\Vault`},
		{`\\?\C:\Vault`, `\\?\C:\Vault`},
	}
	for _, tt := range tests {
		if got := toExtendedLengthPath(tt.in); got != tt.want {
			t.Errorf("toExtendedLengthPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWindowsDeleteReadOnlyHiddenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desktop.ini")
	if err := os.WriteFile(path, []byte("[.ShellClassInfo]"), 0o444); err != nil {
		t.Fatal(err)
	}
	p, _ := windows.UTF16PtrFromString(path)
	if err := windows.SetFileAttributes(p, windows.FILE_ATTRIBUTE_READONLY|windows.FILE_ATTRIBUTE_HIDDEN|windows.FILE_ATTRIBUTE_SYSTEM); err != nil {
		t.Fatal(err)
	}

	b := NewWindowsBackend()
	if err := b.DeleteFile(path); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	if _, err := os.Lstat(path); !os.IsNotExist(err) {
		t.Error("file still exists")
	}
}

func TestWindowsDeleteEachMethod(t *testing.T) {
	for _, method := range []DeletionMethod{MethodFileInfo, MethodDeleteOnClose, MethodDeleteAPI} {
		t.Run(method.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "file.dat")
			if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
				t.Fatal(err)
			}
			b := NewWindowsBackend()
			b.SetDeletionMethod(method)
			if err := b.DeleteFile(path); err != nil {
				t.Fatalf("DeleteFile failed: %v", err)
			}
			if _, err := os.Lstat(path); !os.IsNotExist(err) {
				t.Error("file still exists")
			}
		})
	}
}

func TestWindowsShellDelete(t *testing.T) {
	root := filepath.Join(t.TempDir(), "Vault")
	if err := os.MkdirAll(filepath.Join(root, "Logs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "Logs", "a.log"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := NewWindowsBackend().ShellDelete(root); err != nil {
		t.Fatalf("ShellDelete failed: %v", err)
	}
	if _, err := os.Lstat(root); !os.IsNotExist(err) {
		t.Error("tree still exists")
	}
}

func TestPrivilegedCommandWhenElevated(t *testing.T) {
	name, args := privilegedRemoveTreeCommand(`C:\Vault`, true)
	if name != "cmd" || args[len(args)-1] != `C:\Vault` {
		t.Errorf("command = %s %v", name, args)
	}
	name, args = privilegedRemoveTreeCommand(`C:\It's`, false)
	if name != "powershell" || args[len(args)-1] != `Start-Process -FilePath cmd.exe -ArgumentList '/c rd /s /q "C:\It''s"' -Verb RunAs -Wait -WindowStyle Hidden` {
		t.Errorf("command = %s %v", name, args)
	}
}
