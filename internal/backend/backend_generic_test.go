//go:build !windows

package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yourusername/locked-folder-removal/internal/model"
	"github.com/yourusername/locked-folder-removal/internal/testutil"
)

func TestGenericDeleteFileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	file := filepath.Join(sub, "a.txt")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := NewGenericBackend()
	if err := b.DeleteDirectory(sub); err == nil {
		t.Error("expected deleting a non-empty directory to fail")
	}
	if err := b.DeleteFile(file); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	if err := b.DeleteDirectory(sub); err != nil {
		t.Fatalf("DeleteDirectory failed: %v", err)
	}
	if testutil.Exists(sub) {
		t.Error("directory still exists")
	}
}

func TestGenericClearAttributesUnlocksReadOnlyDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	dir := t.TempDir()
	locked := filepath.Join(dir, "locked")
	child := filepath.Join(locked, "child.txt")
	if err := os.MkdirAll(locked, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(child, []byte("x"), 0o444); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(locked, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	b := NewGenericBackend()
	if err := b.DeleteFile(child); err == nil {
		t.Fatal("expected deletion inside a read-only directory to fail")
	}
	if err := b.ClearAttributes(locked); err != nil {
		t.Fatalf("ClearAttributes failed: %v", err)
	}
	if err := b.DeleteFile(child); err != nil {
		t.Errorf("DeleteFile after ClearAttributes failed: %v", err)
	}
}

func TestGenericReparsePoints(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	link := filepath.Join(dir, "link")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(target, "keep.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	b := NewGenericBackend()
	if ok, err := b.IsReparsePoint(link); err != nil || !ok {
		t.Errorf("IsReparsePoint(link) = %v, %v", ok, err)
	}
	if ok, err := b.IsReparsePoint(target); err != nil || ok {
		t.Errorf("IsReparsePoint(target) = %v, %v", ok, err)
	}
	if got, err := b.ReparseTarget(link); err != nil || got != target {
		t.Errorf("ReparseTarget = %q, %v", got, err)
	}
	if err := b.RemoveReparsePoint(link); err != nil {
		t.Fatalf("RemoveReparsePoint failed: %v", err)
	}
	if testutil.Exists(link) {
		t.Error("link still exists")
	}
	if !testutil.Exists(filepath.Join(target, "keep.txt")) {
		t.Error("link target contents were removed")
	}
}

func TestGenericShellDeleteUnsupported(t *testing.T) {
	if err := NewGenericBackend().ShellDelete(t.TempDir()); !errors.Is(err, model.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestGenericTreeCommands(t *testing.T) {
	var got []string
	b := NewGenericBackend()
	b.runCommand = func(ctx context.Context, name string, args ...string) (string, error) {
		got = append([]string{name}, args...)
		return "", nil
	}

	if _, err := b.RemoveTree(context.Background(), "/tmp/Vault"); err != nil {
		t.Fatal(err)
	}
	want := []string{"rm", "-rf", "--", "/tmp/Vault"}
	if len(got) != len(want) {
		t.Fatalf("command = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command = %v, want %v", got, want)
			break
		}
	}

	name, args := privilegedRemoveTreeCommand("/tmp/Vault", false)
	if name != "sudo" || args[0] != "-n" || args[len(args)-1] != "/tmp/Vault" {
		t.Errorf("privileged command = %s %v", name, args)
	}
	if name, _ := privilegedRemoveTreeCommand("/tmp/Vault", true); name != "rm" {
		t.Errorf("elevated privileged command = %s", name)
	}
}

func TestRunCommandReportsExitCode(t *testing.T) {
	out, err := RunCommand(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	if err == nil {
		t.Fatal("expected an error")
	}
	if out != "boom" {
		t.Errorf("output = %q", out)
	}
	if want := "sh exited with code 3: boom"; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}
