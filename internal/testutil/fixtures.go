package testutil

import (
	"crypto/rand"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// Well-known parts of a vault fixture.
const (
	VaultMarkerFile = "desktop.ini"
	VaultLogsDir    = "Logs"
	VaultLibsDir    = "Libraries"
)

// Vault is a generated directory tree shaped like a document-management
// vault: a marker file at the root, a busy log directory, a library
// directory, a nested data tree and some read-only files.
type Vault struct {
	Root     string
	Dirs     []string
	Files    []string
	ReadOnly []string
}

// VaultOptions controls vault generation.
type VaultOptions struct {
	// Depth of the nested data tree under Root\Data
	Depth int
	// FilesPerDir written into every generated directory
	FilesPerDir int
	// ReadOnlyEvery marks every n-th file read-only; 0 disables it
	ReadOnlyEvery int
}

// DefaultVaultOptions derives options from the test configuration.
func DefaultVaultOptions(config TestConfig) VaultOptions {
	return VaultOptions{
		Depth:         config.MaxDepth,
		FilesPerDir:   config.MaxFiles / 2,
		ReadOnlyEvery: 3,
	}
}

// CreateVault builds a vault named name inside a fresh temporary directory
// and registers its cleanup.
func CreateVault(t *testing.T, name string, opts VaultOptions) *Vault {
	t.Helper()

	parent := t.TempDir()
	RegisterCleanup(t, parent)

	v, err := BuildVault(filepath.Join(parent, name), opts)
	if err != nil {
		t.Fatalf("failed to build vault: %v", err)
	}
	return v
}

// BuildVault writes a vault tree at root.
func BuildVault(root string, opts VaultOptions) (*Vault, error) {
	v := &Vault{Root: root}

	dirs := []string{
		root,
		filepath.Join(root, VaultLogsDir),
		filepath.Join(root, VaultLibsDir),
	}
	data := filepath.Join(root, "Data")
	for i := 0; i < opts.Depth; i++ {
		data = filepath.Join(data, fmt.Sprintf("level%d", i))
		dirs = append(dirs, data)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		v.Dirs = append(v.Dirs, dir)
		for i := 0; i < opts.FilesPerDir; i++ {
			path := filepath.Join(dir, fmt.Sprintf("file_%d.dat", i))
			if err := writeRandomFile(path, 64+i*32); err != nil {
				return nil, err
			}
			v.Files = append(v.Files, path)
		}
	}

	marker := filepath.Join(root, VaultMarkerFile)
	if err := os.WriteFile(marker, []byte("[.ShellClassInfo]\r\nIconResource=vault.ico,0\r\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to create marker: %w", err)
	}
	v.Files = append(v.Files, marker)

	if opts.ReadOnlyEvery > 0 {
		for i, path := range v.Files {
			if i%opts.ReadOnlyEvery != 0 {
				continue
			}
			if err := os.Chmod(path, 0o444); err != nil {
				return nil, fmt.Errorf("failed to mark %s read-only: %w", path, err)
			}
			v.ReadOnly = append(v.ReadOnly, path)
		}
	}
	return v, nil
}

func writeRandomFile(path string, size int) error {
	content := make([]byte, size)
	if _, err := rand.Read(content); err != nil {
		return fmt.Errorf("failed to generate content: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return nil
}

// CountFiles counts the regular files under dir.
func CountFiles(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			count++
		}
		return nil
	})
	return count, err
}

// Exists reports whether path is present, without following a final link.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
