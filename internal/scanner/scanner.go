// Package scanner walks a target tree and lists its entries in an order
// safe for deletion, without ever descending into junctions or symbolic
// links.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yourusername/locked-folder-removal/internal/logger"
)

// Entry is one file system object found under the root.
type Entry struct {
	Path   string
	IsDir  bool
	IsLink bool // junction, symbolic link or mount point; never descended into
	Depth  int  // 0 for the root
}

// ScanResult contains the results of a directory scan.
type ScanResult struct {
	// Entries are ordered bottom-up: every entry comes before its parent
	// directory and the root comes last.
	Entries    []Entry
	Markers    []string // files whose name is on the marker list
	HotDirs    []string // directories whose name is on the hot list, deepest first
	TotalFiles int
	TotalDirs  int
	TotalLinks int
}

// Scanner handles directory traversal for one root.
type Scanner struct {
	rootPath string
	markers  []string
	hotDirs  []string
}

// NewScanner creates a Scanner. Marker and hot-directory names are matched
// case-insensitively against base names.
func NewScanner(rootPath string, markers, hotDirs []string) *Scanner {
	return &Scanner{
		rootPath: rootPath,
		markers:  markers,
		hotDirs:  hotDirs,
	}
}

// IsLink reports whether mode describes a link the walk must not follow.
// Junctions and mount points are reported as irregular files on Windows.
func IsLink(mode fs.FileMode) bool {
	return mode&(fs.ModeSymlink|fs.ModeIrregular) != 0
}

// Scan walks the tree. Entries that cannot be read are logged and skipped;
// only a failure to read the root itself is returned.
func (s *Scanner) Scan() (*ScanResult, error) {
	info, err := os.Lstat(s.rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	result := &ScanResult{}
	if IsLink(info.Mode()) || !info.IsDir() {
		result.Entries = append(result.Entries, Entry{
			Path:   s.rootPath,
			IsDir:  info.IsDir(),
			IsLink: IsLink(info.Mode()),
		})
		if IsLink(info.Mode()) {
			result.TotalLinks++
		} else {
			result.TotalFiles++
		}
		return result, nil
	}

	var leaves, dirs []Entry
	err = filepath.WalkDir(s.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.rootPath {
				return err
			}
			logger.Debug("cannot access %s: %v", path, err)
			return nil
		}
		depth := s.depth(path)
		name := d.Name()

		switch {
		case IsLink(d.Type()):
			result.TotalLinks++
			leaves = append(leaves, Entry{Path: path, IsLink: true, IsDir: d.IsDir(), Depth: depth})
		case d.IsDir():
			result.TotalDirs++
			dirs = append(dirs, Entry{Path: path, IsDir: true, Depth: depth})
			if path != s.rootPath && matchesName(name, s.hotDirs) {
				result.HotDirs = append(result.HotDirs, path)
			}
		default:
			result.TotalFiles++
			leaves = append(leaves, Entry{Path: path, Depth: depth})
			if matchesName(name, s.markers) {
				result.Markers = append(result.Markers, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	// Files and links first, then directories deepest first. WalkDir visits
	// a directory before its children, so a stable sort by depth keeps
	// siblings in lexical order.
	sort.SliceStable(dirs, func(i, j int) bool { return dirs[i].Depth > dirs[j].Depth })
	sort.SliceStable(result.HotDirs, func(i, j int) bool { return s.depth(result.HotDirs[i]) > s.depth(result.HotDirs[j]) })
	result.Entries = append(leaves, dirs...)

	logger.Debug("scan of %s: %d files, %d directories, %d links",
		s.rootPath, result.TotalFiles, result.TotalDirs, result.TotalLinks)
	return result, nil
}

func (s *Scanner) depth(path string) int {
	rel, err := filepath.Rel(s.rootPath, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

func matchesName(name string, names []string) bool {
	for _, n := range names {
		if strings.EqualFold(name, n) {
			return true
		}
	}
	return false
}
