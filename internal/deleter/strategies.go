package deleter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/yourusername/locked-folder-removal/internal/engine"
	"github.com/yourusername/locked-folder-removal/internal/logger"
	"github.com/yourusername/locked-folder-removal/internal/scanner"
)

// quarantinePrefix names subtrees moved out of the target by the pre-clear.
const quarantinePrefix = ".lfr-quarantine-"

func (s *session) plainDelete() error {
	return s.deleteTree(s.target.Path)
}

// deleteTree scans root and removes it bottom-up through the engine.
func (s *session) deleteTree(root string) error {
	scan, err := scanner.NewScanner(root, nil, nil).Scan()
	if err != nil {
		return err
	}
	res, err := engine.NewEngine(s.d.backend, s.d.workers, s.d.hooks.Deleted).Delete(context.Background(), scan.Entries)
	if err != nil {
		return err
	}
	if res.FailedCount > 0 {
		sort.Slice(res.Errors, func(i, j int) bool { return res.Errors[i].Path < res.Errors[j].Path })
		return fmt.Errorf("%d of %d entries could not be deleted: %s",
			res.FailedCount, len(scan.Entries), res.Errors[0].Error)
	}
	return nil
}

func (s *session) removeLink() error {
	return s.d.backend.RemoveReparsePoint(s.target.Path)
}

func (s *session) shellDelete() error {
	return s.d.backend.ShellDelete(s.target.Path)
}

// hotDirs returns the subdirectories known to stay locked that still
// exist, deepest first.
func (s *session) hotDirs() []string {
	if s.scan == nil {
		return nil
	}
	return lo.Filter(s.scan.HotDirs, func(dir string, _ int) bool { return s.d.exists(dir) })
}

// preclear is step 6: clear every hot subdirectory on its own, then retry
// the plain delete of the whole target.
func (s *session) preclear() error {
	var errs []error
	for _, dir := range s.hotDirs() {
		if err := s.clearSubtree(dir); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.plainDelete(); err != nil {
		return errors.Join(append(errs, err)...)
	}
	return nil
}

// clearSubtree tries a plain delete, then the remove-directory command,
// then moves the subtree out of the target under a unique name and
// deletes it there.
func (s *session) clearSubtree(dir string) error {
	if err := s.deleteTree(dir); err == nil && !s.d.exists(dir) {
		logger.Debug("pre-cleared %s", dir)
		return nil
	} else if err != nil {
		logger.Debug("plain delete of %s failed: %v", dir, err)
	}

	ctx, cancel := s.commandContext()
	out, err := s.d.backend.RemoveTree(ctx, dir)
	cancel()
	if !s.d.exists(dir) {
		logger.Debug("pre-cleared %s with the remove-directory command", dir)
		return nil
	}
	logger.Debug("remove-directory command failed for %s: %v %s", dir, err, out)

	quarantine := filepath.Join(filepath.Dir(s.target.Path), quarantinePrefix+uuid.NewString())
	if err := s.d.rename(dir, quarantine); err != nil {
		return fmt.Errorf("cannot clear %s: %w", dir, err)
	}
	logger.Info("moved %s to %s", dir, quarantine)

	if err := s.deleteTree(quarantine); err != nil || s.d.exists(quarantine) {
		s.leftovers = append(s.leftovers, quarantine)
		logger.Warning("quarantined %s could not be deleted: %v", quarantine, err)
	}
	return nil
}

func (s *session) privilegedDelete() error {
	ctx, cancel := s.commandContext()
	defer cancel()

	out, err := s.d.backend.PrivilegedRemoveTree(ctx, s.target.Path)
	if out != "" {
		logger.Debug("privileged delete output: %s", out)
	}
	return err
}

func (s *session) vendorToolAvailable() bool {
	tool := s.d.cfg.VendorTool
	if !tool.Enabled() {
		return false
	}
	if _, err := s.d.lookPath(tool.Path); err != nil {
		logger.Debug("vendor tool %s is not installed: %v", tool.Path, err)
		return false
	}
	return true
}

func (s *session) vendorTool() error {
	ctx, cancel := s.commandContext()
	defer cancel()

	out, err := s.d.runTool(ctx, s.d.cfg.VendorTool, s.target.Path)
	if out != "" {
		logger.Debug("vendor tool output: %s", out)
	}
	return err
}
