// Package deleter removes a locked directory tree.
//
// Deletion runs as a fixed cascade that stops at the first strategy after
// which the path is verifiably gone:
//
//  1. strip read-only, hidden and system attributes and delete marker files
//  2. find lock owners and release them (repeated up to MaxReleaseCycles)
//  3. plain recursive delete (skipped for a reparse point)
//  4. single-entry removal of a reparse point, never following it
//  5. shell-level delete
//  6. pre-clear of subdirectories that tend to stay locked, then step 3 again
//  7. privileged command-line delete
//  8. vendor administration tool, when one is installed
//
// When all of them fail the result carries manual recovery instructions.
// Services and processes stopped in step 2 are restored whatever the
// outcome.
package deleter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/samber/lo"

	"github.com/yourusername/locked-folder-removal/internal/backend"
	"github.com/yourusername/locked-folder-removal/internal/config"
	"github.com/yourusername/locked-folder-removal/internal/logger"
	"github.com/yourusername/locked-folder-removal/internal/model"
	"github.com/yourusername/locked-folder-removal/internal/scanner"
)

// Strategy names recorded in DeletionAttempt.Strategy.
const (
	StrategyPlain      = "plain-delete"
	StrategyReparse    = "reparse-point-delete"
	StrategyShell      = "shell-delete"
	StrategyPreclear   = "subdirectory-preclear"
	StrategyPrivileged = "privileged-command-delete"
	StrategyVendorTool = "vendor-tool-delete"
	StrategyMarkers    = "marker-cleanup"
)

// OwnerFinder reports the processes holding a target open.
type OwnerFinder interface {
	FindOwners(target model.TargetResource) []model.LockOwner
}

// Releaser stops lock owners and later puts them back.
type Releaser interface {
	Release(owners []model.LockOwner) (model.ReleasePlan, model.ReleaseOutcome)
	Restore(restarts []model.ReleaseAction) error
}

// Hooks let a caller follow a session. Every field is optional.
type Hooks struct {
	Stage   func(message string)
	Owners  func(owners []model.LockOwner)
	Attempt func(attempt model.DeletionAttempt)
	Deleted func(count int)
}

// Deleter runs the cascade. A Deleter holds no per-session state and may
// be reused; each Delete call is independent.
type Deleter struct {
	backend  backend.Backend
	owners   OwnerFinder
	releaser Releaser
	cfg      *config.Config
	hooks    Hooks
	workers  int

	runTool  func(ctx context.Context, tool config.ExternalTool, target string) (string, error)
	lookPath func(file string) (string, error)
	exists   func(path string) bool
	rename   func(oldpath, newpath string) error
}

// New wires a Deleter. owners and releaser may be nil, in which case lock
// resolution is skipped.
func New(b backend.Backend, owners OwnerFinder, releaser Releaser, cfg *config.Config) *Deleter {
	return &Deleter{
		backend:  b,
		owners:   owners,
		releaser: releaser,
		cfg:      cfg,
		runTool:  runExternalTool,
		lookPath: exec.LookPath,
		exists:   pathExists,
		rename:   os.Rename,
	}
}

// SetHooks installs progress callbacks.
func (d *Deleter) SetHooks(h Hooks) { d.hooks = h }

// SetWorkers sets the worker count of the recursive delete; 0 selects the
// engine default.
func (d *Deleter) SetWorkers(n int) { d.workers = n }

func runExternalTool(ctx context.Context, tool config.ExternalTool, target string) (string, error) {
	return backend.RunCommand(ctx, tool.Path, tool.Expand(target)...)
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Delete removes target. It never returns an error: failure is reported
// through the result, together with manual instructions.
func (d *Deleter) Delete(target model.TargetResource) *model.DeletionResult {
	s := &session{d: d, target: target, result: &model.DeletionResult{Target: target}}

	if !d.exists(target.Path) {
		logger.Info("%s does not exist, nothing to delete", target.Path)
		s.result.Succeeded = true
		return s.result
	}
	defer s.restore()

	s.prepare()
	succeeded := s.run()
	s.result.Leftovers = s.leftovers
	if succeeded {
		s.result.Succeeded = true
		logger.Info("removed %s", target)
		if len(s.leftovers) > 0 {
			logger.Warning("%d folder(s) moved out of %s are still on disk", len(s.leftovers), target.Path)
			s.result.ManualInstructions = LeftoverInstructions(target, s.leftovers)
		}
		return s.result
	}

	s.result.ManualInstructions = ManualInstructions(target, s.result.Owners, s.leftovers)
	logger.Error("%v: %s", model.ErrAllStrategiesExhausted, target)
	return s.result
}

// CleanMarkers only removes marker files and strips the attributes that
// make the directory a shell namespace folder. The tree itself stays.
func (d *Deleter) CleanMarkers(target model.TargetResource) *model.DeletionResult {
	s := &session{d: d, target: target, result: &model.DeletionResult{Target: target}}

	if !d.exists(target.Path) {
		logger.Info("%s does not exist, no markers to remove", target.Path)
		s.result.Succeeded = true
		return s.result
	}

	s.stage("Removing marker files")
	scan, err := scanner.NewScanner(target.Path, d.cfg.MarkerFiles, nil).Scan()
	if err != nil {
		s.record(StrategyMarkers, err)
		return s.result
	}

	var errs []error
	if err := d.backend.ClearAttributes(target.Path); err != nil {
		errs = append(errs, err)
	}
	for _, marker := range scan.Markers {
		if err := d.backend.ClearAttributes(marker); err != nil {
			logger.Debug("cannot clear attributes of %s: %v", marker, err)
		}
		if err := d.backend.DeleteFile(marker); err != nil {
			errs = append(errs, err)
		}
	}
	logger.Info("removed %d marker file(s) from %s", len(scan.Markers)-len(errs), target.Path)

	s.result.Succeeded = s.record(StrategyMarkers, errors.Join(errs...)).Succeeded
	return s.result
}

// session is the state of one Delete call.
type session struct {
	d        *Deleter
	target   model.TargetResource
	result   *model.DeletionResult
	scan     *scanner.ScanResult
	isLink   bool
	restarts []model.ReleaseAction

	// leftovers are quarantined subtrees that could not be deleted.
	leftovers []string
}

func (s *session) stage(message string) {
	logger.Debug("%s: %s", s.target.Path, message)
	if s.d.hooks.Stage != nil {
		s.d.hooks.Stage(message)
	}
}

// run executes steps 2 to 8 and reports whether the target is gone.
func (s *session) run() bool {
	if s.isLink {
		s.resolveLocks()
		if s.attempt(StrategyReparse, s.removeLink) {
			return true
		}
		// rd /s and rm -rf both remove a link without following it; the
		// other strategies might recurse into the link's target.
		return s.attempt(StrategyPrivileged, s.privilegedDelete)
	}

	cycles := s.d.cfg.MaxReleaseCycles
	if cycles < 1 {
		cycles = 1
	}
	for cycle := 1; ; cycle++ {
		found := s.resolveLocks()
		if s.attempt(StrategyPlain, s.plainDelete) {
			return true
		}
		if found == 0 || cycle >= cycles {
			break
		}
		logger.Info("%s is still locked after release cycle %d, retrying", s.target.Path, cycle)
	}

	if s.attempt(StrategyShell, s.shellDelete) {
		return true
	}
	if len(s.hotDirs()) > 0 && s.attempt(StrategyPreclear, s.preclear) {
		return true
	}
	if s.attempt(StrategyPrivileged, s.privilegedDelete) {
		return true
	}
	if s.vendorToolAvailable() && s.attempt(StrategyVendorTool, s.vendorTool) {
		return true
	}
	return false
}

// attempt runs one strategy and records it. Success means the path is
// gone afterwards, whatever the strategy itself returned.
func (s *session) attempt(strategy string, run func() error) bool {
	s.stage(strategy)
	err := run()
	switch {
	case !s.d.exists(s.target.Path):
		if err != nil {
			logger.Debug("%s reported %v but %s is gone", strategy, err, s.target.Path)
		}
		err = nil
	case err == nil:
		err = fmt.Errorf("%w: %s still exists", model.ErrStrategyFailed, s.target.Path)
	}
	return s.record(strategy, err).Succeeded
}

func (s *session) record(strategy string, err error) model.DeletionAttempt {
	a := s.result.Record(strategy, err)
	logger.LogAttempt(strategy, err)
	if s.d.hooks.Attempt != nil {
		s.d.hooks.Attempt(a)
	}
	return a
}

// prepare is step 1. It is not an attempt and its failures only log.
func (s *session) prepare() {
	isLink, err := s.d.backend.IsReparsePoint(s.target.Path)
	if err != nil {
		logger.Debug("cannot read reparse attribute of %s: %v", s.target.Path, err)
	}
	s.isLink = isLink
	if isLink {
		if linkTarget, err := s.d.backend.ReparseTarget(s.target.Path); err == nil {
			logger.Info("%s is a link to %s; only the link will be removed", s.target.Path, linkTarget)
		} else {
			logger.Info("%s is a reparse point; only the link will be removed", s.target.Path)
		}
		return
	}

	s.stage("Clearing attributes and marker files")
	scan, err := scanner.NewScanner(s.target.Path, s.d.cfg.MarkerFiles, s.d.cfg.HotSubdirectories).Scan()
	if err != nil {
		logger.Warning("cannot scan %s: %v", s.target.Path, err)
		return
	}
	s.scan = scan

	failed := 0
	for _, entry := range scan.Entries {
		if entry.IsLink {
			continue
		}
		if err := s.d.backend.ClearAttributes(entry.Path); err != nil {
			failed++
			logger.Debug("cannot clear attributes of %s: %v", entry.Path, err)
		}
	}
	for _, marker := range scan.Markers {
		if err := s.d.backend.DeleteFile(marker); err != nil {
			logger.Debug("cannot delete marker %s: %v", marker, err)
		}
	}
	if failed > 0 {
		logger.Warning("could not clear attributes of %d of %d entries", failed, len(scan.Entries))
	}
}

// resolveLocks is step 2. It returns how many owners were found.
func (s *session) resolveLocks() int {
	if s.d.owners == nil {
		return 0
	}

	s.stage("Finding lock owners")
	owners := s.d.owners.FindOwners(s.target)
	s.result.Owners = lo.UniqBy(append(s.result.Owners, owners...), func(o model.LockOwner) int {
		return o.ProcessID
	})
	if s.d.hooks.Owners != nil {
		s.d.hooks.Owners(owners)
	}
	if len(owners) == 0 {
		logger.Info("no lock owners found for %s", s.target.Path)
		return 0
	}
	if s.d.releaser == nil {
		return len(owners)
	}

	s.stage(fmt.Sprintf("Releasing %d lock owner(s)", len(owners)))
	plan, outcome := s.d.releaser.Release(owners)
	s.restarts = append(s.restarts, outcome.Restarts...)
	if !outcome.AllReleased {
		logger.Warning("release incomplete: %d action(s) failed, %d owner(s) skipped",
			len(outcome.Failed), len(plan.Skipped))
	}
	return len(owners)
}

// restore runs every scheduled restart exactly once.
func (s *session) restore() {
	restarts := lo.UniqBy(s.restarts, func(a model.ReleaseAction) string { return a.String() })
	s.result.Restarts = restarts
	if len(restarts) == 0 || s.d.releaser == nil {
		return
	}

	s.stage("Restoring stopped services and processes")
	if err := s.d.releaser.Restore(restarts); err != nil {
		logger.Warning("restore incomplete: %v", err)
	}
}

func (s *session) commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.d.cfg.Timeouts.Command.Std())
}
