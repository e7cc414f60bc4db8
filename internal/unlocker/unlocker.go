// Package unlocker is the entry point of the module: it validates a
// target, runs the deletion cascade and confirms the result.
package unlocker

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/locked-folder-removal/internal/backend"
	"github.com/yourusername/locked-folder-removal/internal/config"
	"github.com/yourusername/locked-folder-removal/internal/deleter"
	"github.com/yourusername/locked-folder-removal/internal/logger"
	"github.com/yourusername/locked-folder-removal/internal/model"
	"github.com/yourusername/locked-folder-removal/internal/monitor"
	"github.com/yourusername/locked-folder-removal/internal/owners"
	"github.com/yourusername/locked-folder-removal/internal/release"
	"github.com/yourusername/locked-folder-removal/internal/safety"
	"github.com/yourusername/locked-folder-removal/internal/services"
)

// Strategy names recorded by the facade itself.
const (
	StrategySafetyCheck  = "safety-check"
	StrategyVerification = "deletion-verification"
)

// Options tune one ResolveAndDelete call.
type Options struct {
	// DeleteContents removes the whole tree. When false only marker files
	// are removed and the cascade is not run.
	DeleteContents bool
	// WaitForDeletionSeconds bounds how long a successful removal is
	// watched for the path to stay gone.
	WaitForDeletionSeconds int
}

// absenceWaiter is the part of monitor.Monitor the facade uses.
type absenceWaiter interface {
	WaitAbsent(ctx context.Context, timeout time.Duration) bool
	Reappeared() bool
}

// Unlocker wires the enumerator, releaser and deleter for the running
// platform.
type Unlocker struct {
	cfg        *config.Config
	deleter    *deleter.Deleter
	enumerator *owners.Enumerator
	newWaiter  func(path string) absenceWaiter
}

// New builds an Unlocker bound to the operating system.
func New(cfg *config.Config) *Unlocker {
	dir := services.NewDirectory()
	enumerator := owners.NewEnumerator(owners.NewPlatform(), dir, cfg)
	releaser := release.New(dir, release.NewController(), cfg)
	u := NewWithDeleter(cfg, deleter.New(backend.NewBackend(), enumerator, releaser, cfg))
	u.enumerator = enumerator
	return u
}

// NewWithDeleter builds an Unlocker around an existing deleter.
func NewWithDeleter(cfg *config.Config, d *deleter.Deleter) *Unlocker {
	return &Unlocker{
		cfg:     cfg,
		deleter: d,
		newWaiter: func(path string) absenceWaiter {
			return monitor.NewMonitor(path)
		},
	}
}

// SetHooks forwards progress callbacks to the deleter.
func (u *Unlocker) SetHooks(h deleter.Hooks) { u.deleter.SetHooks(h) }

// ResolveAndDelete removes path using the default configuration.
func ResolveAndDelete(path, displayName string, opts Options) *model.DeletionResult {
	return New(config.Default()).ResolveAndDelete(path, displayName, opts)
}

// ResolveAndDelete validates the target, then removes it (or only its
// markers) and, after a success, watches the path for up to
// opts.WaitForDeletionSeconds. Failure is always reported in the result.
func (u *Unlocker) ResolveAndDelete(path, displayName string, opts Options) *model.DeletionResult {
	target, err := model.NewTargetResource(path, displayName)
	if err != nil {
		return refused(model.TargetResource{Path: path, DisplayName: displayName}, err)
	}
	if err := safety.Validate(target.Path); err != nil {
		return refused(target, err)
	}

	if !opts.DeleteContents {
		logger.Info("removing markers only from %s", target)
		return u.deleter.CleanMarkers(target)
	}

	logger.Info("removing %s", target)
	result := u.deleter.Delete(target)
	if result.Succeeded && opts.WaitForDeletionSeconds > 0 {
		u.confirm(result, time.Duration(opts.WaitForDeletionSeconds)*time.Second)
	}
	return result
}

// confirm downgrades a success when the path comes back or never goes.
func (u *Unlocker) confirm(result *model.DeletionResult, wait time.Duration) {
	waiter := u.newWaiter(result.Target.Path)
	if waiter.WaitAbsent(context.Background(), wait) {
		return
	}

	reason := fmt.Errorf("%w: %s still exists after %s", model.ErrStrategyFailed, result.Target.Path, wait)
	if waiter.Reappeared() {
		reason = fmt.Errorf("%w: %s reappeared within %s", model.ErrStrategyFailed, result.Target.Path, wait)
	}
	result.Record(StrategyVerification, reason)
	logger.LogAttempt(StrategyVerification, reason)
	result.Succeeded = false
	result.ManualInstructions = deleter.ManualInstructions(result.Target, result.Owners, result.Leftovers)
}

// FindOwners only enumerates the processes holding path open.
func (u *Unlocker) FindOwners(path string) ([]model.LockOwner, error) {
	if u.enumerator == nil {
		return nil, model.ErrUnsupported
	}
	target, err := model.NewTargetResource(path, "")
	if err != nil {
		return nil, err
	}
	return u.enumerator.FindOwners(target), nil
}

func refused(target model.TargetResource, err error) *model.DeletionResult {
	logger.Error("%v", err)
	result := &model.DeletionResult{Target: target}
	result.Record(StrategySafetyCheck, err)
	result.ManualInstructions = fmt.Sprintf(
		"%s was not touched: %v.\nProtected system locations and drive roots are never removed automatically. Check the path and try again.",
		target.Path, err)
	return result
}

// Refused reports whether result was rejected before anything was changed.
func Refused(result *model.DeletionResult) bool {
	first, ok := firstAttempt(result)
	return ok && first.Strategy == StrategySafetyCheck && !first.Succeeded
}

func firstAttempt(result *model.DeletionResult) (model.DeletionAttempt, bool) {
	if result == nil || len(result.Attempts) == 0 {
		return model.DeletionAttempt{}, false
	}
	return result.Attempts[0], true
}
