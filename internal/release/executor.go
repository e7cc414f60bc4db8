package release

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/yourusername/locked-folder-removal/internal/logger"
	"github.com/yourusername/locked-folder-removal/internal/model"
)

// Execute carries out plan: service stops first, each with its own bounded
// wait, then graceful close requests, then forced kills for whatever is
// still running when the grace period ends, then the settle delay. The
// returned Restarts must be handed to Restore after deletion, whatever its
// outcome.
func (r *Releaser) Execute(plan model.ReleasePlan) model.ReleaseOutcome {
	var out model.ReleaseOutcome
	stopped := make(map[string]bool)
	terminated := make(map[int]bool)

	// Dependents were running before we stopped them and the service
	// manager does not start them again with their parent.
	var dependentRestarts []model.ReleaseAction
	for _, a := range byKind(plan.Actions, model.ActionStopService) {
		dependents, err := r.services.Stop(a.ServiceName, r.cfg.Timeouts.ServiceStop.Std())
		for i := len(dependents) - 1; i >= 0; i-- {
			logger.Info("dependent service %s of %s was stopped", dependents[i], a.ServiceName)
			dependentRestarts = append(dependentRestarts, model.StartService(dependents[i]))
		}
		if r.record(&out, a, err) {
			stopped[strings.ToLower(a.ServiceName)] = true
		}
	}

	var waiting, stragglers []model.ReleaseAction
	for _, a := range byKind(plan.Actions, model.ActionTerminateProcess) {
		err := ErrNoGracefulPath
		// A close request to the shell reaches the desktop window, which
		// answers with the shut down dialog.
		if !matchesImage(a.ProcessName, r.cfg.ShellProcesses) {
			err = r.processes.RequestClose(a.ProcessID)
		}
		switch {
		case err == nil:
			waiting = append(waiting, a)
		case errors.Is(err, model.ErrProcessVanished):
			terminated[a.ProcessID] = r.record(&out, a, err)
		default:
			if !errors.Is(err, ErrNoGracefulPath) {
				logger.Debug("graceful close of pid %d failed: %v", a.ProcessID, err)
			}
			stragglers = append(stragglers, a)
		}
	}

	deadline := r.now().Add(r.cfg.Timeouts.GracefulStop.Std())
	for _, a := range waiting {
		remaining := deadline.Sub(r.now())
		if remaining < 0 {
			remaining = 0
		}
		exited, err := r.processes.WaitExit(a.ProcessID, remaining)
		if err == nil && exited {
			terminated[a.ProcessID] = r.record(&out, a, nil)
			continue
		}
		logger.Debug("pid %d did not exit within the grace period", a.ProcessID)
		stragglers = append(stragglers, a)
	}

	for _, a := range stragglers {
		terminated[a.ProcessID] = r.record(&out, a, r.processes.Kill(a.ProcessID))
	}

	if len(out.Executed) > 0 {
		r.sleep(r.cfg.Timeouts.SettleDelay.Std())
	}

	for _, a := range plan.Actions {
		switch {
		case a.Kind == model.ActionStartService && stopped[strings.ToLower(a.ServiceName)]:
			out.Restarts = append(out.Restarts, a)
		case a.Kind == model.ActionRestartProcess && terminated[a.ProcessID]:
			out.Restarts = append(out.Restarts, a)
		}
	}
	out.Restarts = append(out.Restarts, dependentRestarts...)
	out.AllReleased = len(out.Failed) == 0 && len(plan.Skipped) == 0
	return out
}

// Release plans and executes in one step.
func (r *Releaser) Release(owners []model.LockOwner) (model.ReleasePlan, model.ReleaseOutcome) {
	plan := r.Plan(owners)
	return plan, r.Execute(plan)
}

// Restore starts stopped services and relaunches terminated shells. Every
// action is attempted; failures are joined into the returned error.
func (r *Releaser) Restore(restarts []model.ReleaseAction) error {
	var errs []error
	for _, a := range restarts {
		var err error
		switch a.Kind {
		case model.ActionStartService:
			err = r.services.Start(a.ServiceName)
		case model.ActionRestartProcess:
			err = r.processes.Launch(a.ProcessName)
		default:
			continue
		}
		if err != nil {
			logger.Warning("%s failed: %v", a, err)
			errs = append(errs, fmt.Errorf("%s: %w", a, err))
			continue
		}
		logger.Info("%s done", a)
	}
	return errors.Join(errs...)
}

// record files a into out and reports whether it counts as released. A
// process that vanished on its own is released.
func (r *Releaser) record(out *model.ReleaseOutcome, a model.ReleaseAction, err error) bool {
	if err == nil || errors.Is(err, model.ErrProcessVanished) {
		logger.Info("%s done", a)
		out.Executed = append(out.Executed, a)
		return true
	}
	logger.Warning("%s failed: %v", a, err)
	out.Failed = append(out.Failed, a)
	return false
}

func byKind(actions []model.ReleaseAction, kind model.ActionKind) []model.ReleaseAction {
	return lo.Filter(actions, func(a model.ReleaseAction, _ int) bool { return a.Kind == kind })
}
