package release

import (
	"sort"

	"github.com/samber/lo"

	"github.com/yourusername/locked-folder-removal/internal/logger"
	"github.com/yourusername/locked-folder-removal/internal/model"
	"github.com/yourusername/locked-folder-removal/internal/procs"
	"github.com/yourusername/locked-folder-removal/internal/services"
)

const serviceHostImage = "svchost.exe"

// actionRank orders a plan: stops, then terminations, then the deferred
// restore actions.
var actionRank = map[model.ActionKind]int{
	model.ActionStopService:      0,
	model.ActionTerminateProcess: 1,
	model.ActionRestartProcess:   2,
	model.ActionStartService:     3,
}

// Plan classifies each owner and returns the release plan. Owners are
// deduplicated by process id. Restore actions are part of the plan and are
// only carried out by Restore when the matching stop succeeded.
func (r *Releaser) Plan(owners []model.LockOwner) model.ReleasePlan {
	var plan model.ReleasePlan
	unique := lo.UniqBy(owners, func(o model.LockOwner) int { return o.ProcessID })
	for _, owner := range unique {
		actions, reason := r.classify(owner)
		if reason != "" {
			logger.LogSkipped(owner.ProcessID, owner.ProcessName, reason)
			plan.Skipped = append(plan.Skipped, model.SkippedOwner{Owner: owner, Reason: reason})
			continue
		}
		plan.Actions = append(plan.Actions, actions...)
	}
	sort.SliceStable(plan.Actions, func(i, j int) bool {
		return actionRank[plan.Actions[i].Kind] < actionRank[plan.Actions[j].Kind]
	})
	return plan
}

func (r *Releaser) classify(owner model.LockOwner) ([]model.ReleaseAction, string) {
	if owner.ProcessID <= model.SystemProcessID || matchesImage(owner.ProcessName, r.cfg.ProtectedProcesses) {
		return nil, ReasonProtected
	}

	if hosted := r.hostedServices(owner); len(hosted) > 0 {
		svc, ok := r.pickService(owner, hosted)
		if !ok {
			return nil, ReasonSharedHost
		}
		actions := []model.ReleaseAction{model.StopService(svc.Name, owner.ProcessID, owner.ProcessName)}
		if svc.AutoStart {
			actions = append(actions, model.StartService(svc.Name))
		}
		return actions, ""
	}
	if procs.SameImage(owner.ProcessName, serviceHostImage) {
		return nil, ReasonServiceHost
	}

	terminate := model.TerminateProcess(owner.ProcessID, owner.ProcessName)
	if matchesImage(owner.ProcessName, r.cfg.ShellProcesses) {
		restart := model.RestartProcess(r.imageFor(owner))
		restart.ProcessID = owner.ProcessID
		return []model.ReleaseAction{terminate, restart}, ""
	}
	return []model.ReleaseAction{terminate}, ""
}

// hostedServices asks the service directory which services run in the
// owner's process, falling back to what enumeration already learned.
func (r *Releaser) hostedServices(owner model.LockOwner) []services.Info {
	hosted, err := r.services.ServicesForPID(owner.ProcessID)
	if err != nil {
		logger.Debug("cannot map pid %d to services: %v", owner.ProcessID, err)
	}
	if len(hosted) == 0 && owner.IsService && owner.ServiceName != "" {
		hosted = []services.Info{{
			Name:      owner.ServiceName,
			ProcessID: owner.ProcessID,
			Running:   true,
			AutoStart: owner.AutoRestartEligible,
		}}
	}
	return hosted
}

// pickService chooses which service to stop. A process hosting several
// services is only stopped through one on the offending list.
func (r *Releaser) pickService(owner model.LockOwner, hosted []services.Info) (services.Info, bool) {
	if len(hosted) == 1 {
		return hosted[0], true
	}
	offending := lo.Filter(hosted, func(s services.Info, _ int) bool {
		return services.MatchesAny(s.Name, r.cfg.OffendingServices)
	})
	if len(offending) == 0 {
		return services.Info{}, false
	}
	if named, ok := lo.Find(offending, func(s services.Info) bool {
		return services.MatchesAny(s.Name, []string{owner.ServiceName})
	}); ok {
		return named, true
	}
	return offending[0], true
}

func (r *Releaser) imageFor(owner model.LockOwner) string {
	path, err := r.processes.ImagePath(owner.ProcessID)
	if err != nil || path == "" {
		logger.Debug("cannot read image path of pid %d, relaunching by name: %v", owner.ProcessID, err)
		return owner.ProcessName
	}
	return path
}

func matchesImage(name string, images []string) bool {
	return lo.ContainsBy(images, func(image string) bool {
		return procs.SameImage(name, image)
	})
}
