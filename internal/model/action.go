package model

import "fmt"

// ActionKind tags a ReleaseAction.
type ActionKind int

const (
	// ActionStopService asks the service control manager to stop a service.
	ActionStopService ActionKind = iota
	// ActionTerminateProcess stops a process, gracefully first and forcibly
	// if the graceful request does not complete in time.
	ActionTerminateProcess
	// ActionRestartProcess relaunches an image by name once deletion is over.
	ActionRestartProcess
	// ActionStartService starts a service that was stopped by this session.
	ActionStartService
)

// String returns the string representation of the action kind.
func (k ActionKind) String() string {
	switch k {
	case ActionStopService:
		return "stop-service"
	case ActionTerminateProcess:
		return "terminate-process"
	case ActionRestartProcess:
		return "restart-process"
	case ActionStartService:
		return "start-service"
	default:
		return "unknown"
	}
}

// ReleaseAction is one step of a release plan or of the restore list.
// Only the fields relevant to Kind are set.
type ReleaseAction struct {
	Kind        ActionKind
	ProcessID   int
	ProcessName string // Image name, also the relaunch target for ActionRestartProcess
	ServiceName string
}

// StopService returns a stop action for a service hosted by pid.
func StopService(name string, pid int, processName string) ReleaseAction {
	return ReleaseAction{Kind: ActionStopService, ServiceName: name, ProcessID: pid, ProcessName: processName}
}

// TerminateProcess returns a terminate action.
func TerminateProcess(pid int, processName string) ReleaseAction {
	return ReleaseAction{Kind: ActionTerminateProcess, ProcessID: pid, ProcessName: processName}
}

// RestartProcess returns a relaunch action for an image name.
func RestartProcess(imageName string) ReleaseAction {
	return ReleaseAction{Kind: ActionRestartProcess, ProcessName: imageName}
}

// StartService returns a start action for a service.
func StartService(name string) ReleaseAction {
	return ReleaseAction{Kind: ActionStartService, ServiceName: name}
}

func (a ReleaseAction) String() string {
	switch a.Kind {
	case ActionStopService:
		return fmt.Sprintf("StopService(%s)", a.ServiceName)
	case ActionTerminateProcess:
		return fmt.Sprintf("TerminateProcess(%d %s)", a.ProcessID, a.ProcessName)
	case ActionRestartProcess:
		return fmt.Sprintf("RestartProcess(%s)", a.ProcessName)
	case ActionStartService:
		return fmt.Sprintf("StartService(%s)", a.ServiceName)
	default:
		return "Unknown()"
	}
}

// ReleasePlan is an ordered list of actions built fresh for each session.
// A process id appears in at most one StopService or TerminateProcess entry.
type ReleasePlan struct {
	Actions []ReleaseAction
	Skipped []SkippedOwner
}

// SkippedOwner records an owner the planner refused to touch.
type SkippedOwner struct {
	Owner  LockOwner
	Reason string
}

// ReleaseOutcome is what executing a plan produced. Restarts must be run
// after the deletion cascade finishes, whatever its result.
type ReleaseOutcome struct {
	AllReleased bool
	Executed    []ReleaseAction
	Failed      []ReleaseAction
	Restarts    []ReleaseAction
}
