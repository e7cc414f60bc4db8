// Package services talks to the service control manager: which services a
// process hosts, how they start, and stopping and starting them with a
// bounded wait.
package services

import (
	"fmt"
	"strings"
	"time"
)

// DefaultPollInterval is how often a pending stop is re-queried.
const DefaultPollInterval = 250 * time.Millisecond

// Info describes one installed service.
type Info struct {
	Name      string
	ProcessID int  // Host process, 0 when not running
	Running   bool
	AutoStart bool // Start type is automatic
}

// Directory is the subset of the service control manager the session needs.
type Directory interface {
	// ServicesForPID returns the running services hosted by pid.
	ServicesForPID(pid int) ([]Info, error)
	// Lookup returns the service called name. The bool is false when no
	// such service is installed.
	Lookup(name string) (Info, bool, error)
	// Stop stops the running dependents of the service, then the service
	// itself, waiting up to timeout for each. It returns the dependents it
	// stopped, deepest first, even when the service itself did not stop.
	Stop(name string, timeout time.Duration) ([]string, error)
	// Start starts the service. Starting a running service is not an error.
	Start(name string) error
}

// TimeoutError is returned when a service does not reach the wanted state
// in time.
type TimeoutError struct {
	Service string
	Wanted  string
	Waited  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("service %s did not reach state %s within %s", e.Service, e.Wanted, e.Waited)
}

// pollUntil calls check every interval until it reports done, returns an
// error, or timeout elapses. It returns false on timeout.
func pollUntil(timeout, interval time.Duration, sleep func(time.Duration), check func() (bool, error)) (bool, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	var waited time.Duration
	for {
		done, err := check()
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}
		if waited >= timeout {
			return false, nil
		}
		sleep(interval)
		waited += interval
	}
}

// MatchesAny reports whether name equals one of names, ignoring case.
func MatchesAny(name string, names []string) bool {
	for _, n := range names {
		if strings.EqualFold(name, n) {
			return true
		}
	}
	return false
}
