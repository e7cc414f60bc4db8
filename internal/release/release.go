// Package release turns lock owners into an ordered release plan, carries
// it out and puts back what it stopped once deletion is over.
package release

import (
	"errors"
	"time"

	"github.com/yourusername/locked-folder-removal/internal/config"
	"github.com/yourusername/locked-folder-removal/internal/services"
)

// Reasons recorded for owners the planner refuses to touch.
const (
	ReasonProtected   = "protected system process"
	ReasonSharedHost  = "shared service host without an offending service"
	ReasonServiceHost = "service host with no stoppable service"
)

// ErrNoGracefulPath is returned by RequestClose when the process has no
// window or other channel to receive a close request.
var ErrNoGracefulPath = errors.New("process cannot be asked to close")

// ProcessController is the process-level surface the executor drives.
type ProcessController interface {
	// RequestClose asks pid to exit on its own and returns immediately.
	RequestClose(pid int) error
	// WaitExit waits up to timeout and reports whether pid has exited.
	WaitExit(pid int, timeout time.Duration) (bool, error)
	Kill(pid int) error
	// Launch starts image unless an instance is already running.
	Launch(image string) error
	ImagePath(pid int) (string, error)
}

// Releaser plans and executes the release of lock owners.
type Releaser struct {
	services  services.Directory
	processes ProcessController
	cfg       *config.Config

	sleep func(time.Duration)
	now   func() time.Time
}

// New wires a Releaser.
func New(dir services.Directory, processes ProcessController, cfg *config.Config) *Releaser {
	return &Releaser{
		services:  dir,
		processes: processes,
		cfg:       cfg,
		sleep:     time.Sleep,
		now:       time.Now,
	}
}
