//go:build windows

package services

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"

	"github.com/yourusername/locked-folder-removal/internal/logger"
	"github.com/yourusername/locked-folder-removal/internal/model"
)

const (
	queryAccess = windows.SERVICE_QUERY_STATUS | windows.SERVICE_QUERY_CONFIG
	stopAccess  = windows.SERVICE_STOP | windows.SERVICE_QUERY_STATUS | windows.SERVICE_ENUMERATE_DEPENDENTS
	startAccess = windows.SERVICE_START | windows.SERVICE_QUERY_STATUS
)

type scmDirectory struct {
	pollInterval time.Duration
	byPID        map[int][]Info // nil until first use, reset after Stop/Start
}

// NewDirectory returns a Directory backed by the local service control
// manager. Queries only need read access; Stop and Start need an elevated
// caller.
func NewDirectory() Directory {
	return &scmDirectory{pollInterval: DefaultPollInterval}
}

// openManager connects with just the rights asked for, unlike mgr.Connect
// which always requests full access.
func openManager(access uint32) (*mgr.Mgr, error) {
	h, err := windows.OpenSCManager(nil, nil, access)
	if err != nil {
		return nil, translate(err)
	}
	return &mgr.Mgr{Handle: h}, nil
}

func openService(m *mgr.Mgr, name string, access uint32) (*mgr.Service, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	h, err := windows.OpenService(m.Handle, p, access)
	if err != nil {
		return nil, translate(err)
	}
	return &mgr.Service{Name: name, Handle: h}, nil
}

func translate(err error) error {
	if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
		return fmt.Errorf("%w: %v", model.ErrAccessDenied, err)
	}
	return err
}

func describe(s *mgr.Service) (Info, error) {
	status, err := s.Query()
	if err != nil {
		return Info{}, translate(err)
	}
	info := Info{Name: s.Name, Running: status.State == svc.Running}
	if status.State != svc.Stopped {
		info.ProcessID = int(status.ProcessId)
	}
	cfg, err := s.Config()
	if err != nil {
		logger.Debug("cannot read config of service %s: %v", s.Name, err)
		return info, nil
	}
	info.AutoStart = cfg.StartType == mgr.StartAutomatic
	return info, nil
}

func (d *scmDirectory) load() error {
	m, err := openManager(windows.SC_MANAGER_CONNECT | windows.SC_MANAGER_ENUMERATE_SERVICE)
	if err != nil {
		return err
	}
	defer m.Disconnect()

	names, err := m.ListServices()
	if err != nil {
		return translate(err)
	}
	d.byPID = make(map[int][]Info)
	for _, name := range names {
		s, err := openService(m, name, queryAccess)
		if err != nil {
			continue
		}
		info, err := describe(s)
		s.Close()
		if err != nil || !info.Running || info.ProcessID == 0 {
			continue
		}
		d.byPID[info.ProcessID] = append(d.byPID[info.ProcessID], info)
	}
	return nil
}

func (d *scmDirectory) ServicesForPID(pid int) ([]Info, error) {
	if d.byPID == nil {
		if err := d.load(); err != nil {
			return nil, err
		}
	}
	return d.byPID[pid], nil
}

func (d *scmDirectory) Lookup(name string) (Info, bool, error) {
	m, err := openManager(windows.SC_MANAGER_CONNECT)
	if err != nil {
		return Info{}, false, err
	}
	defer m.Disconnect()

	s, err := openService(m, name, queryAccess)
	if err != nil {
		if errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST) {
			return Info{}, false, nil
		}
		return Info{}, false, err
	}
	defer s.Close()
	info, err := describe(s)
	if err != nil {
		return Info{}, false, err
	}
	return info, true, nil
}

func (d *scmDirectory) Stop(name string, timeout time.Duration) ([]string, error) {
	d.byPID = nil
	m, err := openManager(windows.SC_MANAGER_CONNECT)
	if err != nil {
		return nil, err
	}
	defer m.Disconnect()

	var dependents []string
	err = d.stop(m, name, timeout, 0, &dependents)
	return dependents, err
}

// stop stops the active dependents of name first, one level deep per
// recursion, then name itself. Dependents that stopped are appended to
// stopped.
func (d *scmDirectory) stop(m *mgr.Mgr, name string, timeout time.Duration, depth int, stopped *[]string) error {
	s, err := openService(m, name, stopAccess)
	if err != nil {
		return err
	}
	defer s.Close()

	if depth < 3 {
		dependents, err := s.ListDependentServices(svc.Active)
		if err != nil {
			logger.Debug("cannot list dependents of %s: %v", name, err)
		}
		for _, dep := range dependents {
			logger.Info("stopping dependent service %s of %s", dep, name)
			if err := d.stop(m, dep, timeout, depth+1, stopped); err != nil {
				logger.Warning("dependent service %s did not stop: %v", dep, err)
				continue
			}
			*stopped = append(*stopped, dep)
		}
	}

	if _, err := s.Control(svc.Stop); err != nil {
		switch {
		case errors.Is(err, windows.ERROR_SERVICE_NOT_ACTIVE):
			return nil
		case errors.Is(err, windows.ERROR_SERVICE_CANNOT_ACCEPT_CTRL):
			// Already stopping; fall through to the wait.
		default:
			return translate(err)
		}
	}

	done, err := pollUntil(timeout, d.pollInterval, time.Sleep, func() (bool, error) {
		status, err := s.Query()
		if err != nil {
			return false, translate(err)
		}
		return status.State == svc.Stopped, nil
	})
	if err != nil {
		return err
	}
	if !done {
		return &TimeoutError{Service: name, Wanted: "stopped", Waited: timeout}
	}
	return nil
}

func (d *scmDirectory) Start(name string) error {
	d.byPID = nil
	m, err := openManager(windows.SC_MANAGER_CONNECT)
	if err != nil {
		return err
	}
	defer m.Disconnect()

	s, err := openService(m, name, startAccess)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Start(); err != nil && !errors.Is(err, windows.ERROR_SERVICE_ALREADY_RUNNING) {
		return translate(err)
	}
	return nil
}
