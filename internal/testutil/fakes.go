package testutil

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/locked-folder-removal/internal/model"
	"github.com/yourusername/locked-folder-removal/internal/services"
)

// FakeServices is an in-memory service directory.
type FakeServices struct {
	mu        sync.Mutex
	installed map[string]*services.Info
	order     []string
	lastPID   map[string]int

	// StopErr and StartErr make Stop or Start fail for the named service.
	StopErr  map[string]error
	StartErr map[string]error

	// Dependents lists, per service, the services that depend on it. Stop
	// stops the running ones first.
	Dependents map[string][]string

	// OnStop runs after a successful Stop, e.g. to release a fake lock.
	OnStop func(name string)

	Stopped []string
	Started []string
}

// NewFakeServices installs infos.
func NewFakeServices(infos ...services.Info) *FakeServices {
	f := &FakeServices{
		installed:  make(map[string]*services.Info),
		lastPID:    make(map[string]int),
		StopErr:    make(map[string]error),
		StartErr:   make(map[string]error),
		Dependents: make(map[string][]string),
	}
	for _, info := range infos {
		info := info
		key := strings.ToLower(info.Name)
		f.installed[key] = &info
		f.order = append(f.order, key)
	}
	return f
}

func (f *FakeServices) ServicesForPID(pid int) ([]services.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var hosted []services.Info
	for _, key := range f.order {
		info := f.installed[key]
		if info.Running && info.ProcessID == pid {
			hosted = append(hosted, *info)
		}
	}
	return hosted, nil
}

func (f *FakeServices) Lookup(name string) (services.Info, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.installed[strings.ToLower(name)]
	if !ok {
		return services.Info{}, false, nil
	}
	return *info, true, nil
}

func (f *FakeServices) Stop(name string, timeout time.Duration) ([]string, error) {
	var dependents []string
	err := f.stop(name, &dependents)
	return dependents, err
}

func (f *FakeServices) stop(name string, stopped *[]string) error {
	f.mu.Lock()
	key := strings.ToLower(name)
	var running []string
	for _, dep := range f.Dependents[key] {
		if info, ok := f.installed[strings.ToLower(dep)]; ok && info.Running {
			running = append(running, dep)
		}
	}
	f.mu.Unlock()

	for _, dep := range running {
		if err := f.stop(dep, stopped); err != nil {
			continue
		}
		*stopped = append(*stopped, dep)
	}

	f.mu.Lock()
	if err := f.StopErr[key]; err != nil {
		f.mu.Unlock()
		return err
	}
	info, ok := f.installed[key]
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("service %s is not installed", name)
	}
	f.lastPID[key] = info.ProcessID
	info.Running = false
	info.ProcessID = 0
	f.Stopped = append(f.Stopped, name)
	hook := f.OnStop
	f.mu.Unlock()

	if hook != nil {
		hook(name)
	}
	return nil
}

func (f *FakeServices) Start(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(name)
	if err := f.StartErr[key]; err != nil {
		return err
	}
	info, ok := f.installed[key]
	if !ok {
		return fmt.Errorf("service %s is not installed", name)
	}
	info.Running = true
	info.ProcessID = f.lastPID[key]
	f.Started = append(f.Started, name)
	return nil
}

// FakeProcess is one process known to FakeProcesses.
type FakeProcess struct {
	PID     int
	Name    string
	Image   string
	Refuses bool // ignores graceful close requests
}

// FakeProcesses is an in-memory process controller. Its method set matches
// release.ProcessController.
type FakeProcesses struct {
	mu    sync.Mutex
	alive map[int]FakeProcess

	// OnExit runs whenever a process goes away.
	OnExit func(pid int)

	CloseRequested []int
	Killed         []int
	Launched       []string
}

// NewFakeProcesses registers running processes.
func NewFakeProcesses(list ...FakeProcess) *FakeProcesses {
	f := &FakeProcesses{alive: make(map[int]FakeProcess)}
	for _, p := range list {
		f.alive[p.PID] = p
	}
	return f
}

// Alive reports whether pid is still running.
func (f *FakeProcesses) Alive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.alive[pid]
	return ok
}

func (f *FakeProcesses) exit(pid int) {
	delete(f.alive, pid)
	if f.OnExit != nil {
		hook := f.OnExit
		f.mu.Unlock()
		hook(pid)
		f.mu.Lock()
	}
}

func (f *FakeProcesses) RequestClose(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.alive[pid]
	if !ok {
		return fmt.Errorf("%w: pid %d", model.ErrProcessVanished, pid)
	}
	f.CloseRequested = append(f.CloseRequested, pid)
	if !p.Refuses {
		f.exit(pid)
	}
	return nil
}

func (f *FakeProcesses) WaitExit(pid int, timeout time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, running := f.alive[pid]
	return !running, nil
}

func (f *FakeProcesses) Kill(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.alive[pid]; !ok {
		return fmt.Errorf("%w: pid %d", model.ErrProcessVanished, pid)
	}
	f.Killed = append(f.Killed, pid)
	f.exit(pid)
	return nil
}

func (f *FakeProcesses) Launch(image string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Launched = append(f.Launched, image)
	return nil
}

func (f *FakeProcesses) ImagePath(pid int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.alive[pid]
	if !ok {
		return "", fmt.Errorf("%w: pid %d", model.ErrProcessVanished, pid)
	}
	if p.Image != "" {
		return p.Image, nil
	}
	return p.Name, nil
}
