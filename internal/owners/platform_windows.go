//go:build windows

package owners

import (
	"context"
	"sync"

	"github.com/yourusername/locked-folder-removal/internal/config"
	"github.com/yourusername/locked-folder-removal/internal/handles"
	"github.com/yourusername/locked-folder-removal/internal/logger"
	"github.com/yourusername/locked-folder-removal/internal/procs"
)

type windowsPlatform struct {
	privileges sync.Once
}

// NewPlatform returns the Windows implementation of Platform.
func NewPlatform() Platform {
	return &windowsPlatform{}
}

func (p *windowsPlatform) CaptureHandles(opts handles.CaptureOptions) (*handles.Snapshot, error) {
	p.privileges.Do(func() {
		if err := handles.EnablePrivileges(); err != nil {
			logger.Debug("cannot enable debug and backup privileges: %v", err)
		}
	})
	return handles.Capture(opts)
}

func (p *windowsPlatform) NewResolver(opts handles.ResolverOptions) (handles.Resolver, error) {
	return handles.NewResolver(opts)
}

func (p *windowsPlatform) ProcessName(pid int) (string, bool) {
	return procs.Name(pid)
}

// Processes prefers WMI because it exposes image paths and command lines
// of processes we cannot open; Toolhelp is the fallback.
func (p *windowsPlatform) Processes() ([]procs.Process, error) {
	list, err := queryWin32Processes()
	if err == nil {
		return list, nil
	}
	logger.Debug("WMI process query failed, using Toolhelp: %v", err)
	return procs.List()
}

func (p *windowsPlatform) Modules(pid int) ([]string, error) {
	return procs.Modules(pid)
}

func (p *windowsPlatform) LockingPIDs(files []string) ([]int, error) {
	return restartManagerPIDs(files)
}

func (p *windowsPlatform) ShellFolders() ([]ShellFolder, error) {
	return shellWindowFolders()
}

func (p *windowsPlatform) RunTool(ctx context.Context, tool config.ExternalTool, target string) (string, error) {
	return RunExternalTool(ctx, tool, target)
}
