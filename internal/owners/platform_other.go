//go:build !windows

package owners

import (
	"context"

	"github.com/yourusername/locked-folder-removal/internal/config"
	"github.com/yourusername/locked-folder-removal/internal/handles"
	"github.com/yourusername/locked-folder-removal/internal/model"
	"github.com/yourusername/locked-folder-removal/internal/procs"
)

type unsupportedPlatform struct{}

// NewPlatform returns a Platform on which every tier reports
// ErrUnsupported, except the external tool which runs anywhere.
func NewPlatform() Platform { return unsupportedPlatform{} }

func (unsupportedPlatform) CaptureHandles(handles.CaptureOptions) (*handles.Snapshot, error) {
	return handles.Capture(handles.CaptureOptions{})
}

func (unsupportedPlatform) NewResolver(opts handles.ResolverOptions) (handles.Resolver, error) {
	return handles.NewResolver(opts)
}

func (unsupportedPlatform) ProcessName(pid int) (string, bool) { return procs.Name(pid) }

func (unsupportedPlatform) Processes() ([]procs.Process, error) { return procs.List() }

func (unsupportedPlatform) Modules(pid int) ([]string, error) { return procs.Modules(pid) }

func (unsupportedPlatform) LockingPIDs([]string) ([]int, error) { return nil, model.ErrUnsupported }

func (unsupportedPlatform) ShellFolders() ([]ShellFolder, error) { return nil, model.ErrUnsupported }

func (unsupportedPlatform) RunTool(ctx context.Context, tool config.ExternalTool, target string) (string, error) {
	return RunExternalTool(ctx, tool, target)
}
