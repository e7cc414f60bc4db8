//go:build windows

package backend

// newPlatformBackend returns the Windows backend with automatic method
// selection. On other platforms, factory_generic.go provides the
// implementation instead.
func newPlatformBackend() Backend {
	return NewWindowsBackend()
}
