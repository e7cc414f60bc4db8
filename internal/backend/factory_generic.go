//go:build !windows

package backend

// newPlatformBackend returns the generic backend. On Windows,
// factory_windows.go provides the implementation instead.
func newPlatformBackend() Backend {
	return NewGenericBackend()
}
