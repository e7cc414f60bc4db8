//go:build !windows

package handles

import "github.com/yourusername/locked-folder-removal/internal/model"

// Capture is only implemented on Windows.
func Capture(opts CaptureOptions) (*Snapshot, error) {
	return nil, model.ErrUnsupported
}

// EnablePrivileges is a no-op outside Windows.
func EnablePrivileges() error { return nil }

// LoadDeviceMap returns an empty map outside Windows.
func LoadDeviceMap() *DeviceMap { return NewDeviceMap(nil) }

// NewResolver is only implemented on Windows.
func NewResolver(opts ResolverOptions) (Resolver, error) {
	return nil, model.ErrUnsupported
}
