//go:build !windows

package services

import (
	"time"

	"github.com/yourusername/locked-folder-removal/internal/model"
)

type noServices struct{}

// NewDirectory returns a Directory that knows no services.
func NewDirectory() Directory { return noServices{} }

func (noServices) ServicesForPID(pid int) ([]Info, error) { return nil, nil }

func (noServices) Lookup(name string) (Info, bool, error) { return Info{}, false, nil }

func (noServices) Stop(name string, timeout time.Duration) ([]string, error) {
	return nil, model.ErrUnsupported
}

func (noServices) Start(name string) error { return model.ErrUnsupported }
