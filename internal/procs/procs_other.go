//go:build !windows

package procs

import "github.com/yourusername/locked-folder-removal/internal/model"

// ImagePath is only implemented on Windows.
func ImagePath(pid int) (string, error) { return "", model.ErrUnsupported }

// Name is only implemented on Windows.
func Name(pid int) (string, bool) { return "", false }

// List is only implemented on Windows.
func List() ([]Process, error) { return nil, model.ErrUnsupported }

// Modules is only implemented on Windows.
func Modules(pid int) ([]string, error) { return nil, model.ErrUnsupported }

// Translate returns err unchanged.
func Translate(err error) error { return err }
