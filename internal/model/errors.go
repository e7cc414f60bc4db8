package model

import (
	"errors"
	"fmt"
)

var (
	// ErrKernelQuery means a variable-length kernel query could not complete
	// within its retry bound.
	ErrKernelQuery = errors.New("kernel query failed")

	// ErrAccessDenied means the caller lacks the privilege to open a
	// process, service or handle. The candidate is skipped.
	ErrAccessDenied = errors.New("access denied")

	// ErrProcessVanished means the process exited between enumeration and
	// action. It counts as already released.
	ErrProcessVanished = errors.New("process vanished")

	// ErrStrategyFailed is returned by a single deletion strategy.
	ErrStrategyFailed = errors.New("deletion strategy failed")

	// ErrAllStrategiesExhausted is the terminal cascade failure.
	ErrAllStrategiesExhausted = errors.New("all deletion strategies exhausted")

	// ErrUnsupported is returned by platform hooks that do not exist on the
	// running operating system.
	ErrUnsupported = errors.New("not supported on this platform")
)

// KernelQueryError carries the detail of an exhausted grow-and-retry loop.
type KernelQueryError struct {
	Query      string // Name of the query, e.g. "SystemExtendedHandleInformation"
	Attempts   int
	LastStatus uint32 // Raw NTSTATUS of the last attempt
	LastSize   int    // Buffer size used on the last attempt
}

func (e *KernelQueryError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts (last status 0x%08X, buffer %d bytes)",
		e.Query, e.Attempts, e.LastStatus, e.LastSize)
}

// Is lets errors.Is(err, ErrKernelQuery) match.
func (e *KernelQueryError) Is(target error) bool {
	return target == ErrKernelQuery
}
