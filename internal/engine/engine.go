// Package engine deletes a scanned tree with a pool of worker goroutines,
// one directory depth at a time so children are always gone before their
// parents are attempted.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/locked-folder-removal/internal/backend"
	"github.com/yourusername/locked-folder-removal/internal/logger"
	"github.com/yourusername/locked-folder-removal/internal/scanner"
)

// DefaultWorkerMultiplier is multiplied by NumCPU to determine the default
// worker count.
const DefaultWorkerMultiplier = 2

// MaxWorkers caps the pool. Locked trees are usually small and a large
// pool only multiplies sharing violations.
const MaxWorkers = 16

// Engine manages parallel deletion of scanner entries.
type Engine struct {
	backend          backend.Backend
	workers          int
	progressCallback func(int)

	// Live counters readable while a deletion runs.
	deleted atomic.Int64
	failed  atomic.Int64
}

// Result contains statistics and errors from a deletion run.
type Result struct {
	DeletedCount    int
	FailedCount     int
	Errors          []FileError
	DurationSeconds float64
}

// FileError represents an error that occurred while deleting one entry.
type FileError struct {
	Path  string
	Error string
}

// NewEngine creates an engine. A workers value of 0 or less selects
// NumCPU * DefaultWorkerMultiplier, capped at MaxWorkers. progressCallback,
// if not nil, is called with the running count after each deletion.
func NewEngine(b backend.Backend, workers int, progressCallback func(int)) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU() * DefaultWorkerMultiplier
		if workers > MaxWorkers {
			workers = MaxWorkers
		}
	}
	return &Engine{
		backend:          b,
		workers:          workers,
		progressCallback: progressCallback,
	}
}

// FilesDeleted returns the current count of deleted entries. Safe to call
// concurrently with Delete.
func (e *Engine) FilesDeleted() int {
	return int(e.deleted.Load())
}

// Delete removes entries, deepest level first. Every level is finished
// before the next one starts. A cancelled context stops the run between
// levels and returns an error together with the partial result.
func (e *Engine) Delete(ctx context.Context, entries []scanner.Entry) (*Result, error) {
	start := time.Now()
	e.deleted.Store(0)
	e.failed.Store(0)

	result := &Result{}
	var errorsMu sync.Mutex

	levels := groupByDepth(entries)
	logger.Debug("deleting %d entries over %d levels with %d workers", len(entries), len(levels), e.workers)

	var runErr error
	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("deletion interrupted: %w", err)
			break
		}
		e.deleteLevel(level, result, &errorsMu)
	}

	result.DeletedCount = int(e.deleted.Load())
	result.FailedCount = int(e.failed.Load())
	result.DurationSeconds = time.Since(start).Seconds()

	logger.Debug("deletion finished: %d succeeded, %d failed in %.2f seconds",
		result.DeletedCount, result.FailedCount, result.DurationSeconds)
	return result, runErr
}

// groupByDepth returns entries split into levels, deepest first.
func groupByDepth(entries []scanner.Entry) [][]scanner.Entry {
	byDepth := make(map[int][]scanner.Entry)
	for _, entry := range entries {
		byDepth[entry.Depth] = append(byDepth[entry.Depth], entry)
	}
	depths := make([]int, 0, len(byDepth))
	for d := range byDepth {
		depths = append(depths, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(depths)))

	levels := make([][]scanner.Entry, 0, len(depths))
	for _, d := range depths {
		levels = append(levels, byDepth[d])
	}
	return levels
}

func (e *Engine) deleteLevel(level []scanner.Entry, result *Result, errorsMu *sync.Mutex) {
	workers := e.workers
	if workers > len(level) {
		workers = len(level)
	}

	work := make(chan scanner.Entry, len(level))
	for _, entry := range level {
		work <- entry
	}
	close(work)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range work {
				if err := e.deleteEntry(entry); err != nil {
					e.failed.Add(1)
					errorsMu.Lock()
					result.Errors = append(result.Errors, FileError{Path: entry.Path, Error: err.Error()})
					errorsMu.Unlock()
					logger.Debug("cannot delete %s: %v", entry.Path, err)
					continue
				}
				n := e.deleted.Add(1)
				if e.progressCallback != nil {
					e.progressCallback(int(n))
				}
			}
		}()
	}
	wg.Wait()
}

// deleteEntry removes one entry. Links are removed as single entries and
// never followed. A failed file or directory delete is retried once after
// stripping its attributes.
func (e *Engine) deleteEntry(entry scanner.Entry) error {
	if entry.IsLink {
		return e.backend.RemoveReparsePoint(entry.Path)
	}

	remove := e.backend.DeleteFile
	if entry.IsDir {
		remove = e.backend.DeleteDirectory
	}
	err := remove(entry.Path)
	if err == nil {
		return nil
	}
	if clearErr := e.backend.ClearAttributes(entry.Path); clearErr != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	if err := remove(entry.Path); err != nil {
		return fmt.Errorf("failed to delete after clearing attributes: %w", err)
	}
	return nil
}
