// Package monitor watches a deleted path after the fact. Deletion on
// Windows is asynchronous when other handles were open with delete
// sharing, and sync agents sometimes recreate a folder they were watching,
// so a strategy's success is only trusted once the path stays gone.
package monitor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/locked-folder-removal/internal/logger"
)

// DefaultInterval is the polling interval used by WaitAbsent.
const DefaultInterval = 250 * time.Millisecond

// Sample is one observation of the watched path.
type Sample struct {
	Timestamp time.Time
	Exists    bool
}

// Monitor polls a single path.
type Monitor struct {
	mu       sync.RWMutex
	path     string
	interval time.Duration
	samples  []Sample

	exists func(string) bool
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
}

// NewMonitor creates a monitor for path.
func NewMonitor(path string) *Monitor {
	return &Monitor{
		path:     path,
		interval: DefaultInterval,
		exists:   pathExists,
		now:      time.Now,
		after:    time.After,
	}
}

// SetInterval overrides the polling interval.
func (m *Monitor) SetInterval(d time.Duration) {
	if d > 0 {
		m.interval = d
	}
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Sample records and returns the current state of the path.
func (m *Monitor) Sample() Sample {
	s := Sample{Timestamp: m.now(), Exists: m.exists(m.path)}
	m.mu.Lock()
	m.samples = append(m.samples, s)
	m.mu.Unlock()
	return s
}

// WaitAbsent polls until the path has been absent for two consecutive
// samples or timeout elapses, and reports whether it ended absent. A zero
// timeout takes a single sample.
func (m *Monitor) WaitAbsent(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		return !m.Sample().Exists
	}

	deadline := m.now().Add(timeout)
	absentRun := 0
	for {
		if m.Sample().Exists {
			absentRun = 0
		} else {
			absentRun++
			if absentRun >= 2 {
				return true
			}
		}

		if !m.now().Before(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return absentRun > 0
		case <-m.after(m.interval):
		}
	}

	absent := absentRun > 0
	if !absent {
		logger.Warning("%s still exists after waiting %s", m.path, timeout)
	}
	return absent
}

// GetSamples returns a copy of every recorded sample.
func (m *Monitor) GetSamples() []Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Sample, len(m.samples))
	copy(result, m.samples)
	return result
}

// Reappeared reports whether the path was seen absent and then present
// again.
func (m *Monitor) Reappeared() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seenAbsent := false
	for _, s := range m.samples {
		if !s.Exists {
			seenAbsent = true
		} else if seenAbsent {
			return true
		}
	}
	return false
}

// GenerateReport summarizes the samples for diagnostics.
func (m *Monitor) GenerateReport() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.samples) == 0 {
		return "No samples collected"
	}

	present := 0
	for _, s := range m.samples {
		if s.Exists {
			present++
		}
	}
	first, last := m.samples[0], m.samples[len(m.samples)-1]

	var b strings.Builder
	fmt.Fprintf(&b, "Path: %s\n", m.path)
	fmt.Fprintf(&b, "Samples: %d over %s (%d present, %d absent)\n",
		len(m.samples), last.Timestamp.Sub(first.Timestamp).Round(time.Millisecond), present, len(m.samples)-present)
	if last.Exists {
		b.WriteString("Final state: present\n")
	} else {
		b.WriteString("Final state: absent\n")
	}
	return b.String()
}
