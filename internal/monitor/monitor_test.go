package monitor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeClock advances on every after() call so waits cost no real time.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func newTestMonitor(states ...bool) (*Monitor, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	m := NewMonitor("vault")
	m.now = clock.Now
	m.after = clock.After
	i := 0
	m.exists = func(string) bool {
		s := states[len(states)-1]
		if i < len(states) {
			s = states[i]
		}
		i++
		return s
	}
	return m, clock
}

func TestWaitAbsentRealPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gone")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	m := NewMonitor(dir)
	m.SetInterval(time.Millisecond)

	if m.WaitAbsent(context.Background(), 0) {
		t.Fatal("existing path reported absent")
	}
	if err := os.Remove(dir); err != nil {
		t.Fatal(err)
	}
	if !m.WaitAbsent(context.Background(), time.Second) {
		t.Fatal("removed path reported present")
	}
}

func TestWaitAbsentWaitsForDelayedRemoval(t *testing.T) {
	m, _ := newTestMonitor(true, true, true, false)
	if !m.WaitAbsent(context.Background(), 5*time.Second) {
		t.Fatal("expected absence once the path went away")
	}
	if got := len(m.GetSamples()); got != 5 {
		t.Errorf("samples = %d, want 5", got)
	}
}

func TestWaitAbsentDetectsReappearance(t *testing.T) {
	m, _ := newTestMonitor(false, true)
	if m.WaitAbsent(context.Background(), time.Second) {
		t.Fatal("a path that came back must not count as absent")
	}
	if !m.Reappeared() {
		t.Error("Reappeared() = false")
	}
}

func TestWaitAbsentIsBounded(t *testing.T) {
	m, clock := newTestMonitor(true)
	start := clock.now
	if m.WaitAbsent(context.Background(), 2*time.Second) {
		t.Fatal("persistent path reported absent")
	}
	if elapsed := clock.now.Sub(start); elapsed < 2*time.Second || elapsed > 2*time.Second+DefaultInterval {
		t.Errorf("waited %s", elapsed)
	}
}

func TestGenerateReport(t *testing.T) {
	m, _ := newTestMonitor(true, false)
	if got := m.GenerateReport(); got != "No samples collected" {
		t.Errorf("empty report = %q", got)
	}
	m.Sample()
	m.Sample()
	report := m.GenerateReport()
	if !strings.Contains(report, "1 present, 1 absent") || !strings.Contains(report, "Final state: absent") {
		t.Errorf("unexpected report:\n%s", report)
	}
}
