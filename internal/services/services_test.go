package services

import (
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestPollUntilDone(t *testing.T) {
	var slept time.Duration
	calls := 0
	done, err := pollUntil(time.Second, 100*time.Millisecond, func(d time.Duration) { slept += d }, func() (bool, error) {
		calls++
		return calls == 3, nil
	})
	if err != nil || !done {
		t.Fatalf("pollUntil = (%v, %v), want (true, nil)", done, err)
	}
	if slept != 200*time.Millisecond {
		t.Errorf("slept %s, want 200ms", slept)
	}
}

func TestPollUntilPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := pollUntil(time.Second, time.Millisecond, func(time.Duration) {}, func() (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the check error, got %v", err)
	}
}

// The total simulated wait never exceeds the timeout by more than one poll
// interval, and a check that never completes always ends in a timeout.
func TestPollUntilIsBounded(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		timeout := time.Duration(rapid.IntRange(0, 60_000).Draw(rt, "timeoutMs")) * time.Millisecond
		interval := time.Duration(rapid.IntRange(1, 5_000).Draw(rt, "intervalMs")) * time.Millisecond

		var slept time.Duration
		done, err := pollUntil(timeout, interval, func(d time.Duration) { slept += d }, func() (bool, error) {
			return false, nil
		})
		if err != nil || done {
			rt.Fatalf("expected a timeout, got (%v, %v)", done, err)
		}
		if slept > timeout+interval {
			rt.Fatalf("slept %s for timeout %s and interval %s", slept, timeout, interval)
		}
	})
}

func TestMatchesAny(t *testing.T) {
	names := []string{"WSearch", "Audiosrv"}
	if !MatchesAny("wsearch", names) {
		t.Error("match must ignore case")
	}
	if MatchesAny("WSearchX", names) {
		t.Error("partial names must not match")
	}
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := &TimeoutError{Service: "Spooler", Wanted: "stopped", Waited: 30 * time.Second}
	if got := err.Error(); got != "service Spooler did not reach state stopped within 30s" {
		t.Errorf("unexpected message %q", got)
	}
}
