package progress

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/yourusername/locked-folder-removal/internal/model"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.in); got != tt.want {
			t.Errorf("formatNumber(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + time.Minute + time.Second, "2h 1m 1s"},
		{time.Duration(math.MaxInt64), "unknown"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatAttempt(t *testing.T) {
	tests := []struct {
		in   model.DeletionAttempt
		want string
	}{
		{model.DeletionAttempt{Strategy: "plain-delete", Succeeded: true}, "  [ok]     plain-delete"},
		{model.DeletionAttempt{Strategy: "shell-delete"}, "  [failed] shell-delete"},
		{model.DeletionAttempt{Strategy: "shell-delete", FailureReason: "aborted"}, "  [failed] shell-delete: aborted"},
	}
	for _, tt := range tests {
		if got := FormatAttempt(tt.in); got != tt.want {
			t.Errorf("FormatAttempt(%+v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReporterNonInteractive(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, false)

	r.Stage("Finding lock owners")
	r.Owners([]model.LockOwner{{ProcessID: 7, ProcessName: "sync.exe", Evidence: "handle-table"}})
	r.Deleted(5)
	r.Attempt(model.DeletionAttempt{Strategy: "plain-delete", Succeeded: true})
	r.Finish(&model.DeletionResult{
		Target:    model.TargetResource{Path: "/data/Vault", DisplayName: "Vault"},
		Succeeded: true,
		Attempts:  []model.DeletionAttempt{{Strategy: "plain-delete", Succeeded: true}},
	})

	text := out.String()
	for _, want := range []string{
		"Finding lock owners...",
		"sync.exe (PID 7) [handle-table]",
		"[ok]     plain-delete",
		"Removed Vault (/data/Vault)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestReporterFinishFailure(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, false)
	r.Finish(&model.DeletionResult{
		Target:             model.TargetResource{Path: "/data/Vault", DisplayName: "Vault"},
		Attempts:           make([]model.DeletionAttempt, 3),
		ManualInstructions: "1. Reboot",
	})
	if !strings.Contains(out.String(), "after 3 attempt(s)") || !strings.Contains(out.String(), "1. Reboot") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}
