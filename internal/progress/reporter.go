// Package progress reports a removal session on the console: a spinner
// while something slow runs and one line per deletion attempt.
package progress

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/yourusername/locked-folder-removal/internal/model"
)

// Reporter prints session progress. It is safe for concurrent use.
type Reporter struct {
	mu        sync.Mutex
	out       io.Writer
	spin      *spinner.Spinner // nil when output is not a terminal
	startTime time.Time
}

// NewReporter creates a Reporter writing to out. The spinner is only used
// when interactive is true.
func NewReporter(out io.Writer, interactive bool) *Reporter {
	r := &Reporter{out: out, startTime: time.Now()}
	if interactive {
		r.spin = spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(out))
	}
	return r
}

// Stage shows what the session is doing now.
func (r *Reporter) Stage(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.spin == nil {
		fmt.Fprintf(r.out, "%s...\n", message)
		return
	}
	r.spin.Lock()
	r.spin.Suffix = " " + message
	r.spin.Unlock()
	if !r.spin.Active() {
		r.spin.Start()
	}
}

// Deleted updates the spinner with a running count of removed entries.
func (r *Reporter) Deleted(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.spin == nil {
		return
	}
	r.spin.Lock()
	r.spin.Suffix = fmt.Sprintf(" Deleting: %s entries removed", formatNumber(count))
	r.spin.Unlock()
}

// Owners lists the processes found holding the target.
func (r *Reporter) Owners(owners []model.LockOwner) {
	r.printLine(func(w io.Writer) {
		if len(owners) == 0 {
			fmt.Fprintln(w, "No lock owners found")
			return
		}
		fmt.Fprintf(w, "Lock owners (%d):\n", len(owners))
		for _, o := range owners {
			fmt.Fprintf(w, "  %s [%s]\n", o, o.Evidence)
		}
	})
}

// Attempt prints the outcome of one deletion strategy.
func (r *Reporter) Attempt(a model.DeletionAttempt) {
	r.printLine(func(w io.Writer) {
		fmt.Fprintln(w, FormatAttempt(a))
	})
}

// FormatAttempt renders an attempt as a single line.
func FormatAttempt(a model.DeletionAttempt) string {
	if a.Succeeded {
		return fmt.Sprintf("  [ok]     %s", a.Strategy)
	}
	if a.FailureReason == "" {
		return fmt.Sprintf("  [failed] %s", a.Strategy)
	}
	return fmt.Sprintf("  [failed] %s: %s", a.Strategy, a.FailureReason)
}

// printLine pauses the spinner so the line is not overwritten.
func (r *Reporter) printLine(write func(io.Writer)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := r.spin != nil && r.spin.Active()
	if active {
		r.spin.Stop()
	}
	write(r.out)
	if active {
		r.spin.Start()
	}
}

// Finish stops the spinner and prints the final result.
func (r *Reporter) Finish(result *model.DeletionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.spin != nil && r.spin.Active() {
		r.spin.Stop()
	}

	fmt.Fprintln(r.out)
	if result.Succeeded {
		fmt.Fprintf(r.out, "Removed %s in %s\n", result.Target, formatDuration(time.Since(r.startTime)))
	} else {
		fmt.Fprintf(r.out, "Could not remove %s after %d attempt(s)\n", result.Target, len(result.Attempts))
	}
	if len(result.Restarts) > 0 {
		fmt.Fprintf(r.out, "Restored: %d service(s)/process(es)\n", len(result.Restarts))
	}
	if result.ManualInstructions != "" {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, result.ManualInstructions)
	}
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int) string {
	str := fmt.Sprintf("%d", n)
	if n < 1000 && n > -1000 {
		return str
	}

	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 && str[i-1] != '-' {
			result += ","
		}
		result += string(c)
	}
	return result
}

// formatDuration formats a duration as "Xh Ym Zs", "Ym Zs" or "Zs".
func formatDuration(d time.Duration) string {
	if d >= time.Duration(math.MaxInt64) {
		return "unknown"
	}
	if d < 0 {
		return "0s"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
