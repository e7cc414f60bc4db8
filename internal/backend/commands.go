package backend

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// RunCommand runs name with args and returns its combined output. A
// command killed because ctx expired reports the context error.
func RunCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return output, fmt.Errorf("%s: %w", name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && output != "" {
			return output, fmt.Errorf("%s exited with code %d: %s", name, exitErr.ExitCode(), firstLine(output))
		}
		return output, fmt.Errorf("%s: %w", name, err)
	}
	return output, nil
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
