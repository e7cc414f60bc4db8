package owners

import (
	"bufio"
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/yourusername/locked-folder-removal/internal/backend"
	"github.com/yourusername/locked-folder-removal/internal/config"
)

// ToolMatch is one line of handle-tool output.
type ToolMatch struct {
	ProcessName string
	PID         int
	Type        string
	Path        string
}

var (
	toolPIDPattern  = regexp.MustCompile(`(?i)\bpid:\s*(\d+)`)
	toolTypePattern = regexp.MustCompile(`(?i)\btype:\s*(\S+)`)
	toolPathPattern = regexp.MustCompile(`\b[0-9A-Fa-f]+:\s+(\S.*)$`)
)

// ParseHandleToolOutput extracts process matches from the text printed by a
// Sysinternals-style handle tool:
//
//	explorer.exe       pid: 4321   type: File           1A4: C:\Vault\Sub
func ParseHandleToolOutput(out string) []ToolMatch {
	var matches []ToolMatch
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		loc := toolPIDPattern.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		pid, err := strconv.Atoi(line[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		m := ToolMatch{
			ProcessName: strings.TrimSpace(line[:loc[0]]),
			PID:         pid,
		}
		rest := line[loc[1]:]
		if t := toolTypePattern.FindStringSubmatchIndex(rest); t != nil {
			m.Type = rest[t[2]:t[3]]
			rest = rest[t[1]:]
		}
		if p := toolPathPattern.FindStringSubmatch(rest); p != nil {
			m.Path = strings.TrimSpace(p[1])
		}
		matches = append(matches, m)
	}
	return matches
}

// RunExternalTool runs a locally installed tool against target and returns
// its combined output.
func RunExternalTool(ctx context.Context, tool config.ExternalTool, target string) (string, error) {
	return backend.RunCommand(ctx, tool.Path, tool.Expand(target)...)
}

// FileURLToPath converts a file:// URL as reported by shell windows into a
// Windows path. Virtual folders have no file URL and yield false.
func FileURLToPath(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Scheme, "file") {
		return "", false
	}
	if u.Host != "" && !strings.EqualFold(u.Host, "localhost") {
		return `\\` + u.Host + strings.ReplaceAll(u.Path, "/", `\`), true
	}
	p := strings.TrimPrefix(u.Path, "/")
	if len(p) < 2 || p[1] != ':' {
		return "", false
	}
	return strings.ReplaceAll(p, "/", `\`), true
}
