package handles

import (
	"sort"
	"strings"
)

// NormalizePath brings a path into the form used for every containment
// check: backslash separated, upper case, without the extended-length or
// object-manager prefix and without a trailing separator.
func NormalizePath(p string) string {
	return strings.ToUpper(cleanPath(p))
}

func cleanPath(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)
	switch {
	case strings.HasPrefix(p, `\\?\UNC\`):
		p = `\\` + p[len(`\\?\UNC\`):]
	case strings.HasPrefix(p, `\\?\`):
		p = p[len(`\\?\`):]
	case strings.HasPrefix(p, `\??\`):
		p = p[len(`\??\`):]
	}
	for len(p) > 2 && strings.HasSuffix(p, `\`) {
		p = p[:len(p)-1]
	}
	return p
}

// comparablePath folds case for drive-letter and UNC paths only. A path
// rooted at "/" lives on a case-sensitive file system.
func comparablePath(p string) string {
	if strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") {
		return cleanPath(p)
	}
	return NormalizePath(p)
}

// IsUnder reports whether path equals target or lies beneath it. Matching
// is by whole path components, so C:\VAULTOTHER is not under C:\VAULT.
func IsUnder(path, target string) bool {
	p := comparablePath(path)
	t := comparablePath(target)
	if t == "" {
		return false
	}
	if p == t {
		return true
	}
	return strings.HasPrefix(p, t+`\`)
}

type devicePrefix struct {
	device string // upper case, no trailing separator
	drive  string // "C:"
}

// DeviceMap translates kernel device paths such as
// \Device\HarddiskVolume3\Vault into drive-letter paths.
type DeviceMap struct {
	prefixes []devicePrefix
}

// NewDeviceMap builds a map from drive letter ("C:") to device path
// ("\Device\HarddiskVolume3").
func NewDeviceMap(drives map[string]string) *DeviceMap {
	m := &DeviceMap{}
	for drive, device := range drives {
		device = strings.TrimRight(strings.ToUpper(device), `\`)
		drive = strings.ToUpper(strings.TrimRight(drive, `\`))
		if device == "" || drive == "" {
			continue
		}
		m.prefixes = append(m.prefixes, devicePrefix{device: device, drive: drive})
	}
	// Longest device first so \Device\HarddiskVolume10 wins over ...Volume1.
	sort.Slice(m.prefixes, func(i, j int) bool {
		if len(m.prefixes[i].device) != len(m.prefixes[j].device) {
			return len(m.prefixes[i].device) > len(m.prefixes[j].device)
		}
		return m.prefixes[i].drive < m.prefixes[j].drive
	})
	return m
}

// Len returns the number of known drives.
func (m *DeviceMap) Len() int { return len(m.prefixes) }

// Translate converts a raw object name into a normalized drive-letter or
// UNC path. It returns false for names that are not file system paths
// (registry keys, named pipes, unmapped volumes).
func (m *DeviceMap) Translate(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	upper := strings.ToUpper(raw)

	for _, unc := range []string{`\DEVICE\MUP\`, `\DEVICE\LANMANREDIRECTOR\`} {
		if strings.HasPrefix(upper, unc) {
			rest := raw[len(unc):]
			// The redirector inserts ";X:0000...\" before server\share.
			if strings.HasPrefix(rest, ";") {
				if i := strings.Index(rest, `\`); i >= 0 {
					rest = rest[i+1:]
				}
			}
			if rest == "" {
				return "", false
			}
			return NormalizePath(`\\` + rest), true
		}
	}

	if strings.HasPrefix(upper, `\??\`) && len(upper) >= 6 && upper[5] == ':' {
		return NormalizePath(raw), true
	}

	if m != nil {
		for _, p := range m.prefixes {
			if !strings.HasPrefix(upper, p.device) {
				continue
			}
			rest := raw[len(p.device):]
			if rest != "" && rest[0] != '\\' {
				continue
			}
			if rest == "" {
				rest = `\`
			}
			return NormalizePath(p.drive + rest), true
		}
	}

	if len(upper) >= 2 && upper[1] == ':' {
		return NormalizePath(raw), true
	}
	return "", false
}
