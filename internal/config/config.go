// Package config loads the tunables of a lock-resolution session: the
// heuristic process and service lists, timeouts and the optional external
// tools. Every list can be overridden from a YAML file because the right
// values depend on the machine the tool runs on.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can use strings like "5s".
type Duration time.Duration

// UnmarshalYAML accepts Go duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration back as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Timeouts bounds every wait on external state.
type Timeouts struct {
	GracefulStop   Duration `yaml:"graceful_stop"`
	ServiceStop    Duration `yaml:"service_stop"`
	Command        Duration `yaml:"command"`
	SettleDelay    Duration `yaml:"settle_delay"`
	HandleNameWait Duration `yaml:"handle_name_wait"`
}

// HandleQuery tunes the grow-and-retry handle table capture.
type HandleQuery struct {
	InitialBufferBytes int `yaml:"initial_buffer_bytes"`
	MaxRetries         int `yaml:"max_retries"`
}

// ExternalTool describes an optional executable invoked by the session.
type ExternalTool struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args,omitempty"` // "{path}" is replaced by the target path
}

// Enabled reports whether a path was configured.
func (t ExternalTool) Enabled() bool { return t.Path != "" }

// Expand returns the arguments with every "{path}" replaced by target. With
// no arguments configured the target is passed as the only argument.
func (t ExternalTool) Expand(target string) []string {
	if len(t.Args) == 0 {
		return []string{target}
	}
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = strings.ReplaceAll(a, "{path}", target)
	}
	return args
}

// Config is the in-memory representation of config.yaml.
type Config struct {
	ProtectedProcesses         []string     `yaml:"protected_processes,omitempty"`
	ShellProcesses             []string     `yaml:"shell_processes,omitempty"`
	OffendingProcessSubstrings []string     `yaml:"offending_process_substrings,omitempty"`
	OffendingServices          []string     `yaml:"offending_services,omitempty"`
	HotSubdirectories          []string     `yaml:"hot_subdirectories,omitempty"`
	MarkerFiles                []string     `yaml:"marker_files,omitempty"`
	Timeouts                   Timeouts     `yaml:"timeouts"`
	HandleQuery                HandleQuery  `yaml:"handle_query"`
	MaxReleaseCycles           int          `yaml:"max_release_cycles"`
	VendorTool                 ExternalTool `yaml:"vendor_tool"`
	ExternalHandleTool         ExternalTool `yaml:"external_handle_tool"`
	AllowRemoteDiagnostics     bool         `yaml:"allow_remote_diagnostics"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ProtectedProcesses: []string{
			"System", "Idle", "Registry", "Secure System", "Memory Compression",
			"smss.exe", "csrss.exe", "wininit.exe", "winlogon.exe", "services.exe",
			"lsass.exe", "lsaiso.exe", "dwm.exe", "fontdrvhost.exe", "sihost.exe",
			"MsMpEng.exe", "NisSrv.exe",
		},
		ShellProcesses: []string{"explorer.exe"},
		OffendingProcessSubstrings: []string{
			"searchindexer", "searchprotocolhost", "searchfilterhost",
			"onedrive", "dropbox", "googledrivefs", "boxsync",
			"backup", "audiodg", "spoolsv", "splwow64",
		},
		OffendingServices: []string{
			"Audiosrv", "WSearch", "OneSyncSvc", "SDRSVC", "wbengine", "Spooler",
		},
		HotSubdirectories: []string{"Logs", "Log", "Libraries", "Library", "node_modules"},
		MarkerFiles:       []string{"desktop.ini"},
		Timeouts: Timeouts{
			GracefulStop:   Duration(5 * time.Second),
			ServiceStop:    Duration(30 * time.Second),
			Command:        Duration(30 * time.Second),
			SettleDelay:    Duration(3 * time.Second),
			HandleNameWait: Duration(200 * time.Millisecond),
		},
		HandleQuery: HandleQuery{
			InitialBufferBytes: 64 * 1024,
			MaxRetries:         8,
		},
		MaxReleaseCycles: 2,
	}
}

// DefaultPath returns %ProgramData%\locked-folder-removal\config.yaml, or a
// path under the user config directory when ProgramData is not set.
func DefaultPath() (string, error) {
	if pd := os.Getenv("ProgramData"); pd != "" {
		return filepath.Join(pd, "locked-folder-removal", "config.yaml"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(dir, "locked-folder-removal", "config.yaml"), nil
}

// Load reads path and overlays it on Default(). A missing file is not an
// error and yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
	}
	cfg.merge(&file)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// merge copies every field set in o over c. Lists replace, not append.
func (c *Config) merge(o *Config) {
	replace := func(dst *[]string, src []string) {
		if src != nil {
			*dst = src
		}
	}
	replace(&c.ProtectedProcesses, o.ProtectedProcesses)
	replace(&c.ShellProcesses, o.ShellProcesses)
	replace(&c.OffendingProcessSubstrings, o.OffendingProcessSubstrings)
	replace(&c.OffendingServices, o.OffendingServices)
	replace(&c.HotSubdirectories, o.HotSubdirectories)
	replace(&c.MarkerFiles, o.MarkerFiles)

	setDur := func(dst *Duration, src Duration) {
		if src != 0 {
			*dst = src
		}
	}
	setDur(&c.Timeouts.GracefulStop, o.Timeouts.GracefulStop)
	setDur(&c.Timeouts.ServiceStop, o.Timeouts.ServiceStop)
	setDur(&c.Timeouts.Command, o.Timeouts.Command)
	setDur(&c.Timeouts.SettleDelay, o.Timeouts.SettleDelay)
	setDur(&c.Timeouts.HandleNameWait, o.Timeouts.HandleNameWait)

	if o.HandleQuery.InitialBufferBytes != 0 {
		c.HandleQuery.InitialBufferBytes = o.HandleQuery.InitialBufferBytes
	}
	if o.HandleQuery.MaxRetries != 0 {
		c.HandleQuery.MaxRetries = o.HandleQuery.MaxRetries
	}
	if o.MaxReleaseCycles != 0 {
		c.MaxReleaseCycles = o.MaxReleaseCycles
	}
	if o.VendorTool.Enabled() {
		c.VendorTool = o.VendorTool
	}
	if o.ExternalHandleTool.Enabled() {
		c.ExternalHandleTool = o.ExternalHandleTool
	}
	// Downloading diagnostic tools over the network is not implemented, so
	// the switch stays off whatever the file says.
	c.AllowRemoteDiagnostics = false
}

// Validate checks the invariants the rest of the tool relies on.
func (c *Config) Validate() error {
	if len(c.ProtectedProcesses) == 0 {
		return errors.New("protected_processes must not be empty")
	}
	for name, d := range map[string]Duration{
		"graceful_stop":    c.Timeouts.GracefulStop,
		"service_stop":     c.Timeouts.ServiceStop,
		"command":          c.Timeouts.Command,
		"handle_name_wait": c.Timeouts.HandleNameWait,
	} {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be positive", name)
		}
	}
	if c.Timeouts.SettleDelay < 0 {
		return errors.New("timeouts.settle_delay must not be negative")
	}
	if c.HandleQuery.InitialBufferBytes < 4096 {
		return fmt.Errorf("handle_query.initial_buffer_bytes must be at least 4096 (got %d)", c.HandleQuery.InitialBufferBytes)
	}
	if c.HandleQuery.MaxRetries < 1 {
		return fmt.Errorf("handle_query.max_retries must be at least 1 (got %d)", c.HandleQuery.MaxRetries)
	}
	if c.MaxReleaseCycles < 1 {
		return fmt.Errorf("max_release_cycles must be at least 1 (got %d)", c.MaxReleaseCycles)
	}
	return nil
}
