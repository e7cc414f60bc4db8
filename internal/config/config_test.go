package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("cannot write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Timeouts.GracefulStop.Std() != 5*time.Second {
		t.Errorf("graceful stop = %s, want 5s", cfg.Timeouts.GracefulStop.Std())
	}
	if cfg.MaxReleaseCycles != 2 {
		t.Errorf("max release cycles = %d, want 2", cfg.MaxReleaseCycles)
	}
}

func TestLoadOverridesListsAndTimeouts(t *testing.T) {
	path := writeConfig(t, `
offending_services: [MyBackupAgent]
offending_process_substrings: [syncthing]
timeouts:
  settle_delay: 500ms
  graceful_stop: 2s
vendor_tool:
  path: C:\Vendor\admin.exe
  args: ["delete", "--folder", "{path}"]
allow_remote_diagnostics: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.OffendingServices) != 1 || cfg.OffendingServices[0] != "MyBackupAgent" {
		t.Errorf("offending services should be replaced, got %v", cfg.OffendingServices)
	}
	if len(cfg.OffendingProcessSubstrings) != 1 {
		t.Errorf("offending substrings should be replaced, got %v", cfg.OffendingProcessSubstrings)
	}
	if got := cfg.Timeouts.SettleDelay.Std(); got != 500*time.Millisecond {
		t.Errorf("settle delay = %s, want 500ms", got)
	}
	if got := cfg.Timeouts.GracefulStop.Std(); got != 2*time.Second {
		t.Errorf("graceful stop = %s, want 2s", got)
	}
	if got := cfg.Timeouts.ServiceStop.Std(); got != 30*time.Second {
		t.Errorf("unset service stop should keep its default, got %s", got)
	}
	if len(cfg.ProtectedProcesses) == 0 {
		t.Errorf("unset protected list should keep defaults")
	}
	if !cfg.VendorTool.Enabled() || cfg.VendorTool.Args[2] != "{path}" {
		t.Errorf("vendor tool not loaded: %+v", cfg.VendorTool)
	}
	if cfg.AllowRemoteDiagnostics {
		t.Errorf("remote diagnostics must stay disabled")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad duration":     "timeouts:\n  command: soon\n",
		"empty protected":  "protected_processes: []\n",
		"tiny buffer":      "handle_query:\n  initial_buffer_bytes: 16\n",
		"malformed yaml":   "protected_processes: [a\n",
		"negative retries": "handle_query:\n  max_retries: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Errorf("expected an error for %s", name)
			}
		})
	}
}

func TestDefaultPathUsesProgramData(t *testing.T) {
	t.Setenv("ProgramData", filepath.Join("X", "ProgramData"))
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath failed: %v", err)
	}
	if !strings.HasPrefix(path, filepath.Join("X", "ProgramData")) {
		t.Errorf("DefaultPath = %s, want it under ProgramData", path)
	}
}

func TestExternalToolExpand(t *testing.T) {
	tool := ExternalTool{Path: "handle64.exe", Args: []string{"-accepteula", "-nobanner", "{path}"}}
	got := tool.Expand(`C:\Vault`)
	if len(got) != 3 || got[2] != `C:\Vault` || got[0] != "-accepteula" {
		t.Errorf("Expand = %v", got)
	}
	if got := (ExternalTool{Path: "x.exe"}).Expand(`D:\Data`); len(got) != 1 || got[0] != `D:\Data` {
		t.Errorf("Expand without args = %v, want the target alone", got)
	}
}
