package owners

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"pgregory.net/rapid"

	"github.com/yourusername/locked-folder-removal/internal/config"
	"github.com/yourusername/locked-folder-removal/internal/handles"
	"github.com/yourusername/locked-folder-removal/internal/model"
	"github.com/yourusername/locked-folder-removal/internal/procs"
	"github.com/yourusername/locked-folder-removal/internal/services"
	"github.com/yourusername/locked-folder-removal/internal/testutil"
)

const testSelfPID = 777

type fakeResolver struct {
	names  map[uintptr]string
	closed bool
}

func (r *fakeResolver) ResolveName(rec handles.HandleRecord) (string, bool) {
	name, ok := r.names[rec.HandleValue]
	return name, ok
}

func (r *fakeResolver) Close() error {
	r.closed = true
	return nil
}

type fakePlatform struct {
	snapshot   *handles.Snapshot
	snapErr    error
	resolver   *fakeResolver
	names      map[int]string
	processes  []procs.Process
	procErr    error
	modules    map[int][]string
	lockers    []int
	lockErr    error
	folders    []ShellFolder
	shellErr   error
	toolOut    string
	toolErr    error
	registered []string
	calls      []string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		snapshot: handles.NewSnapshot("test", nil),
		resolver: &fakeResolver{names: map[uintptr]string{}},
		names:    map[int]string{},
		modules:  map[int][]string{},
		shellErr: model.ErrUnsupported,
		lockErr:  model.ErrUnsupported,
	}
}

func (p *fakePlatform) CaptureHandles(handles.CaptureOptions) (*handles.Snapshot, error) {
	p.calls = append(p.calls, EvidenceHandleTable)
	return p.snapshot, p.snapErr
}

func (p *fakePlatform) NewResolver(handles.ResolverOptions) (handles.Resolver, error) {
	return p.resolver, nil
}

func (p *fakePlatform) ProcessName(pid int) (string, bool) {
	name, ok := p.names[pid]
	return name, ok
}

func (p *fakePlatform) Processes() ([]procs.Process, error) {
	p.calls = append(p.calls, EvidenceLoadedModule)
	return p.processes, p.procErr
}

func (p *fakePlatform) Modules(pid int) ([]string, error) {
	mods, ok := p.modules[pid]
	if !ok {
		return nil, model.ErrAccessDenied
	}
	return mods, nil
}

func (p *fakePlatform) LockingPIDs(files []string) ([]int, error) {
	p.calls = append(p.calls, EvidenceRestartManager)
	p.registered = files
	return p.lockers, p.lockErr
}

func (p *fakePlatform) ShellFolders() ([]ShellFolder, error) {
	p.calls = append(p.calls, EvidenceShellWindow)
	return p.folders, p.shellErr
}

func (p *fakePlatform) RunTool(ctx context.Context, tool config.ExternalTool, target string) (string, error) {
	p.calls = append(p.calls, EvidenceHandleTool)
	return p.toolOut, p.toolErr
}

// withHandles installs one handle per entry, keyed by owning pid.
func (p *fakePlatform) withHandles(entries []struct {
	pid  uint32
	name string
}) {
	records := make([]handles.HandleRecord, 0, len(entries))
	for i, e := range entries {
		value := uintptr(0x10 + 4*i)
		records = append(records, handles.HandleRecord{ProcessID: e.pid, HandleValue: value})
		p.resolver.names[value] = e.name
	}
	p.snapshot = handles.NewSnapshot("test", records)
}

func newTestEnumerator(p Platform, dir services.Directory, cfg *config.Config) *Enumerator {
	e := NewEnumerator(p, dir, cfg)
	e.selfPID = testSelfPID
	return e
}

func ownerPIDs(owners []model.LockOwner) []int {
	pids := make([]int, 0, len(owners))
	for _, o := range owners {
		pids = append(pids, o.ProcessID)
	}
	return pids
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestHandleTableFiltersSystemSelfAndSiblings(t *testing.T) {
	target := model.TargetResource{Path: `C:\Vault`, DisplayName: "Vault"}
	p := newFakePlatform()
	p.names[100] = "indexer.exe"
	p.withHandles([]struct {
		pid  uint32
		name string
	}{
		{0, `C:\Vault\idle.txt`},
		{4, `C:\Vault\driver.sys`},
		{testSelfPID, `C:\Vault\self.log`},
		{100, `C:\Vault\Logs\a.log`},
		{100, `C:\Vault\Logs\b.log`},
		{200, `C:\VaultOther\x.txt`},
		{300, `c:\vault`},
	})

	owners := newTestEnumerator(p, testutil.NewFakeServices(), config.Default()).FindOwners(target)

	if got := ownerPIDs(owners); !equalInts(got, []int{100, 300}) {
		t.Fatalf("owners = %v, want [100 300]", got)
	}
	if owners[0].ProcessName != "indexer.exe" || owners[0].Evidence != EvidenceHandleTable {
		t.Errorf("unexpected first owner %+v", owners[0])
	}
	if owners[1].ProcessName != model.ProcessPlaceholderName(300) {
		t.Errorf("expected placeholder name for vanished process, got %q", owners[1].ProcessName)
	}
	if !p.resolver.closed {
		t.Error("resolver was not closed")
	}
	if len(p.calls) != 1 {
		t.Errorf("expected only the handle table to be consulted, got %v", p.calls)
	}
}

func TestOwnersNeverIncludeSystemOrSelf(t *testing.T) {
	testutil.RapidCheck(t, func(rt *rapid.T) {
		pids := rapid.SliceOfN(rapid.SampledFrom([]int{0, 2, 4, 5, 8, 100, 4242, testSelfPID}), 0, 20).Draw(rt, "pids")
		p := newFakePlatform()
		entries := make([]struct {
			pid  uint32
			name string
		}, len(pids))
		for i, pid := range pids {
			entries[i].pid = uint32(pid)
			entries[i].name = `C:\Vault\f` + string(rune('a'+i%26))
		}
		p.withHandles(entries)

		owners := newTestEnumerator(p, testutil.NewFakeServices(), config.Default()).FindOwners(model.TargetResource{Path: `C:\Vault`})

		seen := map[int]bool{}
		for _, o := range owners {
			if o.ProcessID <= model.SystemProcessID || o.ProcessID == testSelfPID {
				rt.Fatalf("inadmissible owner %d reported", o.ProcessID)
			}
			if seen[o.ProcessID] {
				rt.Fatalf("owner %d reported twice", o.ProcessID)
			}
			seen[o.ProcessID] = true
		}
	})
}

func TestTiersStopAtFirstNonEmptyResult(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "open.db"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newFakePlatform()
	p.snapErr = &model.KernelQueryError{Query: "handles", Attempts: 8}
	p.processes = []procs.Process{{PID: 42, Name: "notepad.exe", ExePath: `C:\Windows\notepad.exe`}}
	p.modules[42] = []string{`C:\Windows\System32\kernel32.dll`}
	p.lockErr = nil
	p.lockers = []int{500, 4, 500}
	p.shellErr = nil
	p.folders = []ShellFolder{{PID: 600, Path: dir}}

	owners := newTestEnumerator(p, testutil.NewFakeServices(), config.Default()).FindOwners(model.TargetResource{Path: dir})

	if got := ownerPIDs(owners); !equalInts(got, []int{500}) {
		t.Fatalf("owners = %v, want [500]", got)
	}
	if owners[0].Evidence != EvidenceRestartManager {
		t.Errorf("evidence = %s, want %s", owners[0].Evidence, EvidenceRestartManager)
	}
	want := []string{EvidenceHandleTable, EvidenceLoadedModule, EvidenceRestartManager}
	if len(p.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", p.calls, want)
	}
	for i := range want {
		if p.calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, p.calls[i], want[i])
		}
	}
	if len(p.registered) != 1 {
		t.Errorf("expected one registered file, got %v", p.registered)
	}
}

func TestProcessTier(t *testing.T) {
	p := newFakePlatform()
	p.processes = []procs.Process{
		{PID: 10, Name: "app.exe", ExePath: `C:\Vault\bin\app.exe`},
		{PID: 11, Name: "OneDrive.exe", ExePath: `C:\Program Files\OneDrive\OneDrive.exe`, CommandLine: `"OneDrive.exe" /sync "C:\Vault"`},
		{PID: 12, Name: "OneDrive.exe", ExePath: `C:\Program Files\OneDrive\OneDrive.exe`, CommandLine: `"OneDrive.exe" /sync "C:\VaultOther"`},
		{PID: 13, Name: "viewer.exe", ExePath: `C:\Tools\viewer.exe`},
		{PID: 14, Name: "notepad.exe", CommandLine: `notepad.exe C:\Vault\readme.txt`},
		{PID: 4, Name: "System", ExePath: `C:\Vault\fake.exe`},
	}
	p.modules[13] = []string{`C:\Windows\System32\ntdll.dll`, `C:\Vault\Libraries\render.dll`}
	p.modules[12] = []string{`C:\Windows\System32\ntdll.dll`}

	owners := newTestEnumerator(p, testutil.NewFakeServices(), config.Default()).FindOwners(model.TargetResource{Path: `C:\Vault`})

	if got := ownerPIDs(owners); !equalInts(got, []int{10, 11, 13}) {
		t.Fatalf("owners = %v, want [10 11 13]", got)
	}
	for _, o := range owners {
		if o.Evidence != EvidenceLoadedModule {
			t.Errorf("owner %d evidence = %s", o.ProcessID, o.Evidence)
		}
	}
}

func TestServiceSweepIsMerged(t *testing.T) {
	p := newFakePlatform()
	p.withHandles([]struct {
		pid  uint32
		name string
	}{
		{100, `C:\Vault\index.db`},
	})
	dir := testutil.NewFakeServices(
		services.Info{Name: "WSearch", ProcessID: 100, Running: true, AutoStart: true},
		services.Info{Name: "Audiosrv", ProcessID: 900, Running: true, AutoStart: true},
		services.Info{Name: "Spooler", ProcessID: 0, Running: false},
	)

	owners := newTestEnumerator(p, dir, config.Default()).FindOwners(model.TargetResource{Path: `C:\Vault`})

	if got := ownerPIDs(owners); !equalInts(got, []int{100, 900}) {
		t.Fatalf("owners = %v, want [100 900]", got)
	}
	if owners[0].Evidence != EvidenceHandleTable || owners[0].ServiceName != "WSearch" || !owners[0].AutoRestartEligible {
		t.Errorf("unexpected handle owner %+v", owners[0])
	}
	if owners[1].Evidence != EvidenceServiceSweep || owners[1].ServiceName != "Audiosrv" || !owners[1].IsService {
		t.Errorf("unexpected swept owner %+v", owners[1])
	}
}

func TestSweepAloneWhenNothingElseFound(t *testing.T) {
	p := newFakePlatform()
	dir := testutil.NewFakeServices(services.Info{Name: "wsearch", ProcessID: 4, Running: true})

	owners := newTestEnumerator(p, dir, config.Default()).FindOwners(model.TargetResource{Path: `C:\Vault`})

	if len(owners) != 0 {
		t.Errorf("service hosted by the system process must not be reported, got %v", owners)
	}
}

func TestAnnotationPrefersOffendingService(t *testing.T) {
	p := newFakePlatform()
	p.names[300] = "svchost.exe"
	p.withHandles([]struct {
		pid  uint32
		name string
	}{
		{300, `C:\Vault\Logs\trace.etl`},
	})
	dir := testutil.NewFakeServices(
		services.Info{Name: "BITS", ProcessID: 300, Running: true},
		services.Info{Name: "WSearch", ProcessID: 300, Running: true, AutoStart: true},
	)

	owners := newTestEnumerator(p, dir, config.Default()).FindOwners(model.TargetResource{Path: `C:\Vault`})

	if len(owners) != 1 {
		t.Fatalf("expected one owner, got %v", owners)
	}
	if owners[0].ServiceName != "WSearch" {
		t.Errorf("service = %s, want WSearch", owners[0].ServiceName)
	}
}

func TestHandleToolTier(t *testing.T) {
	p := newFakePlatform()
	p.toolOut = "Nthandle v5.0\n\n" +
		"explorer.exe       pid: 4321   type: File           1A4: C:\\Vault\\Sub\n" +
		"regedit.exe        pid: 55     type: Key            2B0: C:\\Vault\n" +
		"other.exe          pid: 66     type: File           3C0: C:\\Elsewhere\\x.txt\n"
	p.toolErr = errors.New("exit status 1")
	cfg := config.Default()
	cfg.ExternalHandleTool = config.ExternalTool{Path: "handle.exe", Args: []string{"-accepteula", "{path}"}}

	owners := newTestEnumerator(p, testutil.NewFakeServices(), cfg).FindOwners(model.TargetResource{Path: `C:\Vault`})

	if got := ownerPIDs(owners); !equalInts(got, []int{4321}) {
		t.Fatalf("owners = %v, want [4321]", got)
	}
	if owners[0].Evidence != EvidenceHandleTool {
		t.Errorf("evidence = %s", owners[0].Evidence)
	}
}

func TestHandleToolNotRunWhenDisabled(t *testing.T) {
	p := newFakePlatform()
	p.toolOut = "x.exe pid: 99 type: File 1: C:\\Vault\n"

	owners := newTestEnumerator(p, testutil.NewFakeServices(), config.Default()).FindOwners(model.TargetResource{Path: `C:\Vault`})

	if len(owners) != 0 {
		t.Errorf("expected no owners, got %v", owners)
	}
	for _, c := range p.calls {
		if c == EvidenceHandleTool {
			t.Error("handle tool ran without being configured")
		}
	}
}

func TestParseHandleToolOutput(t *testing.T) {
	out := "Copyright (C) 1997-2022 Mark Russinovich\n" +
		"explorer.exe       pid: 4321   type: File           1A4: C:\\Vault\\My Docs\n" +
		"svchost.exe        pid: 1100   DOMAIN\\user   2C8: C:\\Vault\n" +
		"broken.exe pid: abc\n" +
		"No matching handles found.\n"

	got := ParseHandleToolOutput(out)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %+v", got)
	}
	want0 := ToolMatch{ProcessName: "explorer.exe", PID: 4321, Type: "File", Path: `C:\Vault\My Docs`}
	if got[0] != want0 {
		t.Errorf("match 0 = %+v, want %+v", got[0], want0)
	}
	if got[1].PID != 1100 || got[1].Type != "" || got[1].Path != `C:\Vault` {
		t.Errorf("match 1 = %+v", got[1])
	}
}

func TestFileURLToPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"file:///C:/Vault/Sub", `C:\Vault\Sub`, true},
		{"file:///C:/My%20Vault", `C:\My Vault`, true},
		{"file://localhost/D:/x", `D:\x`, true},
		{"file://server/share/dir", `\\server\share\dir`, true},
		{"file:///relative", "", false},
		{"shell:::{20D04FE0-3AEA-1069-A2D8-08002B30309D}", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := FileURLToPath(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("FileURLToPath(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMentionsPath(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{`app.exe C:\Vault`, true},
		{`app.exe "C:\Vault\file.txt"`, true},
		{`app.exe c:/vault/x`, true},
		{`app.exe 'C:\Vault' -q`, true},
		{`app.exe C:\VaultOther`, false},
		{`app.exe C:\VaultOther C:\Vault`, true},
		{``, false},
	}
	for _, tt := range tests {
		if got := mentionsPath(tt.text, `C:\Vault`); got != tt.want {
			t.Errorf("mentionsPath(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestCollectFilesHonorsLimitAndSkipsLinks(t *testing.T) {
	v := testutil.CreateVault(t, "Vault", testutil.VaultOptions{Depth: 2, FilesPerDir: 3})
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "keep.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(v.Root, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	all, err := collectFiles(v.Root, 10_000)
	if err != nil {
		t.Fatalf("collectFiles failed: %v", err)
	}
	if len(all) != len(v.Files) {
		t.Errorf("collected %d files, vault has %d", len(all), len(v.Files))
	}
	for _, f := range all {
		if handles.IsUnder(f, outside) {
			t.Errorf("followed a link into %s", f)
		}
	}

	capped, err := collectFiles(v.Root, 3)
	if err != nil {
		t.Fatalf("collectFiles failed: %v", err)
	}
	if len(capped) != 3 {
		t.Errorf("expected 3 files with limit 3, got %d", len(capped))
	}

	if _, err := collectFiles(filepath.Join(v.Root, "missing"), 10); err == nil {
		t.Error("expected an error for a missing root")
	}
}

func TestOwnersAreSortedByPID(t *testing.T) {
	p := newFakePlatform()
	p.shellErr = nil
	p.folders = []ShellFolder{{PID: 90, Path: `C:\Vault`}, {PID: 20, Path: `C:\Vault\Sub`}, {PID: 50, Path: `C:\Vault\Sub`}}

	owners := newTestEnumerator(p, testutil.NewFakeServices(), config.Default()).FindOwners(model.TargetResource{Path: `C:\Vault`})

	got := ownerPIDs(owners)
	if !sort.IntsAreSorted(got) || len(got) != 3 {
		t.Errorf("owners = %v, want three sorted pids", got)
	}
}
