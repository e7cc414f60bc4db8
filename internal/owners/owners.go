// Package owners finds the processes that hold a directory open.
//
// The handle table is the primary source. When it yields nothing, a chain of
// independent heuristics is tried in order and the first non-empty answer
// wins. A sweep over commonly offending services is always merged in,
// because some filter-driver handles never show up in the handle table.
package owners

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/yourusername/locked-folder-removal/internal/config"
	"github.com/yourusername/locked-folder-removal/internal/handles"
	"github.com/yourusername/locked-folder-removal/internal/logger"
	"github.com/yourusername/locked-folder-removal/internal/model"
	"github.com/yourusername/locked-folder-removal/internal/procs"
	"github.com/yourusername/locked-folder-removal/internal/services"
)

// Evidence values recorded on LockOwner.
const (
	EvidenceHandleTable    = "handle-table"
	EvidenceLoadedModule   = "loaded-module"
	EvidenceRestartManager = "restart-manager"
	EvidenceShellWindow    = "shell-window"
	EvidenceHandleTool     = "handle-tool"
	EvidenceServiceSweep   = "service-sweep"
)

// DefaultMaxRegisteredFiles caps how many files are handed to the Restart
// Manager tier.
const DefaultMaxRegisteredFiles = 2000

// ShellFolder is a file-manager window and the folder it displays.
type ShellFolder struct {
	PID  int
	Path string
}

// Platform is the operating-system surface the enumerator needs.
type Platform interface {
	CaptureHandles(opts handles.CaptureOptions) (*handles.Snapshot, error)
	NewResolver(opts handles.ResolverOptions) (handles.Resolver, error)
	ProcessName(pid int) (string, bool)
	Processes() ([]procs.Process, error)
	Modules(pid int) ([]string, error)
	LockingPIDs(files []string) ([]int, error)
	ShellFolders() ([]ShellFolder, error)
	RunTool(ctx context.Context, tool config.ExternalTool, target string) (string, error)
}

// Enumerator implements owner discovery for one session.
type Enumerator struct {
	platform           Platform
	services           services.Directory
	cfg                *config.Config
	selfPID            int
	maxRegisteredFiles int
}

// NewEnumerator wires an Enumerator.
func NewEnumerator(p Platform, dir services.Directory, cfg *config.Config) *Enumerator {
	return &Enumerator{
		platform:           p,
		services:           dir,
		cfg:                cfg,
		selfPID:            os.Getpid(),
		maxRegisteredFiles: DefaultMaxRegisteredFiles,
	}
}

type tier struct {
	evidence string
	run      func(target string) ([]int, error)
}

// FindOwners returns the processes holding target open. It never fails: a
// method that errors is logged and the next one is tried, and an empty
// result just means nothing could be attributed.
func (e *Enumerator) FindOwners(target model.TargetResource) []model.LockOwner {
	tiers := []tier{
		{EvidenceHandleTable, e.fromHandleTable},
		{EvidenceLoadedModule, e.fromProcesses},
		{EvidenceRestartManager, e.fromRestartManager},
		{EvidenceShellWindow, e.fromShellWindows},
	}
	if e.cfg.ExternalHandleTool.Enabled() {
		tiers = append(tiers, tier{EvidenceHandleTool, e.fromHandleTool})
	}

	var found []model.LockOwner
	for _, t := range tiers {
		pids, err := t.run(target.Path)
		if err != nil {
			logger.Debug("owner enumeration via %s failed: %v", t.evidence, err)
			continue
		}
		pids = e.admissible(pids)
		if len(pids) == 0 {
			logger.Debug("owner enumeration via %s found nothing", t.evidence)
			continue
		}
		logger.Info("found %d owner(s) of %s via %s", len(pids), target.Path, t.evidence)
		found = e.describe(pids, t.evidence)
		break
	}

	found = e.mergeSweep(found, e.serviceSweep())
	sort.Slice(found, func(i, j int) bool { return found[i].ProcessID < found[j].ProcessID })
	return found
}

// admissible drops duplicates, the kernel pseudo-processes and ourselves.
func (e *Enumerator) admissible(pids []int) []int {
	return lo.Filter(lo.Uniq(pids), func(pid int, _ int) bool {
		return e.eligible(pid)
	})
}

func (e *Enumerator) eligible(pid int) bool {
	return pid > model.SystemProcessID && pid != e.selfPID
}

func (e *Enumerator) processName(pid int) string {
	if name, ok := e.platform.ProcessName(pid); ok && name != "" {
		return name
	}
	return model.ProcessPlaceholderName(pid)
}

func (e *Enumerator) describe(pids []int, evidence string) []model.LockOwner {
	return lo.Map(pids, func(pid int, _ int) model.LockOwner {
		owner := model.LockOwner{
			ProcessID:   pid,
			ProcessName: e.processName(pid),
			Evidence:    evidence,
		}
		e.annotateService(&owner)
		return owner
	})
}

// annotateService marks owners that host a service. When a host runs
// several, an offending-listed one is preferred.
func (e *Enumerator) annotateService(owner *model.LockOwner) {
	hosted, err := e.services.ServicesForPID(owner.ProcessID)
	if err != nil {
		logger.Debug("cannot map pid %d to services: %v", owner.ProcessID, err)
		return
	}
	if len(hosted) == 0 {
		return
	}
	chosen, ok := lo.Find(hosted, func(s services.Info) bool {
		return services.MatchesAny(s.Name, e.cfg.OffendingServices)
	})
	if !ok {
		chosen = hosted[0]
	}
	owner.IsService = true
	owner.ServiceName = chosen.Name
	owner.AutoRestartEligible = chosen.AutoStart
}

// serviceSweep reports the host process of every running service on the
// offending list, with or without handle evidence.
func (e *Enumerator) serviceSweep() []model.LockOwner {
	var swept []model.LockOwner
	for _, name := range e.cfg.OffendingServices {
		info, ok, err := e.services.Lookup(name)
		if err != nil {
			logger.Debug("cannot query service %s: %v", name, err)
			continue
		}
		if !ok || !info.Running || !e.eligible(info.ProcessID) {
			continue
		}
		swept = append(swept, model.LockOwner{
			ProcessID:           info.ProcessID,
			ProcessName:         e.processName(info.ProcessID),
			IsService:           true,
			ServiceName:         info.Name,
			AutoRestartEligible: info.AutoStart,
			Evidence:            EvidenceServiceSweep,
		})
	}
	return swept
}

// mergeSweep adds swept services to found, deduplicated by process id. An
// owner already found keeps its evidence but learns its service identity.
func (e *Enumerator) mergeSweep(found, swept []model.LockOwner) []model.LockOwner {
	index := make(map[int]int, len(found))
	for i, o := range found {
		index[o.ProcessID] = i
	}
	for _, s := range swept {
		if i, ok := index[s.ProcessID]; ok {
			if !found[i].IsService {
				found[i].IsService = true
				found[i].ServiceName = s.ServiceName
				found[i].AutoRestartEligible = s.AutoRestartEligible
			}
			continue
		}
		index[s.ProcessID] = len(found)
		found = append(found, s)
	}
	return found
}

func (e *Enumerator) fromHandleTable(target string) ([]int, error) {
	snap, err := e.platform.CaptureHandles(handles.CaptureOptions{
		InitialBufferBytes: e.cfg.HandleQuery.InitialBufferBytes,
		MaxRetries:         e.cfg.HandleQuery.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	resolver, err := e.platform.NewResolver(handles.ResolverOptions{NameWait: e.cfg.Timeouts.HandleNameWait.Std()})
	if err != nil {
		return nil, err
	}
	defer resolver.Close()

	matched := make(map[int]struct{})
	snap.Each(func(rec handles.HandleRecord) bool {
		pid := int(rec.ProcessID)
		if !e.eligible(pid) {
			return true
		}
		if _, done := matched[pid]; done {
			return true
		}
		if name, ok := resolver.ResolveName(rec); ok && handles.IsUnder(name, target) {
			logger.Debug("pid %d holds %s", pid, name)
			matched[pid] = struct{}{}
		}
		return true
	})
	logger.Debug("scanned %d handles from %s", snap.Len(), snap.Layout())
	return lo.Keys(matched), nil
}

// fromProcesses reports processes whose image or loaded modules live under
// the target, and known offenders whose command line names it.
func (e *Enumerator) fromProcesses(target string) ([]int, error) {
	list, err := e.platform.Processes()
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, p := range list {
		if !e.eligible(p.PID) {
			continue
		}
		if p.ExePath != "" && handles.IsUnder(p.ExePath, target) {
			pids = append(pids, p.PID)
			continue
		}
		if e.isOffender(p.Name) && mentionsPath(p.CommandLine, target) {
			pids = append(pids, p.PID)
			continue
		}
		modules, err := e.platform.Modules(p.PID)
		if err != nil {
			continue
		}
		if lo.ContainsBy(modules, func(m string) bool { return handles.IsUnder(m, target) }) {
			pids = append(pids, p.PID)
		}
	}
	return pids, nil
}

func (e *Enumerator) isOffender(name string) bool {
	lower := strings.ToLower(name)
	return lo.ContainsBy(e.cfg.OffendingProcessSubstrings, func(s string) bool {
		return s != "" && strings.Contains(lower, strings.ToLower(s))
	})
}

// mentionsPath reports whether text contains target as a whole path, so
// C:\VaultOther does not count as a mention of C:\Vault.
func mentionsPath(text, target string) bool {
	if text == "" {
		return false
	}
	haystack := strings.ToUpper(strings.ReplaceAll(text, "/", `\`))
	needle := handles.NormalizePath(target)
	if needle == "" {
		return false
	}
	for start := 0; ; {
		i := strings.Index(haystack[start:], needle)
		if i < 0 {
			return false
		}
		end := start + i + len(needle)
		if end == len(haystack) || strings.ContainsRune(`\" '`, rune(haystack[end])) {
			return true
		}
		start += i + 1
	}
}

func (e *Enumerator) fromRestartManager(target string) ([]int, error) {
	files, err := collectFiles(target, e.maxRegisteredFiles)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return e.platform.LockingPIDs(files)
}

// collectFiles lists up to limit regular files under root without
// following links or junctions.
func collectFiles(root string, limit int) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
			if len(files) >= limit {
				return fs.SkipAll
			}
		}
		return nil
	})
	return files, err
}

func (e *Enumerator) fromShellWindows(target string) ([]int, error) {
	folders, err := e.platform.ShellFolders()
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, f := range folders {
		if handles.IsUnder(f.Path, target) {
			pids = append(pids, f.PID)
		}
	}
	return pids, nil
}

func (e *Enumerator) fromHandleTool(target string) ([]int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Timeouts.Command.Std())
	defer cancel()
	out, err := e.platform.RunTool(ctx, e.cfg.ExternalHandleTool, target)
	if err != nil && out == "" {
		return nil, err
	}
	var pids []int
	for _, m := range ParseHandleToolOutput(out) {
		if m.Type != "" && !strings.EqualFold(m.Type, "File") {
			continue
		}
		if m.Path != "" && !handles.IsUnder(m.Path, target) {
			continue
		}
		pids = append(pids, m.PID)
	}
	return pids, nil
}
