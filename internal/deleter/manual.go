package deleter

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/samber/lo"

	"github.com/yourusername/locked-folder-removal/internal/model"
)

// ManualInstructions returns the recovery steps shown when every strategy
// failed. The text always names the target path.
func ManualInstructions(target model.TargetResource, owners []model.LockOwner, leftovers []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Automatic removal of %s failed. To remove it manually:\n", target)

	step := 1
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, "  %d. %s\n", step, fmt.Sprintf(format, args...))
		step++
	}

	processes := lo.Filter(owners, func(o model.LockOwner, _ int) bool { return !o.IsService })
	svcs := lo.Filter(owners, func(o model.LockOwner, _ int) bool { return o.IsService })

	if len(processes) > 0 {
		line("Close these programs: %s.", strings.Join(lo.Map(processes, func(o model.LockOwner, _ int) string {
			return o.String()
		}), ", "))
	} else {
		line("Close every program that may have files open under %s, including file manager windows showing it.", target.Path)
	}
	if len(svcs) > 0 {
		line("Stop these services: %s.", strings.Join(lo.Map(svcs, func(o model.LockOwner, _ int) string {
			return stopServiceCommand(o.ServiceName)
		}), ", "))
	}
	removeStep := step
	line("From an elevated prompt run: %s", removeCommand(target.Path))
	if len(leftovers) > 0 {
		line("Remove the folders moved out of the way during cleanup: %s", strings.Join(leftovers, ", "))
	}
	line("If %s still cannot be removed, restart the computer and repeat step %d before opening other programs.",
		target.Path, removeStep)
	return b.String()
}

// LeftoverInstructions explains what is left when the target is gone but
// subtrees moved out of it during the pre-clear could not be deleted.
func LeftoverInstructions(target model.TargetResource, leftovers []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s was removed, but data moved out of it is still on disk:\n", target)
	for _, dir := range leftovers {
		fmt.Fprintf(&b, "  %s\n", dir)
	}
	fmt.Fprintf(&b, "Close the programs using them, then from an elevated prompt run %s for each folder.\n",
		removeCommand("<folder>"))
	return b.String()
}

func removeCommand(path string) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf(`rd /s /q "%s"`, path)
	}
	return fmt.Sprintf("sudo rm -rf -- '%s'", strings.ReplaceAll(path, "'", `'\''`))
}

func stopServiceCommand(name string) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("sc stop %s", name)
	}
	return fmt.Sprintf("systemctl stop %s", name)
}
