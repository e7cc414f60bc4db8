package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/yourusername/locked-folder-removal/internal/deleter"
	"github.com/yourusername/locked-folder-removal/internal/logger"
	"github.com/yourusername/locked-folder-removal/internal/model"
	"github.com/yourusername/locked-folder-removal/internal/progress"
	"github.com/yourusername/locked-folder-removal/internal/safety"
	"github.com/yourusername/locked-folder-removal/internal/unlocker"
)

type deleteOptions struct {
	name        string
	markersOnly bool
	wait        int
	yes         bool
	json        bool
}

// deleteReport is the --json form of a DeletionResult.
type deleteReport struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
	*model.DeletionResult
	Restarts []string `json:"restarts,omitempty"`
}

func newDeleteCmd(g *globalOptions, in io.Reader, out io.Writer) *cobra.Command {
	opts := &deleteOptions{}

	cmd := &cobra.Command{
		Use:   "delete <path>",
		Short: "Release whatever holds a folder open and remove it",
		Long: `Find the processes and services holding <path> open, stop them, remove the
folder and restart what was stopped. With --markers-only the folder is kept
and only its attributes and marker files are cleared.`,
		Args: exactlyOnePath,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(g, opts, args[0], in, out)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "Human-readable name used in messages")
	cmd.Flags().BoolVar(&opts.markersOnly, "markers-only", false, "Keep the folder, only clear attributes and marker files")
	cmd.Flags().IntVar(&opts.wait, "wait", 0, "Seconds to watch for the folder reappearing after removal")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the result as JSON (requires --yes)")
	return cmd
}

func runDelete(g *globalOptions, opts *deleteOptions, path string, in io.Reader, out io.Writer) error {
	if opts.json && !opts.yes {
		return usageError(errors.New("--json cannot prompt for confirmation, pass --yes as well"))
	}
	if opts.wait < 0 {
		return usageError(fmt.Errorf("--wait must be at least 0, got %d", opts.wait))
	}

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	target, err := model.NewTargetResource(path, opts.name)
	if err != nil {
		return usageError(err)
	}
	logger.Info("Target: %s", target)

	unlock, err := acquireSessionLock(target.Path)
	if err != nil {
		return failureError(err)
	}
	defer unlock()

	u := unlocker.New(cfg)
	if !opts.yes {
		if err := safety.Validate(target.Path); err != nil {
			return usageError(err)
		}
		owners, err := u.FindOwners(target.Path)
		if err != nil {
			logger.Warning("Cannot list lock owners: %v", err)
		}
		if !safety.GetUserConfirmation(in, out, target, owners, false) {
			fmt.Fprintln(out, "Removal cancelled by user.")
			return nil
		}
	}

	reporter := progress.NewReporter(out, !opts.json && isTerminal(out))
	if !opts.json {
		u.SetHooks(deleter.Hooks{
			Stage:   reporter.Stage,
			Owners:  reporter.Owners,
			Attempt: reporter.Attempt,
			Deleted: reporter.Deleted,
		})
	}

	stopInterrupts := holdInterrupts()
	result := u.ResolveAndDelete(target.Path, target.DisplayName, unlocker.Options{
		DeleteContents:         !opts.markersOnly,
		WaitForDeletionSeconds: opts.wait,
	})
	stopInterrupts()

	if opts.json {
		if err := writeReport(out, result); err != nil {
			return failureError(err)
		}
	} else {
		reporter.Finish(result)
	}

	switch {
	case result.Succeeded:
		return nil
	case unlocker.Refused(result):
		return &exitError{code: exitUsage}
	default:
		return &exitError{code: exitFailure}
	}
}

func writeReport(out io.Writer, result *model.DeletionResult) error {
	report := deleteReport{
		Path:           result.Target.Path,
		Name:           result.Target.DisplayName,
		DeletionResult: result,
	}
	for _, a := range result.Restarts {
		report.Restarts = append(report.Restarts, a.String())
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
