// Package main provides the command-line interface for removing folders that
// running programs or services keep locked.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/locked-folder-removal/internal/config"
	"github.com/yourusername/locked-folder-removal/internal/logger"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries the process exit code out of a command. A nil err means
// the command already reported the problem itself.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitError{code: exitUsage, err: err} }
func failureError(err error) error { return &exitError{code: exitFailure, err: err} }

// globalOptions holds the flags shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    bool
	logFile    string
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// execute runs the command line and maps the outcome to an exit code.
func execute(args []string, in io.Reader, out, errOut io.Writer) int {
	defer logger.Close()

	root := newRootCmd(in, out)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.Execute()
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	// Anything cobra rejects on its own is a usage problem.
	fmt.Fprintf(errOut, "Error: %v\n", err)
	return exitUsage
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "locked-folder-removal",
		Short: "Remove folders that running programs keep locked",
		Long: `locked-folder-removal finds the processes and services holding a folder open,
releases them, removes the folder with a cascade of increasingly forceful
strategies and restarts whatever it stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.SetupLogging(opts.verbose, opts.logFile); err != nil {
				return usageError(err)
			}
			return nil
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the YAML configuration file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Also append log records to this file")

	root.AddCommand(newDeleteCmd(opts, in, out))
	root.AddCommand(newOwnersCmd(opts, out))
	return root
}

// loadConfig reads --config, or the default location when the flag is unset.
// A missing file yields the defaults.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			logger.Debug("no default configuration location: %v", err)
			return config.Default(), nil
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, usageError(err)
	}
	return cfg, nil
}

func exactlyOnePath(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return usageError(err)
	}
	return nil
}
