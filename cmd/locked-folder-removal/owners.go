package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yourusername/locked-folder-removal/internal/model"
	"github.com/yourusername/locked-folder-removal/internal/unlocker"
)

type ownerJSON struct {
	PID         int    `json:"pid"`
	Name        string `json:"name"`
	Service     string `json:"service,omitempty"`
	AutoRestart bool   `json:"autoRestart,omitempty"`
	Evidence    string `json:"evidence"`
}

func newOwnersCmd(g *globalOptions, out io.Writer) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "owners <path>",
		Short: "List the processes holding a folder open without changing anything",
		Args:  exactlyOnePath,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			owners, err := unlocker.New(cfg).FindOwners(args[0])
			if err != nil {
				return failureError(err)
			}
			if asJSON {
				return writeOwnersJSON(out, owners)
			}
			printOwners(out, args[0], owners)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print owners as JSON")
	return cmd
}

func printOwners(out io.Writer, path string, owners []model.LockOwner) {
	if len(owners) == 0 {
		fmt.Fprintf(out, "No lock owners found for %s\n", path)
		return
	}
	fmt.Fprintf(out, "%d lock owner(s) of %s:\n", len(owners), path)
	for _, o := range owners {
		service := ""
		if o.IsService {
			service = "service " + o.ServiceName
			if o.AutoRestartEligible {
				service += " (auto start)"
			}
		}
		fmt.Fprintf(out, "  %6d  %-28s %-16s %s\n", o.ProcessID, o.ProcessName, o.Evidence, service)
	}
}

func writeOwnersJSON(out io.Writer, owners []model.LockOwner) error {
	list := make([]ownerJSON, 0, len(owners))
	for _, o := range owners {
		list = append(list, ownerJSON{
			PID:         o.ProcessID,
			Name:        o.ProcessName,
			Service:     o.ServiceName,
			AutoRestart: o.AutoRestartEligible,
			Evidence:    o.Evidence,
		})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(list); err != nil {
		return failureError(err)
	}
	return nil
}
