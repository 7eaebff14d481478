package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for permscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permscan",
		Short: "Permission auditing tool for site collections",
		Long: `Permscan audits effective permissions across site collections.
It walks content trees, finds items with broken permission inheritance,
and resolves every grant down to concrete users, expanding nested group
memberships with cycle and depth safety.

Scans are resumable: progress is checkpointed with every output flush,
and an interrupted run continues where it stopped.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
