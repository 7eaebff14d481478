package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/permscan/permscan/internal/checkpoint"
	"github.com/permscan/permscan/internal/config"
	"github.com/permscan/permscan/internal/sink"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint state and stored scan results",
		Long: `Status reports whether an interrupted scan can be resumed and
summarizes the results stored in the local database.

Examples:
  permscan status
  permscan status --db ./results --checkpoint ./scan.json`,
		Args: cobra.NoArgs,
		RunE: runStatusCmd,
	}

	cmd.Flags().String("checkpoint", "",
		"Checkpoint file path (default: XDG state directory)")
	cmd.Flags().String("db", config.XDGDataDir(),
		"Directory containing the SQLite result database")

	return cmd
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, _ []string) error {
	ckptPath, err := cmd.Flags().GetString("checkpoint")
	if err != nil {
		return err
	}
	if ckptPath == "" {
		ckptPath = config.DefaultCheckpointPath()
	}
	dbDir, err := cmd.Flags().GetString("db")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	cp, err := checkpoint.NewManager(ckptPath, nil).Load()
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if cp == nil {
		fmt.Fprintf(out, "checkpoint: none (%s)\n", ckptPath)
	} else {
		fmt.Fprintf(out, "checkpoint: %s\n", ckptPath)
		fmt.Fprintf(out, "  run id:      %s\n", cp.RunID)
		fmt.Fprintf(out, "  target:      #%d (container %d, after item %d)\n",
			cp.TargetSequence, cp.ContainerIndex, cp.LastItemID)
		fmt.Fprintf(out, "  progress:    %d item(s) scanned, %d broken\n",
			cp.ItemsScanned, cp.BrokenCount)
		fmt.Fprintf(out, "  updated:     %s\n", cp.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintln(out, "  run 'permscan scan' with the same targets to resume")
	}

	if dbDir == "" {
		return nil
	}
	opts := sink.DefaultOptions()
	opts.CreateIfNotExists = false
	store, err := sink.OpenSQLite(dbDir, opts)
	if err != nil {
		fmt.Fprintf(out, "database:   none (%s)\n", dbDir)
		return nil
	}
	defer store.Close()

	summaries, err := store.ListSummaries(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list scan summaries: %w", err)
	}
	counts, err := store.RowCounts(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to count stored rows: %w", err)
	}

	fmt.Fprintf(out, "\ndatabase: %s\n", dbDir)
	if len(summaries) == 0 {
		fmt.Fprintln(out, "  no completed targets recorded")
	} else {
		w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  TARGET\tKIND\tSTATUS\tITEMS\tBROKEN")
		for _, s := range summaries {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t%d\n",
				s.TargetURL, s.TargetKind, s.Status, s.ItemsScanned, s.BrokenCount)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(out, "  %s: %d row(s)\n", kind, counts[kind])
	}
	return nil
}
