package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/permscan/permscan/internal/adapter"
	"github.com/permscan/permscan/internal/checkpoint"
	"github.com/permscan/permscan/internal/config"
	"github.com/permscan/permscan/internal/log"
	"github.com/permscan/permscan/internal/remote"
	"github.com/permscan/permscan/internal/report"
	"github.com/permscan/permscan/internal/scan"
	"github.com/permscan/permscan/internal/sink"
)

// Environment variables carrying API credentials. Tokens never appear
// on the command line, where they would leak into shell history and
// process listings.
const (
	envContentToken   = "PERMSCAN_CONTENT_TOKEN"
	envDirectoryToken = "PERMSCAN_DIRECTORY_TOKEN"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [reference...]",
		Short: "Scan site collections for broken permission inheritance",
		Long: `Scan classifies each reference (site, subsite, library, or folder),
walks its content tree, and resolves effective access on every
inheritance break down to concrete users.

Credentials are read from the environment:
  ` + envContentToken + `    bearer token for the content API
  ` + envDirectoryToken + `  bearer token for the directory API

Examples:
  # Scan a single site collection
  permscan scan https://contoso.example/sites/hr

  # Scan every reference listed in a file, one URL per line
  permscan scan --targets sites.txt

  # Tighten group expansion and write CSV output
  permscan scan --max-depth 3 --out ./results https://contoso.example/sites/hr

  # Start over, ignoring a previous checkpoint
  permscan scan --no-resume https://contoso.example/sites/hr

Policy file (.permscan) example:
  max_depth: 3
  include_subsites: false
  excluded_groups:
    - Everyone
    - All Users`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	cmd.Flags().StringP("targets", "f", "",
		"File listing references to scan, one per line")
	cmd.Flags().StringP("policy", "c", "",
		"Policy file path (default: .permscan in current or home directory)")
	cmd.Flags().IntP("max-depth", "d", config.DefaultMaxDepth,
		"Maximum group-nesting depth to expand")
	cmd.Flags().IntP("page-size", "p", config.DefaultPageSize,
		"Item listing page size")
	cmd.Flags().Int("flush", config.DefaultFlushBatchSize,
		"Buffered rows per output flush and checkpoint save")
	cmd.Flags().Bool("no-subsites", false,
		"Do not recurse into subsites of site targets")
	cmd.Flags().String("checkpoint", "",
		"Checkpoint file path (default: XDG state directory)")
	cmd.Flags().Bool("no-resume", false,
		"Ignore an existing checkpoint and start from the beginning")
	cmd.Flags().String("db", config.XDGDataDir(),
		"Directory for the SQLite result database (empty to disable)")
	cmd.Flags().StringP("out", "o", "",
		"Directory for CSV output files (empty to disable)")
	cmd.Flags().StringP("summary", "s", "",
		"Write a Markdown run summary to the specified file")
	cmd.Flags().String("directory-base", remote.DefaultGraphBase,
		"Directory API base URL")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Handle interrupt signals: cancel the run and let the
	// orchestrator persist its checkpoint before exiting.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, saving progress...")
		cancel()
	}()

	return runScan(ctx, cmd, cfg, logger)
}

// runScan wires the adapters, sinks, and orchestrator, then runs the
// scan.
func runScan(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	directoryBase, err := cmd.Flags().GetString("directory-base")
	if err != nil {
		return err
	}

	retryPolicy := adapter.RetryPolicy{
		MaxAttempts:  cfg.RetryAttempts,
		InitialDelay: cfg.RetryInitialDelay,
	}
	content := adapter.NewRetryingContent(
		remote.NewContent(remote.StaticToken(os.Getenv(envContentToken))),
		retryPolicy,
	)
	directory := adapter.NewRetryingDirectory(
		remote.NewDirectory(
			remote.StaticToken(os.Getenv(envDirectoryToken)),
			remote.WithGraphBase(directoryBase),
		),
		retryPolicy,
	)

	var sinks []sink.Sink
	var store *sink.SQLite
	if cfg.DBDir != "" {
		store, err = sink.OpenSQLite(cfg.DBDir, sink.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open result database: %w", err)
		}
		sinks = append(sinks, store)
	}
	if cfg.OutDir != "" {
		csvSink, err := sink.NewCSV(cfg.OutDir)
		if err != nil {
			return fmt.Errorf("failed to create CSV output: %w", err)
		}
		sinks = append(sinks, csvSink)
	}
	if len(sinks) == 0 {
		return errors.New("no output configured: set --db or --out")
	}
	multi := sink.NewMultiSink(sinks...)
	defer func() {
		if err := multi.Close(); err != nil {
			logger.Warn("failed to close output", "error", err)
		}
	}()

	ckpt := checkpoint.NewManager(cfg.CheckpointPath, logger)

	orchestrator := scan.New(cfg, content, directory, multi, ckpt, logger)
	result, runErr := orchestrator.Run(ctx, cfg.Targets)

	if result != nil {
		if err := writeSummary(cmd, cfg, result, store); err != nil {
			logger.Warn("failed to write run summary", "error", err)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("scan interrupted, resume with the same targets: %w", runErr)
		}
		return runErr
	}
	return nil
}

// writeSummary prints the run outcome and optionally renders the
// Markdown summary file.
func writeSummary(cmd *cobra.Command, cfg *config.Config, result *scan.RunResult, store *sink.SQLite) error {
	rs := &report.RunSummary{
		RunID:      result.RunID,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Targets:    result.Summaries,
	}
	if store != nil {
		counts, err := store.RowCounts(cmd.Context())
		if err == nil {
			rs.RowCounts = counts
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "scanned %d target(s): %d item(s), %d with broken inheritance\n",
		len(rs.Targets), rs.ItemsScanned(), rs.BrokenCount())

	if cfg.SummaryFile == "" {
		return nil
	}
	if dir := filepath.Dir(cfg.SummaryFile); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	f, err := os.Create(cfg.SummaryFile) //nolint:gosec // user-provided output path is intentional
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := report.NewMarkdownWriter(f).Write(rs); err != nil {
		return err
	}
	return f.Sync()
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error

	cfg.PolicyFilePath, err = cmd.Flags().GetString("policy")
	if err != nil {
		return nil, err
	}

	// Load the scan policy before reading tuning flags so that an
	// explicitly set flag wins over the policy file. An explicitly
	// specified policy file must exist; the default locations are
	// optional.
	explicitPolicy := cfg.PolicyFilePath != ""
	policyPath := config.FindPolicyFile(cfg.PolicyFilePath)
	if policyPath != "" {
		policy, err := config.LoadPolicyFile(policyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy file %s: %w", policyPath, err)
		}
		policy.Apply(cfg)
	} else if explicitPolicy {
		return nil, fmt.Errorf("policy file not found: %s", cfg.PolicyFilePath)
	}

	if cmd.Flags().Changed("max-depth") {
		cfg.MaxDepth, err = cmd.Flags().GetInt("max-depth")
		if err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("page-size") {
		cfg.PageSize, err = cmd.Flags().GetInt("page-size")
		if err != nil {
			return nil, err
		}
	}

	cfg.FlushBatchSize, err = cmd.Flags().GetInt("flush")
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("no-subsites") {
		noSubsites, err := cmd.Flags().GetBool("no-subsites")
		if err != nil {
			return nil, err
		}
		cfg.IncludeSubsites = !noSubsites
	}

	cfg.CheckpointPath, err = cmd.Flags().GetString("checkpoint")
	if err != nil {
		return nil, err
	}
	if cfg.CheckpointPath == "" {
		cfg.CheckpointPath = config.DefaultCheckpointPath()
	}

	noResume, err := cmd.Flags().GetBool("no-resume")
	if err != nil {
		return nil, err
	}
	cfg.Resume = !noResume

	cfg.DBDir, err = cmd.Flags().GetString("db")
	if err != nil {
		return nil, err
	}

	cfg.OutDir, err = cmd.Flags().GetString("out")
	if err != nil {
		return nil, err
	}

	cfg.SummaryFile, err = cmd.Flags().GetString("summary")
	if err != nil {
		return nil, err
	}

	// Targets come from positional arguments plus the optional list
	// file, in that order. Order matters: checkpoints identify targets
	// by position.
	cfg.Targets = append(cfg.Targets, args...)

	targetsFile, err := cmd.Flags().GetString("targets")
	if err != nil {
		return nil, err
	}
	if targetsFile != "" {
		fromFile, err := readTargetsFile(targetsFile)
		if err != nil {
			return nil, err
		}
		cfg.Targets = append(cfg.Targets, fromFile...)
	}

	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// readTargetsFile reads references from a file, one per line. Blank
// lines and #-comments are skipped.
func readTargetsFile(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided targets path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open targets file: %w", err)
	}
	defer f.Close()

	var refs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		refs = append(refs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	return refs, nil
}
