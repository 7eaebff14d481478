package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultMaxDepth bounds group-membership recursion. 5 levels
	// covers every nesting observed in real tenants; deeper chains are
	// reported as depth-exceeded sentinels rather than expanded.
	DefaultMaxDepth = 5

	// DefaultPageSize is the item listing page size. The listing
	// backend caps pages at a few thousand rows, and larger requests
	// are throttled more aggressively; 2000 keeps each round-trip
	// comfortably under the backend's own limit.
	DefaultPageSize = 2000

	// DefaultFlushBatchSize is the number of buffered output rows that
	// triggers a flush plus checkpoint save. A crash loses at most one
	// batch of progress.
	DefaultFlushBatchSize = 500

	// DefaultRetryAttempts caps adapter-level retries for throttled
	// calls. After the cap the failure surfaces as a per-item
	// resolution failure, never as a crash.
	DefaultRetryAttempts = 4

	// DefaultRetryInitialDelay is the first backoff delay. Subsequent
	// delays grow exponentially with jitter.
	DefaultRetryInitialDelay = 500 * time.Millisecond

	// AppName is the application name used for XDG directory paths.
	AppName = "permscan"
)

// DefaultIgnoredLevels are permission levels filtered out of
// effective-access output. "Limited Access" is granted automatically by
// the backend for item-level sharing navigation and carries no real
// grant of its own.
var DefaultIgnoredLevels = []string{"Limited Access"}

// DefaultIgnoredAccounts are system accounts filtered out of
// effective-access output.
var DefaultIgnoredAccounts = []string{
	"SHAREPOINT\\system",
	"NT AUTHORITY\\authenticated users",
	"app@sharepoint",
}

// DefaultExcludedContainers are built-in system lists skipped during
// the container walk. They exist on every site and never hold
// user-governed content.
var DefaultExcludedContainers = []string{
	"Style Library",
	"Form Templates",
	"Site Assets",
	"Master Page Gallery",
	"Composed Looks",
	"Web Part Gallery",
	"Theme Gallery",
	"Solution Gallery",
	"List Template Gallery",
	"User Information List",
}

// DefaultExcludedGroups are directory principals never expanded into
// members: organization-wide pseudo-groups whose expansion would list
// the entire tenant. The resolver reports them as opaque entries.
var DefaultExcludedGroups = []string{
	"Everyone",
	"Everyone except external users",
	"All Users",
}

// Config holds all scanner settings in a single flat struct: the
// option count is manageable and nesting would add indirection without
// benefit.
type Config struct {
	// Targets is the ordered list of input references. Checkpoint
	// targets are identified by position in this list, so order must
	// be stable across a resume.
	Targets []string

	// MaxDepth is the maximum group-nesting depth the resolver
	// expands. Deeper membership is reported as a sentinel entry.
	MaxDepth int

	// PageSize is the item listing page size. Pages are always fetched
	// by continuation id, never by offset.
	PageSize int

	// FlushBatchSize is the buffered-row count that triggers an output
	// flush and checkpoint save.
	FlushBatchSize int

	// IncludeSubsites enables recursing into subsites when scanning a
	// site target.
	IncludeSubsites bool

	// ExcludedGroups are principal identifiers (login name or id) that
	// must never be expanded into members.
	ExcludedGroups []string

	// ExcludedContainers are container titles skipped during the walk.
	ExcludedContainers []string

	// IgnoredLevels are permission levels dropped from output.
	IgnoredLevels []string

	// IgnoredAccounts are principal logins dropped from output.
	IgnoredAccounts []string

	// RetryAttempts caps adapter-level retries per call.
	RetryAttempts int

	// RetryInitialDelay is the first retry backoff delay.
	RetryInitialDelay time.Duration

	// CheckpointPath is the checkpoint file location. Empty means the
	// XDG state directory.
	CheckpointPath string

	// Resume controls whether a valid checkpoint is honored at
	// startup. When false the run starts at target 0 and the old
	// checkpoint is overwritten.
	Resume bool

	// DBDir is the directory for the SQLite result database. Empty
	// disables the SQLite sink.
	DBDir string

	// OutDir is the directory for CSV output files. Empty disables
	// the CSV sink.
	OutDir string

	// SummaryFile is the path for the Markdown run summary. Empty
	// disables summary generation.
	SummaryFile string

	// PolicyFilePath is the path to the YAML policy file. Empty means
	// search the standard locations.
	PolicyFilePath string

	// Verbose enables debug-level logging.
	Verbose bool
}

// NewConfig returns a Config with all defaults applied. Many defaults
// are non-zero, so zero-value construction is not supported.
func NewConfig() *Config {
	return &Config{
		MaxDepth:           DefaultMaxDepth,
		PageSize:           DefaultPageSize,
		FlushBatchSize:     DefaultFlushBatchSize,
		IncludeSubsites:    true,
		ExcludedGroups:     append([]string(nil), DefaultExcludedGroups...),
		ExcludedContainers: append([]string(nil), DefaultExcludedContainers...),
		IgnoredLevels:      append([]string(nil), DefaultIgnoredLevels...),
		IgnoredAccounts:    append([]string(nil), DefaultIgnoredAccounts...),
		RetryAttempts:      DefaultRetryAttempts,
		RetryInitialDelay:  DefaultRetryInitialDelay,
		Resume:             true,
	}
}

// XDGDataDir returns the XDG data directory used for the SQLite result
// database (~/.local/share/permscan on Linux).
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGStateDir returns the XDG state directory used for checkpoint
// files (~/.local/state/permscan on Linux). State, not data: a
// checkpoint is working state that loses meaning once a run completes.
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// DefaultCheckpointPath returns the checkpoint file path used when no
// explicit location is configured.
func DefaultCheckpointPath() string {
	return filepath.Join(XDGStateDir(), "checkpoint.json")
}

// Validate checks the configuration and returns the first problem
// found. Called once after CLI parsing; an invalid configuration is the
// only error class permitted to abort a whole run.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.MaxDepth < 1 {
		return ErrInvalidMaxDepth
	}
	if c.PageSize < 1 {
		return ErrInvalidPageSize
	}
	if c.FlushBatchSize < 1 {
		return ErrInvalidFlushSize
	}
	if c.RetryAttempts < 1 {
		return ErrInvalidRetryAttempts
	}
	if c.RetryInitialDelay < 0 {
		return ErrInvalidRetryDelay
	}
	return nil
}
