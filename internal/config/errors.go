package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Package-level sentinels so callers can match with errors.Is while the
// messages stay self-explanatory.
var (
	// ErrNoTarget is returned when no scan target is specified either
	// as a positional argument or via --targets.
	ErrNoTarget = errors.New("no target specified: provide a target URL or use --targets")

	// ErrInvalidMaxDepth is returned when the resolution depth limit
	// is below 1. A depth of 0 would expand nothing.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be at least 1")

	// ErrInvalidPageSize is returned when the listing page size is
	// below 1.
	ErrInvalidPageSize = errors.New("invalid page size: must be at least 1")

	// ErrInvalidFlushSize is returned when the flush batch size is
	// below 1. Flushing must make progress.
	ErrInvalidFlushSize = errors.New("invalid flush batch size: must be at least 1")

	// ErrInvalidRetryAttempts is returned when the retry attempt cap
	// is below 1. At least the initial attempt must run.
	ErrInvalidRetryAttempts = errors.New("invalid retry attempts: must be at least 1")

	// ErrInvalidRetryDelay is returned when the initial retry delay is
	// negative.
	ErrInvalidRetryDelay = errors.New("invalid retry delay: must be non-negative")
)
