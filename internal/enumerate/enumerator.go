package enumerate

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/permscan/permscan/internal/adapter"
	"github.com/permscan/permscan/internal/model"
	"github.com/permscan/permscan/internal/resolve"
)

// Located is a container together with the web that owns it. A site
// walk may span subsites, so the owning web cannot be derived from the
// target alone.
type Located struct {
	SiteURL string
	Node    model.ContentNode
}

// AccessResult is the outcome of resolving one scope in a batch. A
// failed scope carries its error instead of aborting the batch.
type AccessResult struct {
	Entries []model.EffectiveAccessEntry
	Err     error
}

// Enumerator walks content trees and resolves effective access on
// inheritance breaks.
type Enumerator struct {
	content  adapter.ContentAdapter
	resolver *resolve.Resolver

	// excludedContainers are container titles skipped during walks
	// (built-in system lists).
	excludedContainers map[string]bool

	// ignoredLevels are permission levels dropped before resolution.
	ignoredLevels map[string]bool

	// ignoredAccounts are principal logins dropped from resolved
	// output.
	ignoredAccounts map[string]bool

	// prefetch bounds concurrent role-assignment fetches in a batch.
	prefetch int

	logger *slog.Logger
}

// EnumOption configures an Enumerator.
type EnumOption func(*Enumerator)

// WithExcludedContainers sets the container titles skipped during
// walks.
func WithExcludedContainers(titles ...string) EnumOption {
	return func(e *Enumerator) {
		for _, t := range titles {
			e.excludedContainers[t] = true
		}
	}
}

// WithIgnoredLevels sets permission levels filtered out of output.
func WithIgnoredLevels(levels ...string) EnumOption {
	return func(e *Enumerator) {
		for _, l := range levels {
			e.ignoredLevels[l] = true
		}
	}
}

// WithIgnoredAccounts sets principal logins filtered out of output.
func WithIgnoredAccounts(logins ...string) EnumOption {
	return func(e *Enumerator) {
		for _, a := range logins {
			e.ignoredAccounts[a] = true
		}
	}
}

// WithPrefetch bounds concurrent role-assignment fetches. Default 4;
// values below 1 force serial fetching.
func WithPrefetch(n int) EnumOption {
	return func(e *Enumerator) {
		if n >= 1 {
			e.prefetch = n
		}
	}
}

// WithEnumLogger sets a custom logger.
func WithEnumLogger(logger *slog.Logger) EnumOption {
	return func(e *Enumerator) {
		e.logger = logger
	}
}

// New creates an Enumerator.
func New(content adapter.ContentAdapter, resolver *resolve.Resolver, opts ...EnumOption) *Enumerator {
	e := &Enumerator{
		content:            content,
		resolver:           resolver,
		excludedContainers: make(map[string]bool),
		ignoredLevels:      make(map[string]bool),
		ignoredAccounts:    make(map[string]bool),
		prefetch:           4,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// WalkContainers returns the containers of a web, minus exclusions,
// optionally followed by the containers of every nested subsite. The
// returned order is deterministic (backend order, subsites after their
// parent) because checkpoints index into it.
func (e *Enumerator) WalkContainers(ctx context.Context, siteURL string, includeSubsites bool) ([]Located, error) {
	containers, err := e.content.ListContainers(ctx, siteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers of %s: %w", siteURL, err)
	}

	located := make([]Located, 0, len(containers))
	for _, c := range containers {
		if e.excludedContainers[c.Title] {
			e.logger.Debug("skipping excluded container", "container", c.Title, "site", siteURL)
			continue
		}
		located = append(located, Located{SiteURL: siteURL, Node: c})
	}

	if !includeSubsites {
		return located, nil
	}

	subsites, err := e.content.ListSubsites(ctx, siteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list subsites of %s: %w", siteURL, err)
	}
	for _, sub := range subsites {
		nested, err := e.WalkContainers(ctx, sub, includeSubsites)
		if err != nil {
			// A broken subsite costs its own subtree, not the walk.
			e.logger.Warn("skipping unreadable subsite", "subsite", sub, "error", err)
			continue
		}
		located = append(located, nested...)
	}
	return located, nil
}

// SiteGroups returns the container-scoped permission groups of a web.
func (e *Enumerator) SiteGroups(ctx context.Context, siteURL string) ([]model.PermissionGroup, error) {
	groups, err := e.content.SiteGroups(ctx, siteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups of %s: %w", siteURL, err)
	}
	return groups, nil
}

// Access fetches a scope's role assignments and resolves them into
// filtered effective-access entries.
func (e *Enumerator) Access(ctx context.Context, scope adapter.Scope) ([]model.EffectiveAccessEntry, error) {
	assignments, err := e.content.RoleAssignments(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch role assignments of %s: %w", scope.ContainerPath, err)
	}
	return e.resolveAssignments(ctx, scope.SiteURL, assignments), nil
}

// AccessBatch resolves several scopes. Role-assignment fetches run
// concurrently (bounded by the prefetch limit); resolution runs
// serially afterwards because it writes the shared caches. One failed
// scope yields an errored result, never a failed batch.
func (e *Enumerator) AccessBatch(ctx context.Context, scopes []adapter.Scope) []AccessResult {
	results := make([]AccessResult, len(scopes))
	fetched := make([][]model.RoleAssignment, len(scopes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.prefetch)
	for i, scope := range scopes {
		g.Go(func() error {
			assignments, err := e.content.RoleAssignments(gctx, scope)
			if err != nil {
				// Recorded per scope; the batch continues.
				results[i] = AccessResult{Err: fmt.Errorf("failed to fetch role assignments of %s: %w", scope.ContainerPath, err)}
				return nil
			}
			fetched[i] = assignments
			return nil
		})
	}
	// Goroutines only record into their own slot, so Wait cannot fail.
	_ = g.Wait()

	for i, scope := range scopes {
		if results[i].Err != nil {
			continue
		}
		results[i].Entries = e.resolveAssignments(ctx, scope.SiteURL, fetched[i])
	}
	return results
}

// NewItemPager creates a continuation pager over a container's items.
func (e *Enumerator) NewItemPager(siteURL, containerPath string, pageSize int, afterID int64) *ItemPager {
	return NewItemPager(e.content, siteURL, containerPath, pageSize, afterID)
}

// resolveAssignments expands assignments through the resolver and
// applies the level and account filters.
func (e *Enumerator) resolveAssignments(ctx context.Context, siteURL string, assignments []model.RoleAssignment) []model.EffectiveAccessEntry {
	var entries []model.EffectiveAccessEntry
	for _, a := range assignments {
		if e.ignoredLevels[a.PermissionLevel] {
			continue
		}
		for _, entry := range e.resolver.Resolve(ctx, siteURL, a) {
			if e.ignoredAccounts[entry.PrincipalLogin] || (entry.Email != "" && e.ignoredAccounts[entry.Email]) {
				continue
			}
			entries = append(entries, entry)
		}
	}
	return entries
}
