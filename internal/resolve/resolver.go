package resolve

import (
	"context"
	"log/slog"
	"strings"

	"github.com/permscan/permscan/internal/adapter"
	"github.com/permscan/permscan/internal/model"
)

// Resolver flattens principals into effective-access entries.
type Resolver struct {
	content   adapter.ContentAdapter
	directory adapter.DirectoryAdapter
	cache     *Context

	// maxDepth bounds the nesting depth of emitted entries. Deeper
	// membership degrades to a depth-exceeded sentinel.
	maxDepth int

	// excluded holds principal ids and login names that must never be
	// expanded.
	excluded map[string]bool

	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDepth sets the maximum nesting depth. Values below 1 are
// ignored; validation belongs to the config layer.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth >= 1 {
			r.maxDepth = depth
		}
	}
}

// WithExcludedGroups sets the principals (by id or login name) the
// resolver reports as opaque instead of expanding.
func WithExcludedGroups(identifiers ...string) Option {
	return func(r *Resolver) {
		for _, id := range identifiers {
			r.excluded[id] = true
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver using the given adapters and cache context.
func New(content adapter.ContentAdapter, directory adapter.DirectoryAdapter, cache *Context, opts ...Option) *Resolver {
	r := &Resolver{
		content:   content,
		directory: directory,
		cache:     cache,
		maxDepth:  5,
		excluded:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Resolve expands one role assignment into effective-access entries.
// It never returns an error: a principal that cannot be expanded
// degrades to a sentinel entry, so one bad group never aborts the
// enclosing target.
func (r *Resolver) Resolve(ctx context.Context, siteURL string, assignment model.RoleAssignment) []model.EffectiveAccessEntry {
	p := assignment.Principal

	if p.Kind == model.PrincipalUser {
		return []model.EffectiveAccessEntry{{
			PrincipalLogin:  p.LoginName,
			DisplayName:     p.DisplayName,
			Email:           p.Email,
			PermissionLevel: assignment.PermissionLevel,
			Assignment:      model.AssignmentDirect,
		}}
	}

	// Exclusion is checked before the cache and before any membership
	// fetch: an excluded group is reported opaque every time it is
	// encountered, with zero expansion work.
	if r.excluded[p.ID] || r.excluded[p.LoginName] {
		return []model.EffectiveAccessEntry{r.sentinel(p, []model.AccessStep{step(p)}, model.UnresolvedExcluded, assignment.PermissionLevel)}
	}

	entries := r.flattened(ctx, siteURL, p)

	// Cached results are level-independent; bind the assignment's
	// level (and sharing-link provenance) on a copy.
	sharingLink := isSharingLink(p)
	out := make([]model.EffectiveAccessEntry, 0, len(entries))
	for _, e := range entries {
		e.PermissionLevel = assignment.PermissionLevel
		if sharingLink {
			e.Assignment = model.AssignmentViaSharingLink
		}
		out = append(out, e)
	}
	return out
}

// flattened returns the group's members relative to the group itself,
// from cache when possible.
func (r *Resolver) flattened(ctx context.Context, siteURL string, g model.PrincipalRef) []model.EffectiveAccessEntry {
	if entries, ok := r.cache.lookup(g); ok {
		return entries
	}
	entries, _ := r.flatten(ctx, siteURL, g, map[string]bool{})
	return entries
}

// flatten computes a group's transitive membership relative to the
// group: every returned access path starts with the group itself.
// visiting holds the ids of groups currently being expanded anywhere
// on the call stack; an edge back into one of them closes a cycle and
// is replaced by a cycle sentinel.
//
// The returned flag reports whether the result is valid in every
// context. A result truncated by a cycle edge, or containing a
// fetch-failure sentinel, only holds for this particular expansion:
// caching it would under-report the group's members when it is later
// resolved as a root, or keep reporting a failure the backend has long
// recovered from. Such results are returned but never stored, and the
// flag propagates so no ancestor stores them either.
func (r *Resolver) flatten(ctx context.Context, siteURL string, g model.PrincipalRef, visiting map[string]bool) ([]model.EffectiveAccessEntry, bool) {
	if entries, ok := r.cache.lookup(g); ok {
		return entries, true
	}

	visiting[g.ID] = true
	defer delete(visiting, g.ID)

	base := []model.AccessStep{step(g)}

	members, err := r.members(ctx, siteURL, g)
	if err != nil {
		r.logger.Warn("membership fetch failed",
			"group", g.ID,
			"kind", g.Kind.String(),
			"error", err,
		)
		return []model.EffectiveAccessEntry{r.sentinel(g, base, model.UnresolvedFetchFailed, "")}, false
	}

	cacheable := true
	var out []model.EffectiveAccessEntry
	for _, m := range members {
		if m.Kind == model.PrincipalUser {
			out = append(out, model.EffectiveAccessEntry{
				PrincipalLogin: m.LoginName,
				DisplayName:    m.DisplayName,
				Email:          m.Email,
				AccessPath:     base,
				NestingDepth:   model.PathDepth(base),
				Assignment:     model.AssignmentViaGroup,
			})
			continue
		}

		// A group listing itself as a member never survives
		// resolution.
		if m.ID == g.ID {
			continue
		}

		if r.excluded[m.ID] || r.excluded[m.LoginName] {
			out = append(out, r.sentinel(m, appendStep(base, m), model.UnresolvedExcluded, ""))
			continue
		}

		if visiting[m.ID] {
			r.logger.Debug("membership cycle detected",
				"group", g.ID,
				"member", m.ID,
			)
			out = append(out, r.sentinel(m, appendStep(base, m), model.UnresolvedCycle, ""))
			cacheable = false
			continue
		}

		sub, ok := r.flatten(ctx, siteURL, m, visiting)
		if !ok {
			cacheable = false
		}
		for _, e := range sub {
			out = append(out, e.Rebased(base))
		}
	}

	out = r.clampDepth(out)
	if cacheable {
		r.cache.store(g, out)
	}
	return out, cacheable
}

// members fetches a group's direct members from the adapter matching
// the group's kind.
func (r *Resolver) members(ctx context.Context, siteURL string, g model.PrincipalRef) ([]model.PrincipalRef, error) {
	if g.Kind == model.PrincipalDirectoryGroup {
		return r.directory.GroupMembers(ctx, g.ID)
	}
	return r.content.GroupMembers(ctx, siteURL, g.ID)
}

// clampDepth enforces the nesting-depth bound: entries nested deeper
// than maxDepth are replaced by one depth-exceeded sentinel per
// truncated chain, so every emitted entry satisfies depth <= maxDepth.
func (r *Resolver) clampDepth(entries []model.EffectiveAccessEntry) []model.EffectiveAccessEntry {
	var out []model.EffectiveAccessEntry
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.NestingDepth <= r.maxDepth {
			out = append(out, e)
			continue
		}
		trunc := e.AccessPath[:r.maxDepth+1]
		key := pathKey(trunc)
		if seen[key] {
			continue
		}
		seen[key] = true
		last := trunc[len(trunc)-1]
		out = append(out, model.EffectiveAccessEntry{
			PrincipalLogin: last.GroupID,
			AccessPath:     trunc,
			NestingDepth:   model.PathDepth(trunc),
			Assignment:     model.AssignmentViaGroup,
			Unresolved:     model.UnresolvedDepthExceeded,
		})
	}
	return out
}

// sentinel builds the opaque entry standing in for a group that was
// not expanded.
func (r *Resolver) sentinel(g model.PrincipalRef, path []model.AccessStep, reason, level string) model.EffectiveAccessEntry {
	return model.EffectiveAccessEntry{
		PrincipalLogin:  g.LoginName,
		DisplayName:     g.DisplayName,
		PermissionLevel: level,
		AccessPath:      path,
		NestingDepth:    model.PathDepth(path),
		Assignment:      model.AssignmentViaGroup,
		Unresolved:      reason,
	}
}

// step converts a principal to an access-path step.
func step(p model.PrincipalRef) model.AccessStep {
	return model.AccessStep{GroupID: p.ID, GroupKind: p.Kind}
}

// appendStep returns base + the principal's step in a fresh slice, so
// sibling expansions never alias the same backing array.
func appendStep(base []model.AccessStep, p model.PrincipalRef) []model.AccessStep {
	path := make([]model.AccessStep, 0, len(base)+1)
	path = append(path, base...)
	path = append(path, step(p))
	return path
}

// pathKey builds a map key from an access path.
func pathKey(path []model.AccessStep) string {
	var b strings.Builder
	for _, s := range path {
		b.WriteString(s.GroupID)
		b.WriteByte('/')
	}
	return b.String()
}

// isSharingLink reports whether a container-scoped group is a sharing
// link pseudo-group. The backend names these "SharingLinks.<guid>".
func isSharingLink(p model.PrincipalRef) bool {
	return p.Kind == model.PrincipalSiteGroup &&
		(strings.Contains(p.LoginName, "SharingLinks.") || strings.Contains(p.DisplayName, "SharingLinks."))
}
