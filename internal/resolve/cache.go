package resolve

import "github.com/permscan/permscan/internal/model"

// Context carries the two resolution cache scopes. It replaces what
// would otherwise be process-wide lookup tables: the orchestrator owns
// one Context per run, which makes cache lifetimes explicit and
// testable.
//
// Cached entries are stored relative to their group: every access path
// starts with the cached group itself. Callers rebase them under the
// current chain on reuse.
type Context struct {
	// scoped caches container-scoped group results. Cleared at the
	// start of every scan target, because the same numeric group id
	// means different groups on different sites.
	scoped map[string][]model.EffectiveAccessEntry

	// durable caches directory group results. Directory group ids are
	// tenant-wide, so entries stay valid for the entire run and are
	// never discarded mid-run.
	durable map[string][]model.EffectiveAccessEntry
}

// NewContext creates an empty resolution context.
func NewContext() *Context {
	return &Context{
		scoped:  make(map[string][]model.EffectiveAccessEntry),
		durable: make(map[string][]model.EffectiveAccessEntry),
	}
}

// ResetScoped discards the container-scoped cache. The orchestrator
// calls this between scan targets; the durable cache is untouched.
func (c *Context) ResetScoped() {
	c.scoped = make(map[string][]model.EffectiveAccessEntry)
}

// ScopedSize returns the number of cached container-scoped groups.
func (c *Context) ScopedSize() int { return len(c.scoped) }

// DurableSize returns the number of cached directory groups.
func (c *Context) DurableSize() int { return len(c.durable) }

// lookup returns the cached relative result for a group, choosing the
// scope by principal kind.
func (c *Context) lookup(p model.PrincipalRef) ([]model.EffectiveAccessEntry, bool) {
	if p.Kind == model.PrincipalDirectoryGroup {
		entries, ok := c.durable[p.ID]
		return entries, ok
	}
	entries, ok := c.scoped[p.ID]
	return entries, ok
}

// store caches the relative result for a group in its scope.
func (c *Context) store(p model.PrincipalRef, entries []model.EffectiveAccessEntry) {
	if p.Kind == model.PrincipalDirectoryGroup {
		c.durable[p.ID] = entries
		return
	}
	c.scoped[p.ID] = entries
}
