// Package resolve flattens permission-bearing principals into concrete
// users: direct users, container-scoped groups, and nested directory
// groups.
//
// Resolution is cycle-safe and depth-bounded. Membership graphs in
// real tenants contain true cycles (group A contains B contains A), so
// the resolver tracks the chain of groups currently being expanded and
// drops membership edges that would close a cycle, independent of the
// depth guard. Either bound degrades to a sentinel entry in the output
// rather than an error: a scan must survive any membership graph.
//
// Two cache scopes live in an explicit Context owned by the
// orchestrator: container-scoped group results are discarded between
// scan targets, directory group results survive the whole run. Cached
// results are stored relative to their group and rebased under the
// caller's access path on reuse, so one directory group shared by many
// containers is fetched once per run.
//
// The resolver is not safe for concurrent use; cache writes are
// single-writer by design.
package resolve
