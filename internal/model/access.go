package model

// AssignmentKind describes how a resolved user came to hold access on
// a container or item.
type AssignmentKind int

const (
	// AssignmentDirect means the user appears directly in the role
	// assignment, with no group in between.
	AssignmentDirect AssignmentKind = iota

	// AssignmentViaGroup means access flows through one or more
	// groups; the chain is recorded in the access path.
	AssignmentViaGroup

	// AssignmentViaSharingLink means access was granted through an
	// item-level sharing link pseudo-group.
	AssignmentViaSharingLink
)

// String returns the assignment kind name used in output rows.
func (k AssignmentKind) String() string {
	switch k {
	case AssignmentDirect:
		return "direct"
	case AssignmentViaGroup:
		return "via_group"
	case AssignmentViaSharingLink:
		return "via_sharing_link"
	default:
		return "unknown"
	}
}

// Unresolved reason codes recorded on sentinel entries. A sentinel
// entry stands in for membership the resolver could not, or was
// configured not to, expand. Sentinels are ordinary rows in the output;
// they never abort a scan.
const (
	// UnresolvedDepthExceeded marks a group whose nesting exceeded the
	// configured maximum depth.
	UnresolvedDepthExceeded = "depth exceeded"

	// UnresolvedCycle marks a group that reappeared on its own access
	// path.
	UnresolvedCycle = "membership cycle"

	// UnresolvedExcluded marks a group on the expansion exclusion list
	// (e.g. an organization-wide pseudo-group), reported opaque by
	// policy.
	UnresolvedExcluded = "excluded from expansion"

	// UnresolvedFetchFailed marks a principal whose membership fetch
	// failed after adapter-level retries.
	UnresolvedFetchFailed = "membership fetch failed"
)

// AccessStep is one hop in an access path: the group that was expanded
// to reach the next principal.
type AccessStep struct {
	GroupID   string        `json:"group_id"`
	GroupKind PrincipalKind `json:"group_kind"`
}

// EffectiveAccessEntry is one resolved grant: a concrete user (or an
// unexpanded sentinel principal) holding a permission level on a
// container or item, together with the group chain that produced it.
type EffectiveAccessEntry struct {
	// PrincipalLogin is the resolved user's login name, or the group
	// login for sentinel entries.
	PrincipalLogin string `json:"principal_login"`

	// DisplayName is the resolved principal's display name.
	DisplayName string `json:"display_name"`

	// Email is the resolved user's email, when known.
	Email string `json:"email,omitempty"`

	// PermissionLevel is the level granted at the root of the access
	// path.
	PermissionLevel string `json:"permission_level"`

	// AccessPath is the ordered chain of groups expanded to reach this
	// principal. Empty for direct assignments.
	AccessPath []AccessStep `json:"access_path,omitempty"`

	// NestingDepth is the number of group hops below the root of the
	// access path: 0 for direct grants and for direct members of the
	// granted group, 1 for members one nesting level further down, and
	// so on. Always max(0, len(AccessPath)-1).
	NestingDepth int `json:"nesting_depth"`

	// Assignment describes how the grant reached the principal.
	Assignment AssignmentKind `json:"assignment"`

	// Unresolved is empty for fully resolved users. For sentinel
	// entries it carries one of the Unresolved* reason codes.
	Unresolved string `json:"unresolved,omitempty"`
}

// Rebased returns a copy of the entry with prefix prepended to its
// access path and its nesting depth recomputed. The resolver uses this
// to reuse cached flattened group results under a different parent
// chain.
func (e EffectiveAccessEntry) Rebased(prefix []AccessStep) EffectiveAccessEntry {
	if len(prefix) == 0 {
		return e
	}
	path := make([]AccessStep, 0, len(prefix)+len(e.AccessPath))
	path = append(path, prefix...)
	path = append(path, e.AccessPath...)
	e.AccessPath = path
	e.NestingDepth = len(path) - 1
	if e.Assignment == AssignmentDirect {
		e.Assignment = AssignmentViaGroup
	}
	return e
}

// PathDepth returns the nesting depth implied by an access path.
func PathDepth(path []AccessStep) int {
	if len(path) == 0 {
		return 0
	}
	return len(path) - 1
}
