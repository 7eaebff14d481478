package model

// PrincipalKind distinguishes the three classes of security principal
// that can appear in a role assignment or a group membership list.
type PrincipalKind int

const (
	// PrincipalUser is a concrete user account.
	PrincipalUser PrincipalKind = iota

	// PrincipalSiteGroup is a group defined within one content
	// container (a "SharePoint group" in the source system). Its
	// membership is scoped to the container and cached only for the
	// duration of one scan target.
	PrincipalSiteGroup

	// PrincipalDirectoryGroup is an identity-provider group shared
	// across the whole tenant. Membership may nest arbitrarily and is
	// cached for the entire run.
	PrincipalDirectoryGroup
)

// String returns the principal kind name used in access paths and logs.
func (k PrincipalKind) String() string {
	switch k {
	case PrincipalUser:
		return "user"
	case PrincipalSiteGroup:
		return "site_group"
	case PrincipalDirectoryGroup:
		return "directory_group"
	default:
		return "unknown"
	}
}

// PrincipalRef identifies one security principal as returned by the
// content or identity backend. It is the unit the resolver expands.
type PrincipalRef struct {
	// ID is the backend identifier: a numeric principal id for
	// container-scoped principals, an object id for directory groups.
	ID string `json:"id"`

	// Kind tells the resolver how to expand the principal.
	Kind PrincipalKind `json:"kind"`

	// LoginName is the claim-encoded login (users) or group name.
	LoginName string `json:"login_name"`

	// DisplayName is the human-readable name.
	DisplayName string `json:"display_name"`

	// Email is the primary email address, when the backend knows one.
	Email string `json:"email,omitempty"`
}

// PermissionGroup is one container-scoped group together with the
// permission level its role assignment grants.
type PermissionGroup struct {
	// ID is the group's principal id within the container.
	ID string `json:"id"`

	// RoleName is the group's internal role name.
	RoleName string `json:"role_name"`

	// Title is the group's display title.
	Title string `json:"title"`

	// PermissionLevel is the permission level assigned to the group on
	// the container (e.g. "Full Control", "Contribute").
	PermissionLevel string `json:"permission_level"`

	// IsOwnerGroup is true for the container's associated owner group.
	IsOwnerGroup bool `json:"is_owner_group"`
}

// RoleAssignment binds one principal to one permission level on a
// container or item. This is the raw shape the enumerator feeds into
// the resolver.
type RoleAssignment struct {
	Principal PrincipalRef `json:"principal"`

	// PermissionLevel is the granted level. Synthetic levels such as
	// "Limited Access" are filtered out before resolution.
	PermissionLevel string `json:"permission_level"`
}
