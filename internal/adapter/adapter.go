package adapter

import (
	"context"

	"github.com/permscan/permscan/internal/model"
)

// SiteInfo describes a web resolved from a reference URL.
type SiteInfo struct {
	// URL is the web's canonical URL.
	URL string

	// Title is the web's display title.
	Title string

	// IsRoot is true when the web is a site-collection root.
	IsRoot bool
}

// ContainerInfo describes a list or folder resolved from a reference
// URL.
type ContainerInfo struct {
	// Node is the resolved container.
	Node model.ContentNode

	// SiteURL is the URL of the web owning the container.
	SiteURL string

	// ParentIsRoot is true when the container's parent folder is the
	// site root, i.e. the container is a top-level library.
	ParentIsRoot bool
}

// Scope identifies a securable object for role-assignment lookups:
// either a container (ItemID zero) or one item within it.
type Scope struct {
	// SiteURL is the owning web.
	SiteURL string

	// ContainerPath is the server-relative container path.
	ContainerPath string

	// ItemID selects one item within the container. Zero means the
	// container itself.
	ItemID int64
}

// ContentAdapter is the contract to the content backend. Retry and
// authentication are the implementation's responsibility.
type ContentAdapter interface {
	// ResolveSite resolves a reference as a web. Returns ErrNotFound
	// when the reference is not a web.
	ResolveSite(ctx context.Context, ref string) (*SiteInfo, error)

	// ResolveContainer resolves a reference as a list or folder.
	// Returns ErrNotFound when the reference is not a container.
	ResolveContainer(ctx context.Context, ref string) (*ContainerInfo, error)

	// ListContainers returns the lists and libraries of a web.
	ListContainers(ctx context.Context, siteURL string) ([]model.ContentNode, error)

	// ListSubsites returns the URLs of webs nested directly below the
	// given web.
	ListSubsites(ctx context.Context, siteURL string) ([]string, error)

	// ListItems returns up to pageSize items of a container with
	// ID strictly greater than afterID, in ascending ID order. This is
	// the only paging contract: implementations must never translate
	// it into an offset, because the backend silently repeats pages
	// under offset paging at scale.
	ListItems(ctx context.Context, siteURL, containerPath string, afterID int64, pageSize int) ([]model.ContentNode, error)

	// RoleAssignments returns the role assignments of a securable
	// object.
	RoleAssignments(ctx context.Context, scope Scope) ([]model.RoleAssignment, error)

	// SiteGroups returns the container-scoped permission groups of a
	// web together with their assigned levels.
	SiteGroups(ctx context.Context, siteURL string) ([]model.PermissionGroup, error)

	// GroupMembers returns the direct members of a container-scoped
	// group.
	GroupMembers(ctx context.Context, siteURL, groupID string) ([]model.PrincipalRef, error)
}

// DirectoryAdapter is the contract to the identity backend.
type DirectoryAdapter interface {
	// GroupMembers returns the direct members of a directory group.
	// The backend returns only one level; nested expansion is the
	// resolver's job.
	GroupMembers(ctx context.Context, groupID string) ([]model.PrincipalRef, error)
}
