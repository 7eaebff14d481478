package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/permscan/permscan/internal/adapter"
	"github.com/permscan/permscan/internal/model"
)

// Principal type codes used by the content backend.
const (
	principalTypeUser           = 1
	principalTypeDirectoryGroup = 4
	principalTypeSiteGroup      = 8
)

// Content implements adapter.ContentAdapter against the content
// backend's REST API.
type Content struct {
	api *apiClient

	// webs caches resolved web URLs so ancestor probing for container
	// references pays its round-trips once per web.
	mu   sync.Mutex
	webs map[string]bool
}

// ContentOption configures a Content adapter.
type ContentOption func(*Content)

// WithContentHTTPClient sets a custom HTTP client. The default uses a
// 60 second per-request timeout.
func WithContentHTTPClient(client *http.Client) ContentOption {
	return func(c *Content) {
		c.api.client = client
	}
}

// NewContent creates a Content adapter authenticating with the given
// token source.
func NewContent(token TokenSource, opts ...ContentOption) *Content {
	c := &Content{
		api:  newAPIClient(nil, token),
		webs: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type webJSON struct {
	Title string `json:"Title"`
	URL   string `json:"Url"`
}

// ResolveSite implements adapter.ContentAdapter.
func (c *Content) ResolveSite(ctx context.Context, ref string) (*adapter.SiteInfo, error) {
	base := strings.TrimRight(ref, "/")

	var web webJSON
	if err := c.api.getJSON(ctx, base+"/_api/web?$select=Title,Url", &web); err != nil {
		return nil, err
	}

	var site struct {
		URL string `json:"Url"`
	}
	if err := c.api.getJSON(ctx, base+"/_api/site?$select=Url", &site); err != nil {
		return nil, err
	}

	c.rememberWeb(web.URL)
	return &adapter.SiteInfo{
		URL:    web.URL,
		Title:  web.Title,
		IsRoot: equalURL(web.URL, site.URL),
	}, nil
}

type folderJSON struct {
	Name              string `json:"Name"`
	Exists            bool   `json:"Exists"`
	ServerRelativeURL string `json:"ServerRelativeUrl"`
	ListItemAllFields struct {
		ID                       int64 `json:"Id"`
		HasUniqueRoleAssignments bool  `json:"HasUniqueRoleAssignments"`
	} `json:"ListItemAllFields"`
}

// ResolveContainer implements adapter.ContentAdapter. The owning web
// is found by probing the reference's ancestors, longest first, since
// the backend has no cross-site lookup for arbitrary paths.
func (c *Content) ResolveContainer(ctx context.Context, ref string) (*adapter.ContainerInfo, error) {
	webURL, err := c.owningWeb(ctx, ref)
	if err != nil {
		return nil, err
	}

	serverRel := serverRelative(ref)
	endpoint := webURL + "/_api/web/GetFolderByServerRelativeUrl('" + odataString(serverRel) + "')" +
		"?$expand=ListItemAllFields&$select=Name,Exists,ServerRelativeUrl,ListItemAllFields/Id,ListItemAllFields/HasUniqueRoleAssignments"

	var folder folderJSON
	if err := c.api.getJSON(ctx, endpoint, &folder); err != nil {
		return nil, err
	}
	if !folder.Exists {
		return nil, fmt.Errorf("folder %s: %w", serverRel, adapter.ErrNotFound)
	}

	parentIsRoot := path.Dir(folder.ServerRelativeURL) == serverRelative(webURL)
	kind := model.NodeFolder
	if parentIsRoot {
		kind = model.NodeList
	}

	return &adapter.ContainerInfo{
		Node: model.ContentNode{
			ID:                   folder.ListItemAllFields.ID,
			Kind:                 kind,
			Title:                folder.Name,
			Path:                 folder.ServerRelativeURL,
			HasUniquePermissions: folder.ListItemAllFields.HasUniqueRoleAssignments,
		},
		SiteURL:      webURL,
		ParentIsRoot: parentIsRoot,
	}, nil
}

type listJSON struct {
	Title                    string `json:"Title"`
	Hidden                   bool   `json:"Hidden"`
	HasUniqueRoleAssignments bool   `json:"HasUniqueRoleAssignments"`
	RootFolder               struct {
		ServerRelativeURL string `json:"ServerRelativeUrl"`
	} `json:"RootFolder"`
}

// ListContainers implements adapter.ContentAdapter.
func (c *Content) ListContainers(ctx context.Context, siteURL string) ([]model.ContentNode, error) {
	q := url.Values{}
	q.Set("$select", "Title,Hidden,HasUniqueRoleAssignments")
	q.Set("$expand", "RootFolder")
	q.Set("$filter", "Hidden eq false")

	var resp struct {
		Value []listJSON `json:"value"`
	}
	if err := c.api.getJSON(ctx, siteURL+"/_api/web/lists?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	nodes := make([]model.ContentNode, 0, len(resp.Value))
	for _, l := range resp.Value {
		if l.Hidden {
			continue
		}
		nodes = append(nodes, model.ContentNode{
			Kind:                 model.NodeList,
			Title:                l.Title,
			Path:                 l.RootFolder.ServerRelativeURL,
			HasUniquePermissions: l.HasUniqueRoleAssignments,
		})
	}
	return nodes, nil
}

// ListSubsites implements adapter.ContentAdapter.
func (c *Content) ListSubsites(ctx context.Context, siteURL string) ([]string, error) {
	var resp struct {
		Value []struct {
			URL string `json:"Url"`
		} `json:"value"`
	}
	if err := c.api.getJSON(ctx, siteURL+"/_api/web/webs?$select=Url", &resp); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(resp.Value))
	for _, w := range resp.Value {
		c.rememberWeb(w.URL)
		urls = append(urls, w.URL)
	}
	return urls, nil
}

type itemJSON struct {
	ID                       int64  `json:"Id"`
	Title                    string `json:"Title"`
	FileRef                  string `json:"FileRef"`
	HasUniqueRoleAssignments bool   `json:"HasUniqueRoleAssignments"`
}

// ListItems implements adapter.ContentAdapter. Pages are requested by
// continuation id, never offset: the filter asks for ids strictly
// greater than afterID in ascending order.
func (c *Content) ListItems(ctx context.Context, siteURL, containerPath string, afterID int64, pageSize int) ([]model.ContentNode, error) {
	q := url.Values{}
	q.Set("@p", "'"+odataString(containerPath)+"'")
	q.Set("$select", "Id,Title,FileRef,HasUniqueRoleAssignments")
	q.Set("$filter", fmt.Sprintf("Id gt %d", afterID))
	q.Set("$orderby", "Id")
	q.Set("$top", strconv.Itoa(pageSize))

	var resp struct {
		Value []itemJSON `json:"value"`
	}
	if err := c.api.getJSON(ctx, siteURL+"/_api/web/GetList(@p)/items?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	nodes := make([]model.ContentNode, 0, len(resp.Value))
	for _, item := range resp.Value {
		nodes = append(nodes, model.ContentNode{
			ID:                   item.ID,
			Kind:                 model.NodeItem,
			Title:                item.Title,
			Path:                 item.FileRef,
			HasUniquePermissions: item.HasUniqueRoleAssignments,
		})
	}
	return nodes, nil
}

type memberJSON struct {
	ID            int    `json:"Id"`
	PrincipalType int    `json:"PrincipalType"`
	LoginName     string `json:"LoginName"`
	Title         string `json:"Title"`
	Email         string `json:"Email"`
}

// ref converts a backend principal into the model's shape. Directory
// groups are identified by the object id encoded in the claim login,
// because that id is what the directory API expands.
func (m memberJSON) ref() model.PrincipalRef {
	kind := principalKind(m.PrincipalType)
	id := strconv.Itoa(m.ID)
	if kind == model.PrincipalDirectoryGroup {
		id = directoryObjectID(m.LoginName)
	}
	return model.PrincipalRef{
		ID:          id,
		Kind:        kind,
		LoginName:   m.LoginName,
		DisplayName: m.Title,
		Email:       m.Email,
	}
}

type roleAssignmentJSON struct {
	Member                 memberJSON `json:"Member"`
	RoleDefinitionBindings []struct {
		Name string `json:"Name"`
	} `json:"RoleDefinitionBindings"`
}

// RoleAssignments implements adapter.ContentAdapter. A principal bound
// to several role definitions yields one assignment per definition.
func (c *Content) RoleAssignments(ctx context.Context, scope adapter.Scope) ([]model.RoleAssignment, error) {
	q := url.Values{}
	q.Set("@p", "'"+odataString(scope.ContainerPath)+"'")
	q.Set("$expand", "Member,RoleDefinitionBindings")

	endpoint := scope.SiteURL + "/_api/web/GetList(@p)"
	if scope.ItemID != 0 {
		endpoint += fmt.Sprintf("/items(%d)", scope.ItemID)
	}
	endpoint += "/roleassignments?" + q.Encode()

	var resp struct {
		Value []roleAssignmentJSON `json:"value"`
	}
	if err := c.api.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	var assignments []model.RoleAssignment
	for _, ra := range resp.Value {
		principal := ra.Member.ref()
		for _, binding := range ra.RoleDefinitionBindings {
			assignments = append(assignments, model.RoleAssignment{
				Principal:       principal,
				PermissionLevel: binding.Name,
			})
		}
	}
	return assignments, nil
}

// SiteGroups implements adapter.ContentAdapter. Groups and their
// levels come from the web's role assignments; the associated owner
// group marks which one owns the site.
func (c *Content) SiteGroups(ctx context.Context, siteURL string) ([]model.PermissionGroup, error) {
	var owner struct {
		ID int `json:"Id"`
	}
	if err := c.api.getJSON(ctx, siteURL+"/_api/web/associatedownergroup?$select=Id", &owner); err != nil {
		// A web without an associated owner group is legal.
		if !errors.Is(err, adapter.ErrNotFound) {
			return nil, err
		}
	}

	q := url.Values{}
	q.Set("$expand", "Member,RoleDefinitionBindings")

	var resp struct {
		Value []roleAssignmentJSON `json:"value"`
	}
	if err := c.api.getJSON(ctx, siteURL+"/_api/web/roleassignments?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	var groups []model.PermissionGroup
	for _, ra := range resp.Value {
		if ra.Member.PrincipalType != principalTypeSiteGroup {
			continue
		}
		level := ""
		if len(ra.RoleDefinitionBindings) > 0 {
			level = ra.RoleDefinitionBindings[0].Name
		}
		groups = append(groups, model.PermissionGroup{
			ID:              strconv.Itoa(ra.Member.ID),
			RoleName:        ra.Member.LoginName,
			Title:           ra.Member.Title,
			PermissionLevel: level,
			IsOwnerGroup:    owner.ID != 0 && ra.Member.ID == owner.ID,
		})
	}
	return groups, nil
}

// GroupMembers implements adapter.ContentAdapter.
func (c *Content) GroupMembers(ctx context.Context, siteURL, groupID string) ([]model.PrincipalRef, error) {
	endpoint := fmt.Sprintf("%s/_api/web/sitegroups/getbyid(%s)/users?$select=Id,LoginName,Title,Email,PrincipalType",
		siteURL, url.PathEscape(groupID))

	var resp struct {
		Value []memberJSON `json:"value"`
	}
	if err := c.api.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	refs := make([]model.PrincipalRef, 0, len(resp.Value))
	for _, m := range resp.Value {
		refs = append(refs, m.ref())
	}
	return refs, nil
}

// owningWeb finds the web owning a container reference by probing the
// reference's ancestor paths, longest first. Resolved webs are cached
// so repeated references under the same web probe once.
func (c *Content) owningWeb(ctx context.Context, ref string) (string, error) {
	u, err := url.Parse(strings.TrimRight(ref, "/"))
	if err != nil {
		return "", fmt.Errorf("failed to parse reference %s: %w", ref, err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		candidate := u.Scheme + "://" + u.Host
		if i > 0 {
			candidate += "/" + strings.Join(segments[:i], "/")
		}

		if c.knownWeb(candidate) {
			return candidate, nil
		}

		var web webJSON
		probeErr := c.api.getJSON(ctx, candidate+"/_api/web?$select=Url", &web)
		if probeErr == nil {
			c.rememberWeb(candidate)
			return candidate, nil
		}
		if !errors.Is(probeErr, adapter.ErrNotFound) {
			return "", probeErr
		}
	}
	return "", fmt.Errorf("no web owns %s: %w", ref, adapter.ErrNotFound)
}

func (c *Content) knownWeb(webURL string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.webs[strings.TrimRight(webURL, "/")]
}

func (c *Content) rememberWeb(webURL string) {
	if webURL == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.webs[strings.TrimRight(webURL, "/")] = true
}

func principalKind(t int) model.PrincipalKind {
	switch t {
	case principalTypeSiteGroup:
		return model.PrincipalSiteGroup
	case principalTypeDirectoryGroup:
		return model.PrincipalDirectoryGroup
	default:
		return model.PrincipalUser
	}
}

// directoryObjectID extracts the directory object id from a claim
// login such as "c:0t.c|tenant|9f2c...". Logins without claim pipes
// are returned as-is.
func directoryObjectID(login string) string {
	if i := strings.LastIndex(login, "|"); i >= 0 {
		return login[i+1:]
	}
	return login
}

// serverRelative returns the decoded path component of a URL.
func serverRelative(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return strings.TrimRight(u.Path, "/")
}

// odataString escapes a value for use inside an OData string literal.
func odataString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func equalURL(a, b string) bool {
	return strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(b, "/"))
}
