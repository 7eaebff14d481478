package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/permscan/permscan/internal/model"
)

// DefaultGraphBase is the directory API base URL.
const DefaultGraphBase = "https://graph.microsoft.com/v1.0"

// memberPageSize is the directory member page size. The API caps pages
// at 999 members and hands back a continuation link for the rest.
const memberPageSize = 999

// Directory implements adapter.DirectoryAdapter against the identity
// provider's graph API.
type Directory struct {
	api  *apiClient
	base string
}

// DirectoryOption configures a Directory adapter.
type DirectoryOption func(*Directory)

// WithGraphBase overrides the directory API base URL.
func WithGraphBase(base string) DirectoryOption {
	return func(d *Directory) {
		d.base = strings.TrimRight(base, "/")
	}
}

// WithDirectoryHTTPClient sets a custom HTTP client.
func WithDirectoryHTTPClient(client *http.Client) DirectoryOption {
	return func(d *Directory) {
		d.api.client = client
	}
}

// NewDirectory creates a Directory adapter authenticating with the
// given token source.
func NewDirectory(token TokenSource, opts ...DirectoryOption) *Directory {
	d := &Directory{
		api:  newAPIClient(nil, token),
		base: DefaultGraphBase,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type directoryMemberJSON struct {
	Type              string `json:"@odata.type"`
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// GroupMembers implements adapter.DirectoryAdapter. Only direct
// members are returned; the resolver expands nesting. Continuation
// links are followed until the listing is complete.
func (d *Directory) GroupMembers(ctx context.Context, groupID string) ([]model.PrincipalRef, error) {
	endpoint := fmt.Sprintf("%s/groups/%s/members?$select=id,displayName,mail,userPrincipalName&$top=%d",
		d.base, url.PathEscape(groupID), memberPageSize)

	var refs []model.PrincipalRef
	for endpoint != "" {
		var resp struct {
			Value    []directoryMemberJSON `json:"value"`
			NextLink string                `json:"@odata.nextLink"`
		}
		if err := d.api.getJSON(ctx, endpoint, &resp); err != nil {
			return nil, err
		}

		for _, m := range resp.Value {
			refs = append(refs, m.ref())
		}
		endpoint = resp.NextLink
	}
	return refs, nil
}

// ref converts a directory object into the model's shape. Anything
// that is not a group is treated as a user: contacts and service
// principals hold access like users and never expand further.
func (m directoryMemberJSON) ref() model.PrincipalRef {
	if strings.EqualFold(m.Type, "#microsoft.graph.group") {
		return model.PrincipalRef{
			ID:          m.ID,
			Kind:        model.PrincipalDirectoryGroup,
			LoginName:   "c:0t.c|tenant|" + m.ID,
			DisplayName: m.DisplayName,
		}
	}
	return model.PrincipalRef{
		ID:          m.ID,
		Kind:        model.PrincipalUser,
		LoginName:   m.UserPrincipalName,
		DisplayName: m.DisplayName,
		Email:       m.Mail,
	}
}
