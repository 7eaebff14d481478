package enumerate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/permscan/permscan/internal/adapter"
	"github.com/permscan/permscan/internal/model"
	"github.com/permscan/permscan/internal/resolve"
)

// treeAdapter is an in-memory content backend for enumerator tests.
type treeAdapter struct {
	containers    map[string][]model.ContentNode       // siteURL -> containers
	subsites      map[string][]string                  // siteURL -> subsite URLs
	groups        map[string][]model.PermissionGroup   // siteURL -> site groups
	assignments   map[string][]model.RoleAssignment    // containerPath -> assignments
	members       map[string][]model.PrincipalRef      // site group id -> members
	assignmentErr map[string]error                     // containerPath -> injected error
}

func newTreeAdapter() *treeAdapter {
	return &treeAdapter{
		containers:    make(map[string][]model.ContentNode),
		subsites:      make(map[string][]string),
		groups:        make(map[string][]model.PermissionGroup),
		assignments:   make(map[string][]model.RoleAssignment),
		members:       make(map[string][]model.PrincipalRef),
		assignmentErr: make(map[string]error),
	}
}

func (a *treeAdapter) ResolveSite(context.Context, string) (*adapter.SiteInfo, error) {
	return nil, adapter.ErrNotFound
}

func (a *treeAdapter) ResolveContainer(context.Context, string) (*adapter.ContainerInfo, error) {
	return nil, adapter.ErrNotFound
}

func (a *treeAdapter) ListContainers(_ context.Context, siteURL string) ([]model.ContentNode, error) {
	return a.containers[siteURL], nil
}

func (a *treeAdapter) ListSubsites(_ context.Context, siteURL string) ([]string, error) {
	return a.subsites[siteURL], nil
}

func (a *treeAdapter) ListItems(context.Context, string, string, int64, int) ([]model.ContentNode, error) {
	return nil, nil
}

func (a *treeAdapter) RoleAssignments(_ context.Context, scope adapter.Scope) ([]model.RoleAssignment, error) {
	if err := a.assignmentErr[scope.ContainerPath]; err != nil {
		return nil, err
	}
	return a.assignments[scope.ContainerPath], nil
}

func (a *treeAdapter) SiteGroups(_ context.Context, siteURL string) ([]model.PermissionGroup, error) {
	return a.groups[siteURL], nil
}

func (a *treeAdapter) GroupMembers(_ context.Context, _ string, groupID string) ([]model.PrincipalRef, error) {
	return a.members[groupID], nil
}

func testUser(id string) model.PrincipalRef {
	return model.PrincipalRef{
		ID:          id,
		Kind:        model.PrincipalUser,
		LoginName:   id + "@contoso.example",
		DisplayName: id,
		Email:       id + "@contoso.example",
	}
}

func newEnumerator(a *treeAdapter, opts ...EnumOption) *Enumerator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := resolve.New(a, nil, resolve.NewContext(), resolve.WithLogger(logger))
	opts = append(opts, WithEnumLogger(logger))
	return New(a, resolver, opts...)
}

// TestWalkContainers covers exclusion filtering and subsite recursion.
func TestWalkContainers(t *testing.T) {
	t.Parallel()

	t.Run("excluded containers are filtered out", func(t *testing.T) {
		t.Parallel()

		a := newTreeAdapter()
		a.containers["site"] = []model.ContentNode{
			{ID: 1, Kind: model.NodeList, Title: "Documents"},
			{ID: 2, Kind: model.NodeList, Title: "Style Library"},
			{ID: 3, Kind: model.NodeList, Title: "Reports"},
		}
		e := newEnumerator(a, WithExcludedContainers("Style Library"))

		located, err := e.WalkContainers(context.Background(), "site", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(located) != 2 {
			t.Fatalf("expected 2 containers, got %d", len(located))
		}
		for _, l := range located {
			if l.Node.Title == "Style Library" {
				t.Error("excluded container was not filtered")
			}
		}
	})

	t.Run("subsite containers follow their parent", func(t *testing.T) {
		t.Parallel()

		a := newTreeAdapter()
		a.containers["site"] = []model.ContentNode{{ID: 1, Kind: model.NodeList, Title: "Documents"}}
		a.subsites["site"] = []string{"site/sub"}
		a.containers["site/sub"] = []model.ContentNode{{ID: 2, Kind: model.NodeList, Title: "Archive"}}
		e := newEnumerator(a)

		located, err := e.WalkContainers(context.Background(), "site", true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(located) != 2 {
			t.Fatalf("expected 2 containers, got %d", len(located))
		}
		if located[1].SiteURL != "site/sub" {
			t.Errorf("expected subsite container located at its own web, got %s", located[1].SiteURL)
		}
	})

	t.Run("subsites are not walked when disabled", func(t *testing.T) {
		t.Parallel()

		a := newTreeAdapter()
		a.containers["site"] = []model.ContentNode{{ID: 1, Kind: model.NodeList, Title: "Documents"}}
		a.subsites["site"] = []string{"site/sub"}
		a.containers["site/sub"] = []model.ContentNode{{ID: 2, Kind: model.NodeList, Title: "Archive"}}
		e := newEnumerator(a)

		located, err := e.WalkContainers(context.Background(), "site", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(located) != 1 {
			t.Errorf("expected 1 container, got %d", len(located))
		}
	})
}

// TestAccess covers assignment filtering and resolution.
func TestAccess(t *testing.T) {
	t.Parallel()

	t.Run("ignored levels are dropped before resolution", func(t *testing.T) {
		t.Parallel()

		a := newTreeAdapter()
		a.assignments["/lib"] = []model.RoleAssignment{
			{Principal: testUser("alice"), PermissionLevel: "Contribute"},
			{Principal: testUser("ghost"), PermissionLevel: "Limited Access"},
		}
		e := newEnumerator(a, WithIgnoredLevels("Limited Access"))

		entries, err := e.Access(context.Background(), adapter.Scope{SiteURL: "site", ContainerPath: "/lib"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
		if entries[0].PrincipalLogin != "alice@contoso.example" {
			t.Errorf("unexpected entry: %+v", entries[0])
		}
	})

	t.Run("ignored system accounts are dropped after resolution", func(t *testing.T) {
		t.Parallel()

		system := model.PrincipalRef{
			ID: "sys", Kind: model.PrincipalUser,
			LoginName: "SHAREPOINT\\system", DisplayName: "System Account",
		}
		a := newTreeAdapter()
		a.assignments["/lib"] = []model.RoleAssignment{
			{Principal: system, PermissionLevel: "Full Control"},
			{Principal: testUser("alice"), PermissionLevel: "Read"},
		}
		e := newEnumerator(a, WithIgnoredAccounts("SHAREPOINT\\system"))

		entries, err := e.Access(context.Background(), adapter.Scope{SiteURL: "site", ContainerPath: "/lib"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
	})

	t.Run("group assignments resolve through membership", func(t *testing.T) {
		t.Parallel()

		a := newTreeAdapter()
		a.members["9"] = []model.PrincipalRef{testUser("alice"), testUser("bob")}
		a.assignments["/lib"] = []model.RoleAssignment{
			{
				Principal:       model.PrincipalRef{ID: "9", Kind: model.PrincipalSiteGroup, LoginName: "Lib Members"},
				PermissionLevel: "Contribute",
			},
		}
		e := newEnumerator(a)

		entries, err := e.Access(context.Background(), adapter.Scope{SiteURL: "site", ContainerPath: "/lib"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		for _, entry := range entries {
			if entry.NestingDepth != 0 {
				t.Errorf("expected direct members at depth 0, got %d", entry.NestingDepth)
			}
			if entry.AccessPath[0].GroupID != "9" {
				t.Errorf("expected path rooted at group 9, got %+v", entry.AccessPath)
			}
		}
	})
}

// TestAccessBatch verifies concurrent fetch with per-scope failure
// isolation.
func TestAccessBatch(t *testing.T) {
	t.Parallel()

	a := newTreeAdapter()
	a.assignments["/a"] = []model.RoleAssignment{{Principal: testUser("alice"), PermissionLevel: "Read"}}
	a.assignments["/c"] = []model.RoleAssignment{{Principal: testUser("carol"), PermissionLevel: "Read"}}
	a.assignmentErr["/b"] = errors.New("throttled out")
	e := newEnumerator(a)

	results := e.AccessBatch(context.Background(), []adapter.Scope{
		{SiteURL: "site", ContainerPath: "/a"},
		{SiteURL: "site", ContainerPath: "/b"},
		{SiteURL: "site", ContainerPath: "/c"},
	})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil || len(results[0].Entries) != 1 {
		t.Errorf("expected scope /a to resolve, got %+v", results[0])
	}
	if results[1].Err == nil {
		t.Error("expected scope /b to carry its error")
	}
	if results[2].Err != nil || len(results[2].Entries) != 1 {
		t.Errorf("expected scope /c to resolve despite /b failing, got %+v", results[2])
	}
}
