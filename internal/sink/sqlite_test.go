package sink

import (
	"context"
	"testing"
	"time"

	"github.com/permscan/permscan/internal/model"
)

func containerBatch() []model.Record {
	return []model.Record{
		model.ContainerRow{
			TargetSequence: 1,
			Node: model.ContentNode{
				ID: 100, Kind: model.NodeList, Title: "Documents",
				Path: "/sites/hr/Shared Documents", HasUniquePermissions: true,
			},
		},
		model.ContainerRow{
			TargetSequence: 1,
			Node: model.ContentNode{
				ID: 101, Kind: model.NodeFolder, Title: "Reviews",
				Path: "/sites/hr/Shared Documents/Reviews",
			},
		},
	}
}

func TestSQLite_WriteBatch(t *testing.T) {
	t.Parallel()

	t.Run("stores container rows", func(t *testing.T) {
		t.Parallel()

		s, err := OpenSQLite(t.TempDir(), DefaultOptions())
		if err != nil {
			t.Fatalf("OpenSQLite() error = %v", err)
		}
		defer s.Close()

		ctx := context.Background()
		if err := s.WriteBatch(ctx, model.RecordContainer, containerBatch()); err != nil {
			t.Fatalf("WriteBatch() error = %v", err)
		}

		counts, err := s.RowCounts(ctx)
		if err != nil {
			t.Fatalf("RowCounts() error = %v", err)
		}
		if counts["containers"] != 2 {
			t.Errorf("containers count = %d, want 2", counts["containers"])
		}
	})

	t.Run("replaying a batch does not duplicate rows", func(t *testing.T) {
		t.Parallel()

		s, err := OpenSQLite(t.TempDir(), DefaultOptions())
		if err != nil {
			t.Fatalf("OpenSQLite() error = %v", err)
		}
		defer s.Close()

		ctx := context.Background()
		batch := containerBatch()
		for i := 0; i < 3; i++ {
			if err := s.WriteBatch(ctx, model.RecordContainer, batch); err != nil {
				t.Fatalf("WriteBatch() #%d error = %v", i, err)
			}
		}

		counts, err := s.RowCounts(ctx)
		if err != nil {
			t.Fatalf("RowCounts() error = %v", err)
		}
		if counts["containers"] != 2 {
			t.Errorf("containers count after replay = %d, want 2", counts["containers"])
		}
	})

	t.Run("routes access rows by scope kind", func(t *testing.T) {
		t.Parallel()

		s, err := OpenSQLite(t.TempDir(), DefaultOptions())
		if err != nil {
			t.Fatalf("OpenSQLite() error = %v", err)
		}
		defer s.Close()

		entry := model.EffectiveAccessEntry{
			PrincipalLogin:  "i:0#.f|membership|alice@contoso.com",
			DisplayName:     "Alice",
			PermissionLevel: "Contribute",
			Assignment:      model.AssignmentViaGroup,
			AccessPath: []model.AccessStep{
				{GroupID: "3", GroupKind: model.PrincipalSiteGroup},
			},
		}
		listScope := model.ContentNode{ID: 10, Kind: model.NodeList, Path: "/sites/hr/Docs"}
		itemScope := model.ContentNode{ID: 42, Kind: model.NodeItem, Path: "/sites/hr/Docs/42_.000"}

		ctx := context.Background()
		err = s.WriteBatch(ctx, model.RecordContainerAccess, []model.Record{
			model.AccessRow{TargetSequence: 1, Scope: listScope, Entry: entry},
		})
		if err != nil {
			t.Fatalf("WriteBatch(container access) error = %v", err)
		}
		err = s.WriteBatch(ctx, model.RecordItemAccess, []model.Record{
			model.AccessRow{TargetSequence: 1, Scope: itemScope, Entry: entry},
		})
		if err != nil {
			t.Fatalf("WriteBatch(item access) error = %v", err)
		}

		counts, err := s.RowCounts(ctx)
		if err != nil {
			t.Fatalf("RowCounts() error = %v", err)
		}
		if counts["container_access"] != 1 {
			t.Errorf("container_access count = %d, want 1", counts["container_access"])
		}
		if counts["item_access"] != 1 {
			t.Errorf("item_access count = %d, want 1", counts["item_access"])
		}
	})

	t.Run("summary upsert keeps the latest state per target", func(t *testing.T) {
		t.Parallel()

		s, err := OpenSQLite(t.TempDir(), DefaultOptions())
		if err != nil {
			t.Fatalf("OpenSQLite() error = %v", err)
		}
		defer s.Close()

		ctx := context.Background()
		first := model.SummaryRow{
			RunID: "run-1", TargetSequence: 0,
			TargetURL: "https://contoso.example/sites/hr", TargetKind: "site",
			ItemsScanned: 100, Status: "error", Err: "throttled",
			FinishedAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		}
		second := first
		second.ItemsScanned = 5000
		second.Status = "done"
		second.Err = ""
		second.FinishedAt = first.FinishedAt.Add(time.Hour)

		if err := s.WriteBatch(ctx, model.RecordSummary, []model.Record{first}); err != nil {
			t.Fatalf("WriteBatch(first) error = %v", err)
		}
		if err := s.WriteBatch(ctx, model.RecordSummary, []model.Record{second}); err != nil {
			t.Fatalf("WriteBatch(second) error = %v", err)
		}

		summaries, err := s.ListSummaries(ctx)
		if err != nil {
			t.Fatalf("ListSummaries() error = %v", err)
		}
		if len(summaries) != 1 {
			t.Fatalf("len(summaries) = %d, want 1", len(summaries))
		}
		got := summaries[0]
		if got.Status != "done" {
			t.Errorf("Status = %q, want %q", got.Status, "done")
		}
		if got.ItemsScanned != 5000 {
			t.Errorf("ItemsScanned = %d, want 5000", got.ItemsScanned)
		}
		if got.Err != "" {
			t.Errorf("Err = %q, want empty", got.Err)
		}
	})
}

func TestOpenSQLite(t *testing.T) {
	t.Parallel()

	t.Run("requires existing database when creation is disabled", func(t *testing.T) {
		t.Parallel()

		opts := Options{CreateIfNotExists: false, EnableWAL: true}
		if _, err := OpenSQLite(t.TempDir(), opts); err == nil {
			t.Error("OpenSQLite() succeeded for a missing database, want error")
		}
	})

	t.Run("reopens an existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s, err := OpenSQLite(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("OpenSQLite() error = %v", err)
		}
		ctx := context.Background()
		if err := s.WriteBatch(ctx, model.RecordContainer, containerBatch()); err != nil {
			t.Fatalf("WriteBatch() error = %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		reopened, err := OpenSQLite(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("reopen error = %v", err)
		}
		defer reopened.Close()

		counts, err := reopened.RowCounts(ctx)
		if err != nil {
			t.Fatalf("RowCounts() error = %v", err)
		}
		if counts["containers"] != 2 {
			t.Errorf("containers count after reopen = %d, want 2", counts["containers"])
		}
	})
}
