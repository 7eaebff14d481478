package checkpoint

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_SaveLoad(t *testing.T) {
	t.Parallel()

	t.Run("round trip preserves every field", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
		m := NewManager(path, quietLogger())

		want := &Checkpoint{
			RunID:          "run-42",
			TargetSequence: 3,
			ContainerIndex: 7,
			LastItemID:     6000,
			ItemsScanned:   4321,
			BrokenCount:    12,
		}
		if err := m.Save(want); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := m.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got == nil {
			t.Fatal("Load() returned nil checkpoint")
		}
		if got.RunID != want.RunID {
			t.Errorf("RunID = %q, want %q", got.RunID, want.RunID)
		}
		if got.TargetSequence != want.TargetSequence {
			t.Errorf("TargetSequence = %d, want %d", got.TargetSequence, want.TargetSequence)
		}
		if got.ContainerIndex != want.ContainerIndex {
			t.Errorf("ContainerIndex = %d, want %d", got.ContainerIndex, want.ContainerIndex)
		}
		if got.LastItemID != want.LastItemID {
			t.Errorf("LastItemID = %d, want %d", got.LastItemID, want.LastItemID)
		}
		if got.ItemsScanned != want.ItemsScanned {
			t.Errorf("ItemsScanned = %d, want %d", got.ItemsScanned, want.ItemsScanned)
		}
		if got.BrokenCount != want.BrokenCount {
			t.Errorf("BrokenCount = %d, want %d", got.BrokenCount, want.BrokenCount)
		}
		if got.UpdatedAt.IsZero() {
			t.Error("UpdatedAt was not stamped on save")
		}
	})

	t.Run("save overwrites the previous checkpoint", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "checkpoint.json")
		m := NewManager(path, quietLogger())

		if err := m.Save(&Checkpoint{RunID: "run-1", LastItemID: 10}); err != nil {
			t.Fatalf("first Save() error = %v", err)
		}
		if err := m.Save(&Checkpoint{RunID: "run-1", LastItemID: 20}); err != nil {
			t.Fatalf("second Save() error = %v", err)
		}

		got, err := m.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.LastItemID != 20 {
			t.Errorf("LastItemID = %d, want 20", got.LastItemID)
		}
	})

	t.Run("save leaves no temporary files behind", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		m := NewManager(filepath.Join(dir, "checkpoint.json"), quietLogger())

		if err := m.Save(&Checkpoint{RunID: "run-1"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].Name() != "checkpoint.json" {
			t.Errorf("directory contents = %v, want only checkpoint.json", entries)
		}
	})
}

func TestManager_Load(t *testing.T) {
	t.Parallel()

	t.Run("missing file is not an error", func(t *testing.T) {
		t.Parallel()

		m := NewManager(filepath.Join(t.TempDir(), "absent.json"), quietLogger())
		got, err := m.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %+v, want nil", got)
		}
	})

	t.Run("corrupt json is treated as absent", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "checkpoint.json")
		if err := os.WriteFile(path, []byte(`{"run_id": "run-1", "last_item`), 0o600); err != nil {
			t.Fatal(err)
		}

		m := NewManager(path, quietLogger())
		got, err := m.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %+v, want nil for corrupt file", got)
		}
	})

	t.Run("negative positions are treated as absent", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "checkpoint.json")
		if err := os.WriteFile(path, []byte(`{"run_id":"run-1","container_index":-4}`), 0o600); err != nil {
			t.Fatal(err)
		}

		m := NewManager(path, quietLogger())
		got, err := m.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %+v, want nil for implausible file", got)
		}
	})
}

func TestManager_Clear(t *testing.T) {
	t.Parallel()

	t.Run("removes an existing checkpoint", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "checkpoint.json")
		m := NewManager(path, quietLogger())

		if err := m.Save(&Checkpoint{RunID: "run-1", UpdatedAt: time.Now()}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := m.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("checkpoint still exists after Clear: %v", err)
		}
	})

	t.Run("missing file is not an error", func(t *testing.T) {
		t.Parallel()

		m := NewManager(filepath.Join(t.TempDir(), "absent.json"), quietLogger())
		if err := m.Clear(); err != nil {
			t.Errorf("Clear() error = %v", err)
		}
	})
}
