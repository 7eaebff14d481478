package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/permscan/permscan/internal/model"
)

// CSV writes each output stream to its own CSV file under OutDir,
// named after the record kind (containers.csv, broken_items.csv, ...).
// Files are created lazily on the first batch of their kind, with the
// header row written once.
type CSV struct {
	outDir string

	files   map[model.RecordKind]*os.File
	writers map[model.RecordKind]*csv.Writer
}

// NewCSV creates a CSV sink writing under outDir. The directory is
// created if needed.
func NewCSV(outDir string) (*CSV, error) {
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &CSV{
		outDir:  outDir,
		files:   make(map[model.RecordKind]*os.File),
		writers: make(map[model.RecordKind]*csv.Writer),
	}, nil
}

// WriteBatch appends the rows to the stream's CSV file and flushes.
func (c *CSV) WriteBatch(_ context.Context, kind model.RecordKind, rows []model.Record) error {
	if len(rows) == 0 {
		return nil
	}

	w, err := c.writer(kind)
	if err != nil {
		return err
	}

	for _, row := range rows {
		fields, err := csvFields(row)
		if err != nil {
			return err
		}
		if err := w.Write(fields); err != nil {
			return fmt.Errorf("failed to write %s row: %w", kind, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s rows: %w", kind, err)
	}
	return nil
}

// Close flushes and closes every open file.
func (c *CSV) Close() error {
	var firstErr error
	for kind, w := range c.writers {
		w.Flush()
		if err := w.Error(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to flush %s file: %w", kind, err)
		}
	}
	for kind, f := range c.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s file: %w", kind, err)
		}
	}
	c.writers = make(map[model.RecordKind]*csv.Writer)
	c.files = make(map[model.RecordKind]*os.File)
	return firstErr
}

func (c *CSV) writer(kind model.RecordKind) (*csv.Writer, error) {
	if w, ok := c.writers[kind]; ok {
		return w, nil
	}

	path := filepath.Join(c.outDir, kind.String()+".csv")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	w := csv.NewWriter(f)

	// Write the header only when the file is empty, so appending after
	// a resume does not repeat it.
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		if err := w.Write(csvHeader(kind)); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write %s header: %w", kind, err)
		}
	}

	c.files[kind] = f
	c.writers[kind] = w
	return w, nil
}

func csvHeader(kind model.RecordKind) []string {
	switch kind {
	case model.RecordContainer:
		return []string{"target_sequence", "node_id", "kind", "title", "path", "has_unique_permissions"}
	case model.RecordPermissionGroup:
		return []string{"target_sequence", "group_id", "role_name", "title", "permission_level", "is_owner_group"}
	case model.RecordContainerAccess, model.RecordItemAccess:
		return []string{
			"target_sequence", "scope_id", "scope_kind", "scope_path",
			"principal_login", "display_name", "email", "permission_level",
			"access_path", "nesting_depth", "assignment", "unresolved",
		}
	case model.RecordBrokenItem:
		return []string{"target_sequence", "item_id", "kind", "title", "path"}
	case model.RecordSummary:
		return []string{
			"run_id", "target_sequence", "target_url", "target_kind",
			"container_index", "item_index", "items_scanned", "broken_count",
			"status", "error", "finished_at",
		}
	default:
		return []string{"record"}
	}
}

func csvFields(row model.Record) ([]string, error) {
	switch r := row.(type) {
	case model.ContainerRow:
		return []string{
			strconv.Itoa(r.TargetSequence),
			strconv.FormatInt(r.Node.ID, 10),
			r.Node.Kind.String(),
			r.Node.Title,
			r.Node.Path,
			strconv.FormatBool(r.Node.HasUniquePermissions),
		}, nil
	case model.GroupRow:
		return []string{
			strconv.Itoa(r.TargetSequence),
			r.Group.ID,
			r.Group.RoleName,
			r.Group.Title,
			r.Group.PermissionLevel,
			strconv.FormatBool(r.Group.IsOwnerGroup),
		}, nil
	case model.AccessRow:
		pathJSON, err := json.Marshal(r.Entry.AccessPath)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize access path: %w", err)
		}
		return []string{
			strconv.Itoa(r.TargetSequence),
			strconv.FormatInt(r.Scope.ID, 10),
			r.Scope.Kind.String(),
			r.Scope.Path,
			r.Entry.PrincipalLogin,
			r.Entry.DisplayName,
			r.Entry.Email,
			r.Entry.PermissionLevel,
			string(pathJSON),
			strconv.Itoa(r.Entry.NestingDepth),
			r.Entry.Assignment.String(),
			r.Entry.Unresolved,
		}, nil
	case model.BrokenItemRow:
		return []string{
			strconv.Itoa(r.TargetSequence),
			strconv.FormatInt(r.Item.ID, 10),
			r.Item.Kind.String(),
			r.Item.Title,
			r.Item.Path,
		}, nil
	case model.SummaryRow:
		return []string{
			r.RunID,
			strconv.Itoa(r.TargetSequence),
			r.TargetURL,
			r.TargetKind,
			strconv.Itoa(r.ContainerIndex),
			strconv.Itoa(r.ItemIndex),
			strconv.Itoa(r.ItemsScanned),
			strconv.Itoa(r.BrokenCount),
			r.Status,
			r.Err,
			r.FinishedAt.UTC().Format(time.RFC3339),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported record type %T", row)
	}
}
