package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/permscan/permscan/internal/model"
)

// SQLite provides SQLite-based storage for scan output rows.
//
// Design decision: We use a single database file per scan session
// rather than one file per target. This keeps cross-target queries
// (e.g. "which users hold Full Control anywhere") simple and makes
// backup/restore a single-file operation.
type SQLite struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures SQLite sink behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// OpenSQLite opens or creates the scan database at dbDir/permscan.db.
// If CreateIfNotExists is false and the database doesn't exist, an
// error is returned.
func OpenSQLite(dbDir string, opts Options) (*SQLite, error) {
	dbPath := filepath.Join(dbDir, "permscan.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating
	// new files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single pooled connection
	// avoids SQLITE_BUSY under the scan's single-writer flush pattern.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLite{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.dbPath
}

// createTables creates the database schema if it doesn't exist.
// Upsert keys make re-inserting the tail of an interrupted flush
// window a no-op, which is what at-least-once resume requires.
func (s *SQLite) createTables() error {
	schema := `
	-- Containers visited during the tree walk
	CREATE TABLE IF NOT EXISTS containers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_sequence INTEGER NOT NULL,
		node_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		title TEXT,
		path TEXT NOT NULL,
		has_unique_permissions INTEGER NOT NULL DEFAULT 0,
		UNIQUE(target_sequence, kind, path)
	);

	CREATE INDEX IF NOT EXISTS idx_containers_target ON containers(target_sequence);

	-- Container-scoped permission groups
	CREATE TABLE IF NOT EXISTS permission_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_sequence INTEGER NOT NULL,
		group_id TEXT NOT NULL,
		role_name TEXT,
		title TEXT,
		permission_level TEXT,
		is_owner_group INTEGER NOT NULL DEFAULT 0,
		UNIQUE(target_sequence, group_id)
	);

	-- Effective access on containers with broken inheritance
	CREATE TABLE IF NOT EXISTS container_access (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_sequence INTEGER NOT NULL,
		scope_id INTEGER NOT NULL,
		scope_kind TEXT NOT NULL,
		scope_path TEXT NOT NULL,
		principal_login TEXT NOT NULL,
		display_name TEXT,
		email TEXT,
		permission_level TEXT NOT NULL,
		access_path TEXT NOT NULL DEFAULT '[]',
		nesting_depth INTEGER NOT NULL DEFAULT 0,
		assignment TEXT NOT NULL,
		unresolved TEXT,
		UNIQUE(target_sequence, scope_kind, scope_path, scope_id, principal_login, permission_level, access_path)
	);

	CREATE INDEX IF NOT EXISTS idx_caccess_login ON container_access(principal_login);

	-- Items with broken permission inheritance
	CREATE TABLE IF NOT EXISTS broken_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_sequence INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		title TEXT,
		path TEXT NOT NULL,
		UNIQUE(target_sequence, item_id, path)
	);

	-- Effective access on broken items
	CREATE TABLE IF NOT EXISTS item_access (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_sequence INTEGER NOT NULL,
		scope_id INTEGER NOT NULL,
		scope_kind TEXT NOT NULL,
		scope_path TEXT NOT NULL,
		principal_login TEXT NOT NULL,
		display_name TEXT,
		email TEXT,
		permission_level TEXT NOT NULL,
		access_path TEXT NOT NULL DEFAULT '[]',
		nesting_depth INTEGER NOT NULL DEFAULT 0,
		assignment TEXT NOT NULL,
		unresolved TEXT,
		UNIQUE(target_sequence, scope_kind, scope_path, scope_id, principal_login, permission_level, access_path)
	);

	CREATE INDEX IF NOT EXISTS idx_iaccess_login ON item_access(principal_login);

	-- Per-target scan summaries
	CREATE TABLE IF NOT EXISTS scan_summary (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		target_sequence INTEGER NOT NULL,
		target_url TEXT NOT NULL,
		target_kind TEXT NOT NULL,
		container_index INTEGER NOT NULL DEFAULT 0,
		item_index INTEGER NOT NULL DEFAULT 0,
		items_scanned INTEGER NOT NULL DEFAULT 0,
		broken_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		finished_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, target_sequence)
	);

	CREATE INDEX IF NOT EXISTS idx_summary_run ON scan_summary(run_id);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// WriteBatch persists one homogeneous batch of rows inside a single
// transaction.
func (s *SQLite) WriteBatch(ctx context.Context, kind model.RecordKind, rows []model.Record) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, row := range rows {
		if err := s.insertRow(ctx, tx, kind, row); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s batch: %w", kind, err)
	}
	return nil
}

func (s *SQLite) insertRow(ctx context.Context, tx *sql.Tx, kind model.RecordKind, row model.Record) error {
	switch r := row.(type) {
	case model.ContainerRow:
		return insertContainer(ctx, tx, r)
	case model.GroupRow:
		return insertGroup(ctx, tx, r)
	case model.AccessRow:
		return insertAccess(ctx, tx, r)
	case model.BrokenItemRow:
		return insertBrokenItem(ctx, tx, r)
	case model.SummaryRow:
		return insertSummary(ctx, tx, r)
	default:
		return fmt.Errorf("unsupported record type %T for kind %s", row, kind)
	}
}

func insertContainer(ctx context.Context, tx *sql.Tx, r model.ContainerRow) error {
	query := `
	INSERT INTO containers (target_sequence, node_id, kind, title, path, has_unique_permissions)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(target_sequence, kind, path) DO UPDATE SET
		node_id = excluded.node_id,
		title = excluded.title,
		has_unique_permissions = excluded.has_unique_permissions
	`

	_, err := tx.ExecContext(ctx, query,
		r.TargetSequence,
		r.Node.ID,
		r.Node.Kind.String(),
		r.Node.Title,
		r.Node.Path,
		boolToInt(r.Node.HasUniquePermissions),
	)
	if err != nil {
		return fmt.Errorf("failed to insert container row: %w", err)
	}
	return nil
}

func insertGroup(ctx context.Context, tx *sql.Tx, r model.GroupRow) error {
	query := `
	INSERT INTO permission_groups (target_sequence, group_id, role_name, title, permission_level, is_owner_group)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(target_sequence, group_id) DO UPDATE SET
		role_name = excluded.role_name,
		title = excluded.title,
		permission_level = excluded.permission_level,
		is_owner_group = excluded.is_owner_group
	`

	_, err := tx.ExecContext(ctx, query,
		r.TargetSequence,
		r.Group.ID,
		r.Group.RoleName,
		r.Group.Title,
		r.Group.PermissionLevel,
		boolToInt(r.Group.IsOwnerGroup),
	)
	if err != nil {
		return fmt.Errorf("failed to insert group row: %w", err)
	}
	return nil
}

func insertAccess(ctx context.Context, tx *sql.Tx, r model.AccessRow) error {
	table := "container_access"
	if r.RecordKind() == model.RecordItemAccess {
		table = "item_access"
	}

	pathJSON, err := json.Marshal(r.Entry.AccessPath)
	if err != nil {
		return fmt.Errorf("failed to serialize access path: %w", err)
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (target_sequence, scope_id, scope_kind, scope_path, principal_login,
		display_name, email, permission_level, access_path, nesting_depth, assignment, unresolved)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(target_sequence, scope_kind, scope_path, scope_id, principal_login, permission_level, access_path)
	DO NOTHING
	`, table)

	_, err = tx.ExecContext(ctx, query,
		r.TargetSequence,
		r.Scope.ID,
		r.Scope.Kind.String(),
		r.Scope.Path,
		r.Entry.PrincipalLogin,
		r.Entry.DisplayName,
		r.Entry.Email,
		r.Entry.PermissionLevel,
		string(pathJSON),
		r.Entry.NestingDepth,
		r.Entry.Assignment.String(),
		r.Entry.Unresolved,
	)
	if err != nil {
		return fmt.Errorf("failed to insert access row: %w", err)
	}
	return nil
}

func insertBrokenItem(ctx context.Context, tx *sql.Tx, r model.BrokenItemRow) error {
	query := `
	INSERT INTO broken_items (target_sequence, item_id, kind, title, path)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(target_sequence, item_id, path) DO NOTHING
	`

	_, err := tx.ExecContext(ctx, query,
		r.TargetSequence,
		r.Item.ID,
		r.Item.Kind.String(),
		r.Item.Title,
		r.Item.Path,
	)
	if err != nil {
		return fmt.Errorf("failed to insert broken item row: %w", err)
	}
	return nil
}

func insertSummary(ctx context.Context, tx *sql.Tx, r model.SummaryRow) error {
	query := `
	INSERT INTO scan_summary (run_id, target_sequence, target_url, target_kind,
		container_index, item_index, items_scanned, broken_count, status, error, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, target_sequence) DO UPDATE SET
		container_index = excluded.container_index,
		item_index = excluded.item_index,
		items_scanned = excluded.items_scanned,
		broken_count = excluded.broken_count,
		status = excluded.status,
		error = excluded.error,
		finished_at = excluded.finished_at
	`

	_, err := tx.ExecContext(ctx, query,
		r.RunID,
		r.TargetSequence,
		r.TargetURL,
		r.TargetKind,
		r.ContainerIndex,
		r.ItemIndex,
		r.ItemsScanned,
		r.BrokenCount,
		r.Status,
		r.Err,
		r.FinishedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("failed to insert summary row: %w", err)
	}
	return nil
}

// ListSummaries returns every per-target summary ordered by run and
// target sequence. The status command uses this to show what previous
// runs accomplished.
func (s *SQLite) ListSummaries(ctx context.Context) ([]model.SummaryRow, error) {
	query := `
	SELECT run_id, target_sequence, target_url, target_kind,
		container_index, item_index, items_scanned, broken_count, status, error, finished_at
	FROM scan_summary
	ORDER BY run_id, target_sequence
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	var results []model.SummaryRow
	for rows.Next() {
		var r model.SummaryRow
		var errText sql.NullString
		var finished string

		err := rows.Scan(
			&r.RunID,
			&r.TargetSequence,
			&r.TargetURL,
			&r.TargetKind,
			&r.ContainerIndex,
			&r.ItemIndex,
			&r.ItemsScanned,
			&r.BrokenCount,
			&r.Status,
			&errText,
			&finished,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}

		r.Err = errText.String
		r.FinishedAt = parseTimestamp(finished)
		results = append(results, r)
	}

	return results, rows.Err()
}

// RowCounts returns the number of stored rows per output stream.
func (s *SQLite) RowCounts(ctx context.Context) (map[string]int64, error) {
	tables := []string{
		model.RecordContainer.String(),
		model.RecordPermissionGroup.String(),
		model.RecordContainerAccess.String(),
		model.RecordBrokenItem.String(),
		model.RecordItemAccess.String(),
		model.RecordSummary.String(),
	}

	counts := make(map[string]int64, len(tables))
	for _, table := range tables {
		var n int64
		// Table names come from RecordKind.String, never from input.
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s rows: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
