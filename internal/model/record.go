package model

import "time"

// RecordKind identifies one of the structured output streams a scan
// produces. Sinks receive rows in homogeneous batches, one kind per
// batch.
type RecordKind int

const (
	// RecordContainer lists every container visited under a target.
	RecordContainer RecordKind = iota

	// RecordPermissionGroup lists the container-scoped groups of a
	// target.
	RecordPermissionGroup

	// RecordContainerAccess lists effective access on containers with
	// broken inheritance.
	RecordContainerAccess

	// RecordBrokenItem lists items with broken inheritance.
	RecordBrokenItem

	// RecordItemAccess lists effective access on broken items.
	RecordItemAccess

	// RecordSummary is the per-target progress summary. It is the
	// persisted form of the checkpoint and doubles as a
	// human-readable progress report.
	RecordSummary
)

// String returns the record kind name used as table and file names.
func (k RecordKind) String() string {
	switch k {
	case RecordContainer:
		return "containers"
	case RecordPermissionGroup:
		return "permission_groups"
	case RecordContainerAccess:
		return "container_access"
	case RecordBrokenItem:
		return "broken_items"
	case RecordItemAccess:
		return "item_access"
	case RecordSummary:
		return "scan_summary"
	default:
		return "unknown"
	}
}

// Record is implemented by every output row type. The kind tells a
// sink which stream a batch belongs to without reflection.
type Record interface {
	RecordKind() RecordKind
}

// ContainerRow is one visited container.
type ContainerRow struct {
	TargetSequence int         `json:"target_sequence"`
	Node           ContentNode `json:"node"`
}

// RecordKind implements Record.
func (ContainerRow) RecordKind() RecordKind { return RecordContainer }

// GroupRow is one container-scoped permission group.
type GroupRow struct {
	TargetSequence int             `json:"target_sequence"`
	Group          PermissionGroup `json:"group"`
}

// RecordKind implements Record.
func (GroupRow) RecordKind() RecordKind { return RecordPermissionGroup }

// AccessRow is one effective-access entry on a container or item with
// broken inheritance. The same shape serves both access streams; the
// scope node distinguishes them.
type AccessRow struct {
	TargetSequence int                  `json:"target_sequence"`
	Scope          ContentNode          `json:"scope"`
	Entry          EffectiveAccessEntry `json:"entry"`
}

// RecordKind implements Record.
func (r AccessRow) RecordKind() RecordKind {
	if r.Scope.Kind == NodeItem {
		return RecordItemAccess
	}
	return RecordContainerAccess
}

// BrokenItemRow is one item with broken permission inheritance.
type BrokenItemRow struct {
	TargetSequence int                   `json:"target_sequence"`
	Item           BrokenInheritanceItem `json:"item"`
}

// RecordKind implements Record.
func (BrokenItemRow) RecordKind() RecordKind { return RecordBrokenItem }

// SummaryRow is the per-target summary written with the final flush of
// each target.
type SummaryRow struct {
	// RunID identifies the scan run the summary belongs to.
	RunID string `json:"run_id"`

	TargetSequence int    `json:"target_sequence"`
	TargetURL      string `json:"target_url"`
	TargetKind     string `json:"target_kind"`

	// ContainerIndex and ItemIndex are the last positions reached,
	// mirroring the checkpoint.
	ContainerIndex int `json:"container_index"`
	ItemIndex      int `json:"item_index"`

	ItemsScanned int `json:"items_scanned"`
	BrokenCount  int `json:"broken_count"`

	// Status is the final phase of the target: done or error.
	Status string `json:"status"`

	// Err carries the failure message for error targets.
	Err string `json:"error,omitempty"`

	FinishedAt time.Time `json:"finished_at"`
}

// RecordKind implements Record.
func (SummaryRow) RecordKind() RecordKind { return RecordSummary }
