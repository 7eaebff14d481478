package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint is the durable progress record. It only advances forward
// within a target; it resets to zero only when no valid checkpoint can
// be read.
type Checkpoint struct {
	// RunID identifies the run that wrote the checkpoint. A resumed
	// run keeps the original id so its summaries stay correlated.
	RunID string `json:"run_id"`

	// TargetSequence is the active target's position in the input
	// list.
	TargetSequence int `json:"target_sequence"`

	// ContainerIndex is the index into the target's container walk.
	ContainerIndex int `json:"container_index"`

	// LastItemID is the highest item id processed within the current
	// container. Resume continues strictly after it; zero means the
	// container's item walk has not started.
	LastItemID int64 `json:"last_item_id"`

	// ItemsScanned counts items processed within the current target.
	ItemsScanned int `json:"items_scanned"`

	// BrokenCount counts broken-inheritance findings within the
	// current target.
	BrokenCount int `json:"broken_count"`

	// UpdatedAt is when the checkpoint was written.
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager reads and writes the checkpoint file.
type Manager struct {
	path   string
	logger *slog.Logger
}

// NewManager creates a Manager for the given checkpoint path. A nil
// logger falls back to slog.Default.
func NewManager(path string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{path: path, logger: logger}
}

// Path returns the checkpoint file location.
func (m *Manager) Path() string { return m.path }

// Save writes the checkpoint atomically: marshal to a temporary file
// in the same directory, fsync, then rename over the final path. The
// rename is atomic on POSIX filesystems, so readers observe either the
// old checkpoint or the new one, never a partial write.
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}

	if err := os.Rename(tmpName, m.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint. A missing file returns (nil, nil). A
// corrupt file also returns (nil, nil) with a warning: checkpoint
// corruption means "restart from zero", never "abort the run".
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		m.logger.Warn("discarding corrupt checkpoint, restarting from the beginning",
			"path", m.path,
			"error", err,
		)
		return nil, nil
	}
	if cp.TargetSequence < 0 || cp.ContainerIndex < 0 || cp.LastItemID < 0 {
		m.logger.Warn("discarding implausible checkpoint, restarting from the beginning",
			"path", m.path,
		)
		return nil, nil
	}
	return &cp, nil
}

// Clear removes the checkpoint file. Called after a run completes so
// the next run starts fresh. A missing file is not an error.
func (m *Manager) Clear() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}
