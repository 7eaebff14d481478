package scan

// Phase is the orchestrator's position within one scan target. Phases
// only move forward; an error phase ends the target, not the run.
type Phase int

const (
	// PhaseClassifying probes the input reference.
	PhaseClassifying Phase = iota

	// PhaseConnected has located the target's containers.
	PhaseConnected

	// PhaseEnumerating walks items and resolves access.
	PhaseEnumerating

	// PhaseFlushing persists buffered rows and the checkpoint.
	PhaseFlushing

	// PhaseDone ends a completed target.
	PhaseDone

	// PhaseError ends a failed target; the run continues with the
	// next one.
	PhaseError
)

// String returns the phase name used in logs and summaries.
func (p Phase) String() string {
	switch p {
	case PhaseClassifying:
		return "classifying"
	case PhaseConnected:
		return "connected"
	case PhaseEnumerating:
		return "enumerating"
	case PhaseFlushing:
		return "flushing"
	case PhaseDone:
		return "done"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}
