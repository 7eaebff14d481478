// Package checkpoint persists scan progress so an interrupted
// multi-hour run resumes without re-processing completed work.
//
// A checkpoint records the active target, the container index within
// it, the last item id processed, and running aggregate counts. Writes
// go to a temporary file in the same directory followed by a rename,
// so a hard process kill never leaves a partially written checkpoint
// observable. An unreadable or truncated checkpoint loads as "no
// checkpoint": the run restarts from zero with a warning instead of
// failing.
//
// Resume granularity is container + item within one target; the item
// the scan stopped on is re-evaluated, so the contract is
// at-least-once per item rather than exactly-once.
package checkpoint
