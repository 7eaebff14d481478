// Package scan orchestrates whole scan runs.
//
// The orchestrator drives each target through a fixed phase sequence:
// classify the reference, connect and locate its containers, enumerate
// items and resolve access on inheritance breaks, flush buffered rows
// together with a checkpoint save, and finish with a per-target
// summary. A failing target is recorded and the run moves on; only
// context cancellation and output-write failures stop a run.
//
// Progress is durable. Every flush persists the buffered rows first
// and the covering checkpoint second, so a crash between the two can
// only cause row replay, never row loss. Sinks are expected to
// tolerate that replay.
package scan
