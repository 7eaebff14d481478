// Package sink persists scan output rows.
//
// A Sink receives homogeneous batches of rows, one record kind per
// batch, and writes them to its backing store. The scan orchestrator
// buffers rows and flushes them through a sink together with each
// checkpoint save, so a sink never sees rows the checkpoint does not
// cover. Because a resumed run may replay the tail of the previous
// flush window, sinks must tolerate duplicate rows; the SQLite sink
// deduplicates with upserts, the CSV sink simply appends.
package sink
