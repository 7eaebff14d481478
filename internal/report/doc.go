// Package report renders the end-of-run summary.
//
// A run summary aggregates the per-target summary rows a scan emits
// and the row counts of the result store into a single human-readable
// document. The scan command writes it after the last target; the
// status command can regenerate it from the result database at any
// time.
package report
