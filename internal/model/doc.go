// Package model defines the core data types shared across the scanner:
// scan targets, content nodes, security principals, effective-access
// entries, and the output row kinds emitted to sinks.
//
// Types in this package are plain data. They carry no behavior beyond
// small derivation helpers and are safe to serialize; all scanning logic
// lives in the classify, resolve, enumerate, and scan packages.
package model
