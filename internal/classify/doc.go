// Package classify determines what kind of content container an input
// reference denotes: site root, subsite, library, or folder.
//
// Classification is a fixed probe sequence against the content adapter
// with no retries of its own (retry policy lives beneath the adapter
// boundary). A reference that survives no probe becomes an error
// target, which is logged and skipped; one unclassifiable reference
// never aborts the batch.
package classify
