// Package main provides the entry point for the permscan CLI.
//
// Permscan audits effective permissions across site collections. It
// walks content trees, finds broken permission inheritance, and
// resolves every grant down to concrete users, including nested group
// memberships.
//
// Usage:
//
//	permscan scan <site-or-library-url>
//	permscan scan --targets <file>
//	permscan status
//
// See --help for all available options.
package main

// main is the entry point for permscan.
func main() {
	Execute()
}
