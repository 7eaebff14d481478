// Package config holds scanner configuration: defaults, CLI-populated
// settings, validation, and the optional YAML policy file.
//
// Configuration flows through the application by dependency injection
// rather than global state. The CLI builds a Config from flags, merges
// the policy file on top, validates once, and hands the result to the
// orchestrator. Only invalid configuration aborts a run; every failure
// after validation degrades to skip-and-record.
package config
