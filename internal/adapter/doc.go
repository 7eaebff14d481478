// Package adapter defines the contracts between the scanning core and
// the content/identity backends, plus a retry decorator that applies
// the bounded backoff policy beneath the adapter boundary.
//
// Adapters return plain data from the model package. Transport,
// authentication, and credential handling live inside adapter
// implementations (see the remote package); the core only sees typed
// results and sentinel errors. An exhausted retry surfaces to the core
// as an ordinary error that degrades to a per-item failure, never as a
// crash.
package adapter
