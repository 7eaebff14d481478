package adapter

import "errors"

// Sentinel errors adapter implementations return so the core can
// classify failures with errors.Is.
var (
	// ErrNotFound is returned by resolution probes when a reference
	// does not denote the probed kind. The classifier treats it as
	// "try the next probe", not as a failure.
	ErrNotFound = errors.New("reference not found")

	// ErrThrottled is returned when the backend rejects a call for
	// rate limiting. The retry decorator retries these with backoff;
	// every other error is permanent from the decorator's point of
	// view.
	ErrThrottled = errors.New("backend throttled the request")
)
