// Package remote implements the content and directory adapters
// against the hosted REST APIs.
//
// The content adapter speaks the site collection's own REST surface
// (/_api/web and friends); the directory adapter speaks the identity
// provider's graph API. Both translate HTTP status codes into the
// adapter package's sentinel errors so callers never see raw status
// codes: 404 becomes ErrNotFound, 429 and 503 become ErrThrottled.
// Retry is not handled here; callers wrap these adapters in the
// adapter package's retry decorators.
package remote
