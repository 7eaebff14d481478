// Package log provides privacy-aware logging built on the standard
// slog package.
//
// Permission scans handle directory data: user emails, login claims,
// and bearer tokens for the content and identity backends. Scan logs
// are routinely attached to tickets and shared with site owners, so the
// MaskingHandler redacts:
//   - credential-shaped attributes (tokens, secrets, authorization
//     headers)
//   - personal identifiers (email addresses, user principal names,
//     claim-encoded logins) unless PII logging is explicitly enabled
//
// Redaction applies at every log level, including debug output.
//
// Usage:
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	logger.Info("resolved principal",
//	    "login", "i:0#.f|membership|user@contoso.example", // masked
//	    "depth", 2,
//	)
//	slog.SetDefault(logger)
package log
