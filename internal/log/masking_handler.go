package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeys contains attribute keys that are always masked.
var sensitiveKeys = map[string]bool{
	// Credentials for the content/identity backends
	"authorization": true,
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"bearer":        true,
	"secret":        true,
	"password":      true,
	"api_key":       true,
	"apikey":        true,
	"client_secret": true,

	// Directory PII
	"email":      true,
	"mail":       true,
	"upn":        true,
	"login":      true,
	"login_name": true,
	"user":       true,
}

// piiPatterns contains value patterns masked regardless of key name.
var piiPatterns = []*regexp.Regexp{
	// Email addresses / user principal names
	regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`),

	// Claim-encoded logins (i:0#.f|membership|user@tenant)
	regexp.MustCompile(`^[ic]:0[#.!][^|]*\|`),

	// Bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+.+`),

	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
}

// MaskValue is the string used to replace masked values.
const MaskValue = "***MASKED***"

// MaskingHandler is a slog.Handler that redacts credentials and
// directory PII before delegating to an underlying handler.
type MaskingHandler struct {
	handler slog.Handler

	// logPII disables PII masking (credentials stay masked). Used when
	// an operator explicitly opts in to identifiable logs.
	logPII bool
}

// NewMaskingHandler creates a MaskingHandler wrapping the given
// handler. If handler is nil, slog.Default's handler is used.
func NewMaskingHandler(handler slog.Handler) *MaskingHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &MaskingHandler{handler: handler}
}

// WithPII returns a copy of the handler that passes personal
// identifiers through unmasked. Credential-shaped values remain masked
// unconditionally.
func (h *MaskingHandler) WithPII() *MaskingHandler {
	return &MaskingHandler{handler: h.handler, logPII: true}
}

// Enabled delegates to the underlying handler.
func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and passes it on.
func (h *MaskingHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.maskAttr(a))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

// WithAttrs returns a new handler with the given attributes added,
// masked first.
func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		maskedAttrs[i] = h.maskAttr(a)
	}
	return &MaskingHandler{handler: h.handler.WithAttrs(maskedAttrs), logPII: h.logPII}
}

// WithGroup returns a new handler with the given group name.
func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{handler: h.handler.WithGroup(name), logPII: h.logPII}
}

// maskAttr masks a single attribute, recursing into groups.
func (h *MaskingHandler) maskAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		maskedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			maskedAttrs[i] = h.maskAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(maskedAttrs...)}
	}

	keyLower := strings.ToLower(a.Key)
	if credentialKey(keyLower) {
		return slog.String(a.Key, MaskValue)
	}
	if h.logPII {
		return a
	}
	if sensitiveKeys[keyLower] {
		return slog.String(a.Key, MaskValue)
	}
	if a.Value.Kind() == slog.KindString && isPIIValue(a.Value.String()) {
		return slog.String(a.Key, MaskValue)
	}
	return a
}

// credentialKey reports whether a key names credential material. These
// keys are masked even when PII logging is enabled.
func credentialKey(key string) bool {
	for _, keyword := range []string{"password", "secret", "token", "authorization", "api_key", "apikey"} {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isPIIValue checks if a value matches a personal-identifier pattern.
func isPIIValue(value string) bool {
	for _, pattern := range piiPatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// NewLogger creates an slog.Logger with masking applied. Verbose
// switches the level from Warn to Debug.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	textHandler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewMaskingHandler(textHandler))
}

// NewJSONLogger creates a masking slog.Logger with JSON output, for
// structured log aggregation.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewMaskingHandler(jsonHandler))
}
