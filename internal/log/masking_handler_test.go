package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestMaskingHandler verifies credential and PII redaction.
func TestMaskingHandler(t *testing.T) {
	t.Parallel()

	logAttr := func(key, value string) string {
		var buf bytes.Buffer
		logger := slog.New(NewMaskingHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
		logger.Info("test", key, value)
		return buf.String()
	}

	t.Run("token attribute is masked by key", func(t *testing.T) {
		t.Parallel()

		out := logAttr("access_token", "abc123")
		if strings.Contains(out, "abc123") {
			t.Errorf("expected token to be masked, got: %s", out)
		}
		if !strings.Contains(out, MaskValue) {
			t.Errorf("expected mask value in output, got: %s", out)
		}
	})

	t.Run("email value is masked regardless of key", func(t *testing.T) {
		t.Parallel()

		out := logAttr("principal", "alice@contoso.example")
		if strings.Contains(out, "alice@contoso.example") {
			t.Errorf("expected email to be masked, got: %s", out)
		}
	})

	t.Run("claim-encoded login is masked", func(t *testing.T) {
		t.Parallel()

		out := logAttr("principal", "i:0#.f|membership|bob@contoso.example")
		if strings.Contains(out, "bob@contoso.example") {
			t.Errorf("expected login to be masked, got: %s", out)
		}
	})

	t.Run("ordinary values pass through", func(t *testing.T) {
		t.Parallel()

		out := logAttr("container", "Shared Documents")
		if !strings.Contains(out, "Shared Documents") {
			t.Errorf("expected value to pass through, got: %s", out)
		}
	})

	t.Run("WithPII passes emails but still masks tokens", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		base := NewMaskingHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		logger := slog.New(base.WithPII())

		logger.Info("test", "email", "alice@contoso.example", "client_secret", "s3cret")

		out := buf.String()
		if !strings.Contains(out, "alice@contoso.example") {
			t.Errorf("expected email to pass through with PII enabled, got: %s", out)
		}
		if strings.Contains(out, "s3cret") {
			t.Errorf("expected secret to stay masked, got: %s", out)
		}
	})

	t.Run("group attributes are masked recursively", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(NewMaskingHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

		logger.Info("test", slog.Group("auth", slog.String("token", "abc123")))

		if strings.Contains(buf.String(), "abc123") {
			t.Errorf("expected grouped token to be masked, got: %s", buf.String())
		}
	})
}

// TestNewLogger verifies level selection.
func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("default level suppresses info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, false)
		logger.Info("should not appear")

		if buf.Len() != 0 {
			t.Errorf("expected no output at info level, got: %s", buf.String())
		}
	})

	t.Run("verbose level emits debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, true)
		logger.Debug("debug line")

		if !strings.Contains(buf.String(), "debug line") {
			t.Errorf("expected debug output, got: %s", buf.String())
		}
	})
}
