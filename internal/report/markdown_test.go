package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/permscan/permscan/internal/model"
)

func sampleSummary() *RunSummary {
	started := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	return &RunSummary{
		RunID:      "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Minute),
		Targets: []model.SummaryRow{
			{
				RunID: "run-1", TargetSequence: 0,
				TargetURL: "https://contoso.example/sites/hr", TargetKind: "site",
				ItemsScanned: 5000, BrokenCount: 10, Status: "done",
			},
			{
				RunID: "run-1", TargetSequence: 1,
				TargetURL: "https://contoso.example/sites/finance", TargetKind: "site",
				ItemsScanned: 120, Status: "error", Err: "membership fetch failed",
			},
		},
		RowCounts: map[string]int64{
			"containers":   12,
			"broken_items": 10,
		},
	}
}

func TestMarkdownWriter_Write(t *testing.T) {
	t.Parallel()

	t.Run("renders run info, targets, and row counts", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf).Write(sampleSummary())
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if n == 0 {
			t.Error("Write() returned 0 bytes")
		}

		out := buf.String()
		for _, want := range []string{
			"# Permission Scan Report",
			"run-1",
			"https://contoso.example/sites/hr",
			"## Targets",
			"## Stored Rows",
			"broken_items",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("failed targets produce a caution alert", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(sampleSummary()); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !strings.Contains(buf.String(), "[!CAUTION]") {
			t.Error("output missing caution alert for failed target")
		}
		if !strings.Contains(buf.String(), "membership fetch failed") {
			t.Error("output missing failure message")
		}
	})

	t.Run("clean run produces a tip alert", func(t *testing.T) {
		t.Parallel()

		rs := sampleSummary()
		rs.Targets = []model.SummaryRow{
			{RunID: "run-1", TargetURL: "https://contoso.example", TargetKind: "site", Status: "done"},
		}

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(rs); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !strings.Contains(buf.String(), "[!TIP]") {
			t.Error("output missing tip alert for clean run")
		}
	})

	t.Run("empty run renders without targets", func(t *testing.T) {
		t.Parallel()

		rs := &RunSummary{RunID: "run-2", StartedAt: time.Now()}
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(rs); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !strings.Contains(buf.String(), "No targets were scanned.") {
			t.Error("output missing empty-run notice")
		}
	})
}

func TestRunSummary_Totals(t *testing.T) {
	t.Parallel()

	rs := sampleSummary()
	if got := rs.ItemsScanned(); got != 5120 {
		t.Errorf("ItemsScanned() = %d, want 5120", got)
	}
	if got := rs.BrokenCount(); got != 10 {
		t.Errorf("BrokenCount() = %d, want 10", got)
	}
	if got := rs.FailedTargets(); got != 1 {
		t.Errorf("FailedTargets() = %d, want 1", got)
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short string unchanged", input: "abc", maxLen: 10, want: "abc"},
		{name: "long string gets ellipsis", input: "abcdefghij", maxLen: 8, want: "abcde..."},
		{name: "tiny limit has no ellipsis", input: "abcdef", maxLen: 2, want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
