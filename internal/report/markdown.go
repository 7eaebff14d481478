package report

import (
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/permscan/permscan/internal/model"
)

// RunSummary aggregates one scan run for reporting.
type RunSummary struct {
	// RunID identifies the run.
	RunID string

	// StartedAt and FinishedAt bound the run. FinishedAt may be zero
	// when reporting on an interrupted run.
	StartedAt  time.Time
	FinishedAt time.Time

	// Targets holds one summary row per scanned target.
	Targets []model.SummaryRow

	// RowCounts maps output stream names to stored row counts, as
	// returned by the result store. May be nil when no database was
	// used.
	RowCounts map[string]int64
}

// ItemsScanned returns the total items scanned across all targets.
func (rs *RunSummary) ItemsScanned() int {
	var total int
	for _, t := range rs.Targets {
		total += t.ItemsScanned
	}
	return total
}

// BrokenCount returns the total broken-inheritance findings across all
// targets.
func (rs *RunSummary) BrokenCount() int {
	var total int
	for _, t := range rs.Targets {
		total += t.BrokenCount
	}
	return total
}

// FailedTargets returns how many targets ended in an error state.
func (rs *RunSummary) FailedTargets() int {
	var failed int
	for _, t := range rs.Targets {
		if t.Status != "done" {
			failed++
		}
	}
	return failed
}

// MarkdownWriter renders a run summary in Markdown format.
//
// Design decision: We use the nao1215/markdown library for fluent
// markdown generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	output io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

// Write renders the run summary. It returns the number of bytes in the
// rendered document and any error from building it.
func (w *MarkdownWriter) Write(rs *RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, rs)
	w.writeAlert(md, rs)
	w.writeTargets(md, rs)
	w.writeRowCounts(md, rs)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run-level information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, rs *RunSummary) {
	md.H1("Permission Scan Report")
	md.PlainText("")

	finished := "in progress"
	duration := "-"
	if !rs.FinishedAt.IsZero() {
		finished = rs.FinishedAt.Format("2006-01-02 15:04:05 MST")
		duration = rs.FinishedAt.Sub(rs.StartedAt).Round(time.Second).String()
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + rs.RunID + "`"},
			{"Started", rs.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Finished", finished},
			{"Duration", duration},
			{"Targets", strconv.Itoa(len(rs.Targets))},
			{"Items Scanned", strconv.Itoa(rs.ItemsScanned())},
			{"Broken Inheritance", strconv.Itoa(rs.BrokenCount())},
		},
	})
	md.PlainText("")
}

// writeAlert writes an alert reflecting the run outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, rs *RunSummary) {
	switch {
	case rs.FailedTargets() > 0:
		md.Cautionf(
			"%d of %d target(s) did not complete. Re-run with the same checkpoint to resume.",
			rs.FailedTargets(), len(rs.Targets),
		)
	case rs.BrokenCount() > 0:
		md.Warningf(
			"%d item(s) with broken permission inheritance found. Review the item access streams for unexpected grants.",
			rs.BrokenCount(),
		)
	default:
		md.Tip("No broken permission inheritance found.")
	}
	md.PlainText("")
}

// writeTargets writes the per-target results table.
func (w *MarkdownWriter) writeTargets(md *markdown.Markdown, rs *RunSummary) {
	md.H2("Targets")
	md.PlainText("")

	if len(rs.Targets) == 0 {
		md.PlainText("No targets were scanned.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(rs.Targets))
	for i, t := range rs.Targets {
		status := "✅ done"
		if t.Status != "done" {
			status = "❌ " + t.Status
			if t.Err != "" {
				status += " - " + truncateString(t.Err, 60)
			}
		}
		rows[i] = []string{
			strconv.Itoa(t.TargetSequence),
			truncateString(t.TargetURL, 60),
			t.TargetKind,
			strconv.Itoa(t.ItemsScanned),
			strconv.Itoa(t.BrokenCount),
			status,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "URL", "Kind", "Items", "Broken", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeRowCounts writes the stored-row counts per output stream.
func (w *MarkdownWriter) writeRowCounts(md *markdown.Markdown, rs *RunSummary) {
	if len(rs.RowCounts) == 0 {
		return
	}

	md.H2("Stored Rows")
	md.PlainText("")

	names := make([]string, 0, len(rs.RowCounts))
	for name := range rs.RowCounts {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, len(names))
	for i, name := range names {
		rows[i] = []string{name, strconv.FormatInt(rs.RowCounts[name], 10)}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Stream", "Rows"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by permscan*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
