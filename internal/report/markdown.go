package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/redfishscan/internal/diff"
	"github.com/nao1215/redfishscan/internal/model"
)

// syntaxDiff highlights unified-diff style patches.
const syntaxDiff markdown.SyntaxHighlight = "diff"

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.TargetReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := model.NewSummary(report)

	w.writeHeader(md, summary, report.RunID)
	w.writeCrawl(md, summary)
	if report.Command == model.ScanLogs || len(report.LogEntries) > 0 {
		w.writeLogEntries(md, summary, report.LogEntries)
	}
	if report.Command == model.ScanAction || len(report.Actions) > 0 {
		w.writeActions(md, report.Actions)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs only the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary, "")
	w.writeCrawl(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteDiff outputs a run comparison in Markdown format.
func (w *MarkdownWriter) WriteDiff(result *diff.Result) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Redfish Run Comparison")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Old Run", "`" + result.OldRunID + "`"},
			{"New Run", "`" + result.NewRunID + "`"},
			{"Added", strconv.Itoa(result.Added)},
			{"Removed", strconv.Itoa(result.Removed)},
			{"Modified", strconv.Itoa(result.Modified)},
			{"Unchanged", strconv.Itoa(result.Unchanged)},
		},
	})
	md.PlainText("")

	if !result.HasChanges() {
		md.Tip("No differences between the two runs.")
		md.PlainText("")
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}

	md.H2("Changes")
	md.PlainText("")
	rows := make([][]string, len(result.Changes))
	for i, c := range result.Changes {
		rows[i] = []string{
			string(c.Kind),
			"`" + c.Path + "`",
			orDash(c.ODataType),
			"+" + strconv.Itoa(c.LinesAdded) + " -" + strconv.Itoa(c.LinesDeleted),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Change", "Path", "Type", "Lines"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, c := range result.Changes {
		if c.Kind != diff.Modified || c.Patch == "" {
			continue
		}
		md.PlainText("### `" + c.Path + "`")
		md.PlainText("")
		md.CodeBlocks(syntaxDiff, strings.TrimRight(c.Patch, "\n"))
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.Summary, runID string) {
	md.H1("Redfish Scan Report")
	md.PlainText("")

	rows := [][]string{
		{"Target", summary.Target},
		{"Base URI", "`" + summary.BaseURI + "`"},
		{"Command", summary.Command},
	}
	if runID != "" {
		rows = append(rows, []string{"Run ID", "`" + runID + "`"})
	}
	rows = append(rows,
		[]string{"Scan Date", summary.DateScanned.Format("2006-01-02 15:04:05 MST")},
		[]string{"Duration", summary.Duration.Round(time.Millisecond).String()},
		[]string{"Status", w.statusBadge(summary)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) statusBadge(summary *model.Summary) string {
	switch {
	case summary.TimedOut:
		return "⚠️ " + statusText(summary)
	case summary.Error != "":
		return "❌ " + statusText(summary)
	case len(summary.Failures) > 0:
		return "🟡 " + statusText(summary)
	default:
		return "✅ " + statusText(summary)
	}
}

func (w *MarkdownWriter) writeCrawl(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Crawl Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Visited", strconv.Itoa(summary.ResourcesVisited)},
			{"Fetched", strconv.Itoa(summary.ResourcesFetched)},
			{"Failed", strconv.Itoa(len(summary.Failures))},
			{"Skipped (filtered)", strconv.Itoa(summary.Skipped.Filtered)},
			{"Skipped (duplicate)", strconv.Itoa(summary.Skipped.Duplicate)},
			{"Skipped (limit)", strconv.Itoa(summary.Skipped.Limit)},
		},
	})
	md.PlainText("")

	if summary.Skipped.Limit > 0 {
		md.Warningf("The resource limit was reached; %d link(s) were not followed.", summary.Skipped.Limit)
		md.PlainText("")
	}

	if len(summary.TypeCounts) > 0 {
		rows := make([][]string, len(summary.TypeCounts))
		for i, tc := range summary.TypeCounts {
			rows[i] = []string{"`" + tc.Type + "`", strconv.Itoa(tc.Count)}
		}
		md.PlainText("### Resource Types")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"@odata.type", "Count"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(summary.Failures) > 0 {
		rows := make([][]string, len(summary.Failures))
		for i, f := range summary.Failures {
			status := "-"
			if f.StatusCode != 0 {
				status = strconv.Itoa(f.StatusCode)
			}
			rows[i] = []string{string(f.Kind), "`" + f.Path + "`", status, truncateString(f.Message, 80)}
		}
		md.PlainText("### Failures")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Kind", "Path", "Status", "Message"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeLogEntries(md *markdown.Markdown, summary *model.Summary, entries []model.LogEntry) {
	md.H2("Log Entries")
	md.PlainText("")

	if len(entries) == 0 {
		md.PlainText("No log entries collected.")
		md.PlainText("")
		return
	}

	w.writeSeverityChart(md, summary)

	switch {
	case summary.CriticalCount > 0:
		md.Cautionf("%d critical log entr(ies) need attention.", summary.CriticalCount)
	case summary.WarningCount > 0:
		md.Warningf("%d warning log entr(ies) found.", summary.WarningCount)
	default:
		md.Note("No warning or critical log entries.")
	}
	md.PlainText("")

	rows := make([][]string, len(entries))
	for i, e := range entries {
		created := "-"
		if !e.Created.IsZero() {
			created = e.Created.Format(time.RFC3339)
		}
		rows[i] = []string{
			e.Severity.String(),
			created,
			"`" + e.Service + "`",
			orDash(e.MessageID),
			truncateString(e.Message, 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Created", "Service", "MessageId", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSeverityChart writes a mermaid pie chart of log severities.
func (w *MarkdownWriter) writeSeverityChart(md *markdown.Markdown, summary *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Log Entry Severity"),
		piechart.WithShowData(true),
	)

	if summary.CriticalCount > 0 {
		chart.LabelAndIntValue("Critical", uint64(summary.CriticalCount))
	}
	if summary.WarningCount > 0 {
		chart.LabelAndIntValue("Warning", uint64(summary.WarningCount))
	}
	if summary.OKCount > 0 {
		chart.LabelAndIntValue("OK", uint64(summary.OKCount))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeActions(md *markdown.Markdown, actions []model.ActionResult) {
	md.H2("Actions")
	md.PlainText("")

	if len(actions) == 0 {
		md.PlainText("No resources matched the filter.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(actions))
	for i, a := range actions {
		code := "-"
		if a.StatusCode != 0 {
			code = strconv.Itoa(a.StatusCode)
		}
		rows[i] = []string{string(a.Status), a.Method, "`" + a.Path + "`", code, orDash(truncateString(a.Message, 80))}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Method", "Path", "HTTP", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [redfishscan](https://github.com/nao1215/redfishscan)*")
}
