package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/redfishscan/internal/diff"
	"github.com/nao1215/redfishscan/internal/model"
)

const (
	ruleWidth = 70

	// defaultTypeLimit caps the resource type table in non-verbose mode.
	defaultTypeLimit = 10
)

// SimpleWriter outputs human-readable text reports.
// Plain ASCII keeps the output usable in pipes and log files.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.TargetReport) (int, error) {
	var sb strings.Builder
	summary := model.NewSummary(report)

	w.writeHeader(&sb, summary, report.RunID)
	w.writeCrawl(&sb, summary)
	w.writeLogEntries(&sb, report.LogEntries)
	if report.Command == model.ScanAction || len(report.Actions) > 0 {
		w.writeActions(&sb, report.Actions)
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteSummary outputs only the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary, "")
	w.writeCrawl(&sb, summary)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteDiff outputs a run comparison in human-readable format.
func (w *SimpleWriter) WriteDiff(result *diff.Result) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "REDFISH RUN COMPARISON")
	fmt.Fprintf(&sb, "Old Run:    %s\n", result.OldRunID)
	fmt.Fprintf(&sb, "New Run:    %s\n\n", result.NewRunID)
	fmt.Fprintf(&sb, "  ADDED:     %d\n", result.Added)
	fmt.Fprintf(&sb, "  REMOVED:   %d\n", result.Removed)
	fmt.Fprintf(&sb, "  MODIFIED:  %d\n", result.Modified)
	fmt.Fprintf(&sb, "  UNCHANGED: %d\n\n", result.Unchanged)

	if result.HasChanges() {
		writeSection(&sb, "CHANGES")
		for _, c := range result.Changes {
			fmt.Fprintf(&sb, "  %s %s", changeMarker(c.Kind), c.Path)
			if c.Kind == diff.Modified {
				fmt.Fprintf(&sb, " (+%d -%d)", c.LinesAdded, c.LinesDeleted)
			}
			sb.WriteString("\n")
			if w.verbose && c.Patch != "" {
				for _, line := range strings.Split(strings.TrimRight(c.Patch, "\n"), "\n") {
					sb.WriteString("      " + line + "\n")
				}
			}
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No differences.\n\n")
	}

	w.writeFooter(&sb)
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.Summary, runID string) {
	writeBanner(sb, "REDFISH SCAN REPORT")

	fmt.Fprintf(sb, "Target:     %s\n", summary.Target)
	fmt.Fprintf(sb, "Base URI:   %s\n", summary.BaseURI)
	fmt.Fprintf(sb, "Command:    %s\n", summary.Command)
	if runID != "" {
		fmt.Fprintf(sb, "Run ID:     %s\n", runID)
	}
	fmt.Fprintf(sb, "Scan Date:  %s\n", summary.DateScanned.Format("2006-01-02 15:04:05 MST"))
	if summary.Duration > 0 {
		fmt.Fprintf(sb, "Duration:   %s\n", summary.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(sb, "Status:     %s\n\n", statusText(summary))
}

func (w *SimpleWriter) writeCrawl(sb *strings.Builder, summary *model.Summary) {
	writeSection(sb, "CRAWL SUMMARY")

	fmt.Fprintf(sb, "  VISITED:   %d\n", summary.ResourcesVisited)
	fmt.Fprintf(sb, "  FETCHED:   %d\n", summary.ResourcesFetched)
	fmt.Fprintf(sb, "  FAILED:    %d\n", len(summary.Failures))
	fmt.Fprintf(sb, "  SKIPPED:   %d filtered, %d duplicate, %d over limit\n\n",
		summary.Skipped.Filtered, summary.Skipped.Duplicate, summary.Skipped.Limit)

	if len(summary.TypeCounts) > 0 || w.showEmpty {
		writeSection(sb, "RESOURCE TYPES")
		types := summary.TypeCounts
		if !w.verbose && len(types) > defaultTypeLimit {
			types = types[:defaultTypeLimit]
		}
		for _, tc := range types {
			fmt.Fprintf(sb, "  %5d  %s\n", tc.Count, tc.Type)
		}
		if hidden := len(summary.TypeCounts) - len(types); hidden > 0 {
			fmt.Fprintf(sb, "  ... %d more (use --verbose)\n", hidden)
		}
		if len(summary.TypeCounts) == 0 {
			sb.WriteString("  No resources fetched\n")
		}
		sb.WriteString("\n")
	}

	if len(summary.Failures) > 0 || w.showEmpty {
		writeSection(sb, "FAILURES")
		for _, f := range summary.Failures {
			fmt.Fprintf(sb, "  [%s] %s\n", f.Kind, f.Path)
			if w.verbose {
				fmt.Fprintf(sb, "    %s\n", f.Message)
			}
		}
		if len(summary.Failures) == 0 {
			sb.WriteString("  No failures\n")
		}
		sb.WriteString("\n")
	}
}

func (w *SimpleWriter) writeLogEntries(sb *strings.Builder, entries []model.LogEntry) {
	if len(entries) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "LOG ENTRIES")
	if len(entries) == 0 {
		sb.WriteString("  No log entries\n\n")
		return
	}

	for _, e := range entries {
		created := "-"
		if !e.Created.IsZero() {
			created = e.Created.Format(time.RFC3339)
		}
		fmt.Fprintf(sb, "  [%s] %s %s\n", severityIndicator(e.Severity), created, e.Message)
		if w.verbose {
			fmt.Fprintf(sb, "    Service: %s  Id: %s  MessageId: %s\n", e.Service, e.ID, orDash(e.MessageID))
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeActions(sb *strings.Builder, actions []model.ActionResult) {
	writeSection(sb, "ACTIONS")
	if len(actions) == 0 {
		sb.WriteString("  No matching resources\n\n")
		return
	}

	for _, a := range actions {
		fmt.Fprintf(sb, "  %-8s %s %s", strings.ToUpper(string(a.Status)), a.Method, a.Path)
		if a.StatusCode != 0 {
			fmt.Fprintf(sb, " (%d)", a.StatusCode)
		}
		sb.WriteString("\n")
		if a.Message != "" && (w.verbose || a.Status != model.ActionApplied) {
			fmt.Fprintf(sb, "    %s\n", a.Message)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by redfishscan\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	pad := (ruleWidth - len(title)) / 2
	sb.WriteString(strings.Repeat(" ", pad) + title + "\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

// severityIndicator returns a visual indicator for the severity level.
func severityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityWarning:
		return "!"
	case model.SeverityOK:
		return "ok"
	default:
		return "?"
	}
}

func changeMarker(kind diff.ChangeKind) string {
	switch kind {
	case diff.Added:
		return "+"
	case diff.Removed:
		return "-"
	default:
		return "~"
	}
}
