package report

import (
	"io"

	"github.com/nao1215/redfishscan/internal/diff"
	"github.com/nao1215/redfishscan/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs a full target report, including log entries and
	// action outcomes.
	Write(report *model.TargetReport) (int, error)

	// WriteSummary outputs only the summary of a target report.
	WriteSummary(summary *model.Summary) (int, error)

	// WriteDiff outputs the comparison of two stored runs.
	WriteDiff(result *diff.Result) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// It stops at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
func (m *MultiWriter) Write(report *model.TargetReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.Write(report) })
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary *model.Summary) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSummary(summary) })
}

// WriteDiff outputs the comparison to all configured Writers.
func (m *MultiWriter) WriteDiff(result *diff.Result) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteDiff(result) })
}

func (m *MultiWriter) each(fn func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := fn(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes how a target run ended.
func statusText(summary *model.Summary) string {
	switch {
	case summary.TimedOut:
		return "TIMED OUT (partial results)"
	case summary.Error != "":
		return "ERROR - " + summary.Error
	case len(summary.Failures) > 0:
		return "Complete with failures"
	default:
		return "Complete"
	}
}

// orDash substitutes "-" for empty table cells.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
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
