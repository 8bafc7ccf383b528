package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/redfishscan/internal/diff"
	"github.com/nao1215/redfishscan/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	indentPrefix string
	indentString string

	// resources includes every fetched snapshot in full reports.
	resources bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithResources includes the fetched resource documents in full reports.
func WithResources(include bool) JSONWriterOption {
	return func(w *JSONWriter) {
		w.resources = include
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in JSON format.
func (w *JSONWriter) Write(report *model.TargetReport) (int, error) {
	return w.writeJSON(w.document(report, ""))
}

// WriteSummary outputs only the summary in JSON format.
func (w *JSONWriter) WriteSummary(summary *model.Summary) (int, error) {
	return w.writeJSON(summary)
}

// WriteDiff outputs a run comparison in JSON format.
func (w *JSONWriter) WriteDiff(result *diff.Result) (int, error) {
	return w.writeJSON(result)
}

func (w *JSONWriter) document(report *model.TargetReport, version string) *JSONReport {
	doc := NewJSONReport(report, version)
	if w.resources && report.Crawl != nil {
		doc.Resources = report.Crawl.SortedSnapshots()
	}
	return doc
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps a target report with its summary and, optionally,
// the fetched resources.
type JSONReport struct {
	// Version is the redfishscan version that generated this report.
	Version string `json:"version,omitempty"`

	Report *model.TargetReport `json:"report"`

	Summary *model.Summary `json:"summary"`

	// Resources lists fetched snapshots in visit order.
	Resources []*model.Snapshot `json:"resources,omitempty"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(report *model.TargetReport, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Report:  report,
		Summary: model.NewSummary(report),
	}
}

// FullJSONWriter outputs complete reports with a version stamp.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the full report wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.TargetReport) (int, error) {
	return w.writeJSON(w.document(report, w.version))
}
