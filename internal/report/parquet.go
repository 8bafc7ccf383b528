package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/nao1215/redfishscan/internal/model"
)

// ErrUnknownCompression is returned for an unsupported Parquet codec name.
var ErrUnknownCompression = errors.New("unknown parquet compression")

// ResourceRow is one fetched resource in a Parquet export.
type ResourceRow struct {
	Target     string   `parquet:"target"`
	RunID      string   `parquet:"run_id"`
	Path       string   `parquet:"path"`
	URL        string   `parquet:"url"`
	StatusCode int32    `parquet:"status_code"`
	ODataType  string   `parquet:"odata_type"`
	Methods    []string `parquet:"methods,list"`
	Hash       string   `parquet:"hash"`
	Error      string   `parquet:"error"`
	Body       string   `parquet:"body"`
	FetchedAt  int64    `parquet:"fetched_at"` // unix milliseconds
}

// LogEntryRow is one collected log entry in a Parquet export.
type LogEntryRow struct {
	Target    string `parquet:"target"`
	RunID     string `parquet:"run_id"`
	Service   string `parquet:"service"`
	Path      string `parquet:"path"`
	ID        string `parquet:"id"`
	Created   int64  `parquet:"created"` // unix milliseconds, 0 when absent
	Severity  string `parquet:"severity"`
	MessageID string `parquet:"message_id"`
	EntryType string `parquet:"entry_type"`
	Message   string `parquet:"message"`
}

// ActionRow is one action outcome in a Parquet export.
type ActionRow struct {
	Target     string `parquet:"target"`
	RunID      string `parquet:"run_id"`
	Path       string `parquet:"path"`
	Method     string `parquet:"method"`
	Status     string `parquet:"status"`
	StatusCode int32  `parquet:"status_code"`
	Message    string `parquet:"message"`
}

// ParquetExporter writes report data as Parquet tables.
type ParquetExporter struct {
	compression parquet.WriterOption
}

// ParquetOption configures a ParquetExporter.
type ParquetOption func(*ParquetExporter) error

// WithCompression selects the codec: zstd (default), gzip, snappy or none.
func WithCompression(name string) ParquetOption {
	return func(e *ParquetExporter) error {
		switch strings.ToLower(name) {
		case "", "zstd":
			e.compression = parquet.Compression(&parquet.Zstd)
		case "gzip":
			e.compression = parquet.Compression(&parquet.Gzip)
		case "snappy":
			e.compression = parquet.Compression(&parquet.Snappy)
		case "none", "uncompressed":
			e.compression = parquet.Compression(&parquet.Uncompressed)
		default:
			return fmt.Errorf("%w: %q", ErrUnknownCompression, name)
		}
		return nil
	}
}

// NewParquetExporter creates an exporter using Zstd unless configured otherwise.
func NewParquetExporter(opts ...ParquetOption) (*ParquetExporter, error) {
	e := &ParquetExporter{
		compression: parquet.Compression(&parquet.Zstd),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Export writes the table matching the reports' command: log entries for
// logs, action outcomes for action, resources otherwise.
func (e *ParquetExporter) Export(output io.Writer, reports []*model.TargetReport) (int, error) {
	command := model.ScanInventory
	if len(reports) > 0 {
		command = reports[0].Command
	}
	switch command {
	case model.ScanLogs:
		return e.ExportLogEntries(output, reports)
	case model.ScanAction:
		return e.ExportActions(output, reports)
	default:
		return e.ExportResources(output, reports)
	}
}

// ExportResources writes one row per fetched or failed resource.
func (e *ParquetExporter) ExportResources(output io.Writer, reports []*model.TargetReport) (int, error) {
	var rows []ResourceRow
	for _, r := range reports {
		if r.Crawl == nil {
			continue
		}
		for _, p := range r.Crawl.Visited {
			snap, ok := r.Crawl.Snapshots[p]
			if !ok {
				continue
			}
			rows = append(rows, resourceRow(r, snap))
		}
	}
	return writeRows(output, rows, e.compression)
}

// ExportLogEntries writes one row per collected log entry.
func (e *ParquetExporter) ExportLogEntries(output io.Writer, reports []*model.TargetReport) (int, error) {
	var rows []LogEntryRow
	for _, r := range reports {
		for _, entry := range r.LogEntries {
			var created int64
			if !entry.Created.IsZero() {
				created = entry.Created.UnixMilli()
			}
			rows = append(rows, LogEntryRow{
				Target:    r.Target,
				RunID:     r.RunID,
				Service:   entry.Service,
				Path:      entry.Path,
				ID:        entry.ID,
				Created:   created,
				Severity:  entry.Severity.String(),
				MessageID: entry.MessageID,
				EntryType: entry.EntryType,
				Message:   entry.Message,
			})
		}
	}
	return writeRows(output, rows, e.compression)
}

// ExportActions writes one row per action outcome.
func (e *ParquetExporter) ExportActions(output io.Writer, reports []*model.TargetReport) (int, error) {
	var rows []ActionRow
	for _, r := range reports {
		for _, a := range r.Actions {
			rows = append(rows, ActionRow{
				Target:     r.Target,
				RunID:      r.RunID,
				Path:       a.Path,
				Method:     a.Method,
				Status:     string(a.Status),
				StatusCode: int32(a.StatusCode), //nolint:gosec // HTTP status codes fit in int32
				Message:    a.Message,
			})
		}
	}
	return writeRows(output, rows, e.compression)
}

func resourceRow(r *model.TargetReport, snap *model.Snapshot) ResourceRow {
	row := ResourceRow{
		Target:     r.Target,
		RunID:      r.RunID,
		Path:       snap.Path,
		URL:        snap.URL,
		StatusCode: int32(snap.StatusCode), //nolint:gosec // HTTP status codes fit in int32
		ODataType:  snap.ODataType(),
		Methods:    snap.Methods,
		Error:      snap.Error,
		FetchedAt:  snap.FetchedAt.UnixMilli(),
	}
	if !snap.Failed() {
		row.Hash = snap.Hash()
		row.Body = string(snap.Body())
	}
	return row
}

// writeRows writes rows with a generic writer and returns the row count.
func writeRows[T any](output io.Writer, rows []T, compression parquet.WriterOption) (int, error) {
	writer := parquet.NewGenericWriter[T](output, compression)

	n, err := writer.Write(rows)
	if err != nil {
		_ = writer.Close()
		return n, fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return n, fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return n, nil
}
