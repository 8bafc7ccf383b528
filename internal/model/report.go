package model

import (
	"time"
)

// Scan kinds recorded in TargetReport.PerformedScans.
const (
	ScanInventory = "inventory"
	ScanLogs      = "logs"
	ScanAction    = "action"
	ScanRecord    = "record"
)

// TargetReport is the result of running one command against one Redfish target.
// Pipeline steps fill it in; report writers and the database read it.
type TargetReport struct {
	// === Basic Information ===

	// Target is the name of the target from the targets file, or the base URI
	// when no name was given.
	Target string `json:"target"`

	// BaseURI is the scheme and authority of the Redfish service.
	BaseURI string `json:"base_uri"`

	// RunID identifies this run in the history database.
	RunID string `json:"run_id,omitempty"`

	// Command is the collector that produced the report (inventory, logs, action).
	Command string `json:"command"`

	// DateScanned is when the run started.
	DateScanned time.Time `json:"date_scanned"`

	// === Crawl Data ===

	// Crawl is the raw crawl result. Nil when the crawl never started.
	Crawl *CrawlResult `json:"crawl,omitempty"`

	// === Collector Output ===

	// LogEntries holds entries gathered by the log collector.
	LogEntries []LogEntry `json:"log_entries,omitempty"`

	// Actions holds per-resource outcomes of the action runner.
	Actions []ActionResult `json:"actions,omitempty"`

	// === Scan State ===

	// TimedOut is true if the run was cut short by its deadline.
	TimedOut bool `json:"timed_out"`

	// PerformedScans lists the steps that completed.
	PerformedScans []string `json:"performed_scans,omitempty"`

	// Error contains any error that stopped the run.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// NewTargetReport creates a report for one target.
func NewTargetReport(target, baseURI, command string) *TargetReport {
	return &TargetReport{
		Target:         target,
		BaseURI:        baseURI,
		Command:        command,
		DateScanned:    time.Now(),
		LogEntries:     make([]LogEntry, 0),
		Actions:        make([]ActionResult, 0),
		PerformedScans: make([]string, 0),
	}
}

// AddPerformedScan records a completed step, ignoring duplicates.
func (r *TargetReport) AddPerformedScan(scan string) {
	for _, s := range r.PerformedScans {
		if s == scan {
			return
		}
	}
	r.PerformedScans = append(r.PerformedScans, scan)
}

// FailureCount returns the number of per-path crawl failures plus failed actions.
func (r *TargetReport) FailureCount() int {
	n := 0
	if r.Crawl != nil {
		n += len(r.Crawl.Failures)
	}
	for _, a := range r.Actions {
		if a.Status == ActionFailed {
			n++
		}
	}
	return n
}

// HasErrors reports whether the run failed outright or recorded any failure.
func (r *TargetReport) HasErrors() bool {
	return r.Error != nil || r.ErrorMessage != "" || r.FailureCount() > 0
}
