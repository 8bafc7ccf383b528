package model

import (
	"errors"
	"testing"
	"time"
)

// TestNewTargetReport tests the TargetReport constructor.
func TestNewTargetReport(t *testing.T) {
	t.Parallel()

	report := NewTargetReport("bmc-01", "https://10.0.0.5", ScanInventory)

	t.Run("sets identity", func(t *testing.T) {
		t.Parallel()
		if report.Target != "bmc-01" || report.BaseURI != "https://10.0.0.5" || report.Command != ScanInventory {
			t.Errorf("unexpected report %+v", report)
		}
	})

	t.Run("sets scan timestamp", func(t *testing.T) {
		t.Parallel()
		if report.DateScanned.IsZero() {
			t.Error("expected DateScanned to be set")
		}
		if time.Since(report.DateScanned) > time.Second {
			t.Error("DateScanned is too old")
		}
	})

	t.Run("initializes slices", func(t *testing.T) {
		t.Parallel()
		if report.LogEntries == nil || report.Actions == nil || report.PerformedScans == nil {
			t.Error("expected slices to be initialized")
		}
	})
}

// TestAddPerformedScan tests duplicate suppression.
func TestAddPerformedScan(t *testing.T) {
	t.Parallel()

	report := NewTargetReport("t", "https://bmc", ScanLogs)
	report.AddPerformedScan(ScanInventory)
	report.AddPerformedScan(ScanLogs)
	report.AddPerformedScan(ScanInventory)

	if len(report.PerformedScans) != 2 {
		t.Errorf("expected 2 scans, got %v", report.PerformedScans)
	}
}

// TestTargetReportHasErrors tests failure detection.
func TestTargetReportHasErrors(t *testing.T) {
	t.Parallel()

	t.Run("clean report", func(t *testing.T) {
		t.Parallel()
		report := NewTargetReport("t", "https://bmc", ScanInventory)
		report.Crawl = NewCrawlResult("https://bmc", "/redfish/v1", "*")
		if report.HasErrors() {
			t.Error("expected no errors")
		}
	})

	t.Run("crawl failure", func(t *testing.T) {
		t.Parallel()
		report := NewTargetReport("t", "https://bmc", ScanInventory)
		report.Crawl = NewCrawlResult("https://bmc", "/redfish/v1", "*")
		report.Crawl.Failures = append(report.Crawl.Failures, Failure{Path: "/x", Kind: FailureFetch})
		if !report.HasErrors() || report.FailureCount() != 1 {
			t.Error("expected one failure")
		}
	})

	t.Run("failed action", func(t *testing.T) {
		t.Parallel()
		report := NewTargetReport("t", "https://bmc", ScanAction)
		report.Actions = append(report.Actions,
			ActionResult{Path: "/a", Status: ActionApplied},
			ActionResult{Path: "/b", Status: ActionFailed},
		)
		if report.FailureCount() != 1 {
			t.Errorf("expected 1 failure, got %d", report.FailureCount())
		}
	})

	t.Run("run error", func(t *testing.T) {
		t.Parallel()
		report := NewTargetReport("t", "https://bmc", ScanInventory)
		report.Error = errors.New("login failed")
		if !report.HasErrors() {
			t.Error("expected errors")
		}
	})
}

// TestNewSummary tests condensing a TargetReport.
func TestNewSummary(t *testing.T) {
	t.Parallel()

	report := NewTargetReport("bmc-01", "https://bmc", ScanLogs)
	crawl := NewCrawlResult("https://bmc", "/redfish/v1", "*")
	crawl.Visited = []string{"/a", "/b", "/c", "/d"}
	crawl.Snapshots["/a"] = snapshotFromJSON(t, "/a", `{"@odata.type":"#LogEntry.v1_4_0.LogEntry"}`)
	crawl.Snapshots["/b"] = snapshotFromJSON(t, "/b", `{"@odata.type":"#LogEntry.v1_4_0.LogEntry"}`)
	crawl.Snapshots["/c"] = snapshotFromJSON(t, "/c", `{"@odata.type":"#LogService.v1_1_0.LogService"}`)
	crawl.Failures = append(crawl.Failures, Failure{Path: "/d", Kind: FailureFetch, Message: "timeout"})
	crawl.Skipped = Skipped{Filtered: 3, Duplicate: 2}
	report.Crawl = crawl
	report.LogEntries = []LogEntry{
		{Severity: SeverityCritical},
		{Severity: SeverityWarning},
		{Severity: SeverityWarning},
		{Severity: SeverityOK},
	}
	report.Actions = []ActionResult{{Status: ActionSkipped}}

	s := NewSummary(report)

	if s.ResourcesVisited != 4 || s.ResourcesFetched != 3 {
		t.Errorf("visited=%d fetched=%d", s.ResourcesVisited, s.ResourcesFetched)
	}
	if len(s.Failures) != 1 {
		t.Errorf("expected 1 failure, got %d", len(s.Failures))
	}
	if s.Skipped.Filtered != 3 || s.Skipped.Duplicate != 2 {
		t.Errorf("unexpected skipped %+v", s.Skipped)
	}
	if len(s.TypeCounts) != 2 || s.TypeCounts[0].Type != "#LogEntry.v1_4_0.LogEntry" || s.TypeCounts[0].Count != 2 {
		t.Errorf("unexpected type counts %+v", s.TypeCounts)
	}
	if s.CriticalCount != 1 || s.WarningCount != 2 || s.OKCount != 1 {
		t.Errorf("unexpected severity counts %+v", s)
	}
	if s.ActionsSkipped != 1 {
		t.Errorf("expected 1 skipped action, got %d", s.ActionsSkipped)
	}
}
