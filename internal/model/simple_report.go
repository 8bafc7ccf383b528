package model

import (
	"sort"
	"time"
)

// Summary is a condensed, human-readable view of a TargetReport.
// It is what the text writer prints and what the JSON writer emits in
// simple mode.
type Summary struct {
	// Target is the target name.
	Target string `json:"target"`

	// BaseURI is the scheme and authority of the Redfish service.
	BaseURI string `json:"base_uri"`

	// Command is the collector that ran.
	Command string `json:"command"`

	// DateScanned is when the run started.
	DateScanned time.Time `json:"date_scanned"`

	// Duration is the crawl wall time.
	Duration time.Duration `json:"duration"`

	// === Crawl Statistics ===

	// ResourcesVisited is the number of paths claimed by the crawl.
	ResourcesVisited int `json:"resources_visited"`

	// ResourcesFetched is the number of successful snapshots.
	ResourcesFetched int `json:"resources_fetched"`

	// Skipped counts links seen but not fetched.
	Skipped Skipped `json:"skipped"`

	// TypeCounts counts snapshots per @odata.type, most common first.
	TypeCounts []TypeCount `json:"type_counts,omitempty"`

	// Failures lists per-path failures.
	Failures []Failure `json:"failures,omitempty"`

	// === Logs ===

	// CriticalCount, WarningCount and OKCount count collected log entries by severity.
	CriticalCount int `json:"critical_count"`
	WarningCount  int `json:"warning_count"`
	OKCount       int `json:"ok_count"`

	// === Actions ===

	// Applied, Planned, Skipped and Failed count action outcomes.
	ActionsApplied int `json:"actions_applied"`
	ActionsPlanned int `json:"actions_planned"`
	ActionsSkipped int `json:"actions_skipped"`
	ActionsFailed  int `json:"actions_failed"`

	// TimedOut indicates the run hit its deadline.
	TimedOut bool `json:"timed_out"`

	// Error contains any error message if the run failed.
	Error string `json:"error,omitempty"`
}

// TypeCount is the number of snapshots sharing one @odata.type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// NewSummary condenses a TargetReport.
func NewSummary(report *TargetReport) *Summary {
	s := &Summary{
		Target:      report.Target,
		BaseURI:     report.BaseURI,
		Command:     report.Command,
		DateScanned: report.DateScanned,
		TimedOut:    report.TimedOut,
		Error:       report.ErrorMessage,
	}
	if s.Error == "" && report.Error != nil {
		s.Error = report.Error.Error()
	}

	if report.Crawl != nil {
		s.collectCrawl(report.Crawl)
	}
	s.countLogs(report.LogEntries)
	s.countActions(report.Actions)

	return s
}

// collectCrawl fills the crawl statistics.
func (s *Summary) collectCrawl(crawl *CrawlResult) {
	s.Duration = crawl.Duration()
	s.ResourcesVisited = len(crawl.Visited)
	s.ResourcesFetched = len(crawl.Snapshots)
	s.Skipped = crawl.Skipped
	s.Failures = append(s.Failures, crawl.Failures...)

	counts := make(map[string]int)
	for _, snap := range crawl.Snapshots {
		t := snap.ODataType()
		if t == "" {
			t = "(untyped)"
		}
		counts[t]++
	}
	for t, n := range counts {
		s.TypeCounts = append(s.TypeCounts, TypeCount{Type: t, Count: n})
	}
	sort.Slice(s.TypeCounts, func(i, j int) bool {
		if s.TypeCounts[i].Count != s.TypeCounts[j].Count {
			return s.TypeCounts[i].Count > s.TypeCounts[j].Count
		}
		return s.TypeCounts[i].Type < s.TypeCounts[j].Type
	})
}

func (s *Summary) countLogs(entries []LogEntry) {
	for _, e := range entries {
		switch e.Severity {
		case SeverityCritical:
			s.CriticalCount++
		case SeverityWarning:
			s.WarningCount++
		case SeverityOK:
			s.OKCount++
		}
	}
}

func (s *Summary) countActions(actions []ActionResult) {
	for _, a := range actions {
		switch a.Status {
		case ActionApplied:
			s.ActionsApplied++
		case ActionPlanned:
			s.ActionsPlanned++
		case ActionSkipped:
			s.ActionsSkipped++
		case ActionFailed:
			s.ActionsFailed++
		}
	}
}
