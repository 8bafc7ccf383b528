package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// Severity is the Redfish severity of a log entry or health rollup.
//
// Ordering matters: the log collector filters with "at least" comparisons,
// so the constants are declared from least to most severe.
type Severity int

const (
	// SeverityUnknown is used when a service omits Severity or sends a value
	// outside the Redfish enumeration.
	SeverityUnknown Severity = iota

	// SeverityOK is the Redfish "OK" value: normal, informational.
	SeverityOK

	// SeverityWarning is the Redfish "Warning" value: a condition requiring attention.
	SeverityWarning

	// SeverityCritical is the Redfish "Critical" value: a condition requiring
	// immediate attention.
	SeverityCritical
)

// String returns the Redfish spelling of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeverityWarning:
		return "Warning"
	case SeverityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the severity using its Redfish spelling.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes any spelling accepted by ParseSeverity.
func (s *Severity) UnmarshalText(text []byte) error {
	*s = ParseSeverity(string(text))
	return nil
}

// severityAliases maps case-folded spellings to a Severity. Besides the DMTF
// values it accepts the aliases seen in vendor OEM logs.
var severityAliases = map[string]Severity{
	"ok":            SeverityOK,
	"informational": SeverityOK,
	"info":          SeverityOK,
	"warning":       SeverityWarning,
	"warn":          SeverityWarning,
	"minor":         SeverityWarning,
	"major":         SeverityWarning,
	"critical":      SeverityCritical,
	"error":         SeverityCritical,
	"fatal":         SeverityCritical,
}

// ParseSeverity maps a severity string to a Severity, ignoring case and
// surrounding whitespace. Unrecognized values yield SeverityUnknown.
func ParseSeverity(raw string) Severity {
	// Vendors send "WARNING", "warning" and "Warning" for the same thing.
	// A Caser is stateful, so each call folds with its own.
	key := cases.Fold().String(strings.TrimSpace(raw))
	if s, ok := severityAliases[key]; ok {
		return s
	}
	return SeverityUnknown
}

// AtLeast reports whether s is as severe as threshold or more.
func (s Severity) AtLeast(threshold Severity) bool {
	return s >= threshold
}
