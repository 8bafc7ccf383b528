package model

import (
	"encoding/json"
	"testing"
)

// TestSeverityString tests the String method of Severity.
func TestSeverityString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		severity Severity
		expected string
	}{
		{SeverityUnknown, "Unknown"},
		{SeverityOK, "OK"},
		{SeverityWarning, "Warning"},
		{SeverityCritical, "Critical"},
		{Severity(999), "Unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.severity.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.severity.String(), tc.expected)
			}
		})
	}
}

// TestParseSeverity tests case-insensitive parsing and vendor aliases.
func TestParseSeverity(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected Severity
	}{
		{"OK", SeverityOK},
		{"ok", SeverityOK},
		{"Informational", SeverityOK},
		{"Warning", SeverityWarning},
		{"WARNING", SeverityWarning},
		{"  warning ", SeverityWarning},
		{"Critical", SeverityCritical},
		{"CRITICAL", SeverityCritical},
		{"error", SeverityCritical},
		{"", SeverityUnknown},
		{"bogus", SeverityUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			if got := ParseSeverity(tc.input); got != tc.expected {
				t.Errorf("ParseSeverity(%q) = %v, expected %v", tc.input, got, tc.expected)
			}
		})
	}
}

// TestSeverityOrdering tests that severity levels are ordered correctly.
// Unknown < OK < Warning < Critical
func TestSeverityOrdering(t *testing.T) {
	t.Parallel()

	if !(SeverityUnknown < SeverityOK && SeverityOK < SeverityWarning && SeverityWarning < SeverityCritical) {
		t.Error("severity constants are not ordered from least to most severe")
	}
	if !SeverityCritical.AtLeast(SeverityWarning) {
		t.Error("Critical should be at least Warning")
	}
	if SeverityOK.AtLeast(SeverityWarning) {
		t.Error("OK should not be at least Warning")
	}
}

// TestSeverityJSON tests that severity is serialized by name.
func TestSeverityJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(struct {
		S Severity `json:"s"`
	}{S: SeverityWarning})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"s":"Warning"}` {
		t.Errorf("got %s", data)
	}

	var decoded struct {
		S Severity `json:"s"`
	}
	if err := json.Unmarshal([]byte(`{"s":"critical"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.S != SeverityCritical {
		t.Errorf("got %v, expected Critical", decoded.S)
	}
}
