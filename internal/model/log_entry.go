package model

import (
	"strings"
	"time"
)

// LogEntryType is the substring of @odata.type that identifies a Redfish LogEntry.
const LogEntryType = "LogEntry"

// LogEntry is one entry collected from a LogService's Entries collection.
type LogEntry struct {
	// Service is the relative path of the LogService that owns the entry.
	Service string `json:"service"`

	// Path is the relative path of the entry itself.
	Path string `json:"path"`

	// ID is the entry's Id property.
	ID string `json:"id"`

	// Created is the parsed Created timestamp. Zero when absent or unparseable.
	Created time.Time `json:"created"`

	// Severity is the normalized severity.
	Severity Severity `json:"severity"`

	// Message is the human-readable message.
	Message string `json:"message"`

	// MessageID is the registry message identifier, e.g. "Base.1.8.Success".
	MessageID string `json:"message_id,omitempty"`

	// EntryType is the Redfish EntryType (Event, SEL, Oem).
	EntryType string `json:"entry_type,omitempty"`
}

// IsLogEntry reports whether the snapshot holds a Redfish LogEntry.
func IsLogEntry(s *Snapshot) bool {
	return !s.Failed() && strings.Contains(s.ODataType(), LogEntryType) &&
		!strings.Contains(s.ODataType(), "Collection")
}

// NewLogEntry extracts a LogEntry from a snapshot. The owning service path
// is the part of the entry path before "/Entries".
func NewLogEntry(s *Snapshot) LogEntry {
	doc := s.Document
	entry := LogEntry{
		Path:      s.Path,
		ID:        doc.GetString("Id"),
		Severity:  ParseSeverity(doc.GetString("Severity")),
		Message:   doc.GetString("Message"),
		MessageID: doc.GetString("MessageId"),
		EntryType: doc.GetString("EntryType"),
	}

	if created := doc.GetString("Created"); created != "" {
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			entry.Created = t
		}
	}

	trimmed := TrimPath(s.Path)
	if idx := strings.LastIndex(trimmed, "/Entries"); idx > 0 {
		entry.Service = trimmed[:idx]
	}
	return entry
}
