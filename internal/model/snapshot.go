package model

import (
	"encoding/hex"
	"encoding/json"
	"regexp"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/redfishscan/internal/document"
)

// SupportedMethodsKey is the reserved member the crawler adds to every
// successfully fetched document. No DMTF schema defines a property with
// this name.
const SupportedMethodsKey = "SupportedHTTPMethods"

// allowSeparator splits an Allow header value: a comma plus optional whitespace.
var allowSeparator = regexp.MustCompile(`,\s*`)

// ParseAllowHeader splits an Allow header into method names.
// An empty header yields an empty, non-nil slice.
func ParseAllowHeader(value string) []string {
	methods := []string{}
	if value == "" {
		return methods
	}
	for _, m := range allowSeparator.Split(value, -1) {
		if m != "" {
			methods = append(methods, m)
		}
	}
	return methods
}

// Snapshot is one visited Redfish resource.
//
// A successful snapshot carries the decoded document augmented with
// SupportedHTTPMethods. A failed snapshot has a nil Document and a non-empty
// Error. Snapshots are handed to a store once and never mutated afterwards.
type Snapshot struct {
	// Path is the resource path relative to the target's base URI.
	Path string `json:"path"`

	// URL is the normalized absolute URL used as the visited-set key.
	URL string `json:"url"`

	// StatusCode is the HTTP status of the GET. Zero when the request never
	// produced a response.
	StatusCode int `json:"status_code"`

	// Methods lists the methods from the Allow header, in header order.
	Methods []string `json:"methods"`

	// Document is the decoded body. Nil for failed snapshots.
	Document *document.Value `json:"document,omitempty"`

	// Error is the failure message for error snapshots.
	Error string `json:"error,omitempty"`

	// FetchedAt is when the response was received.
	FetchedAt time.Time `json:"fetched_at"`
}

// NewSnapshot builds a successful snapshot and attaches the supported-methods
// member to doc.
func NewSnapshot(path, absURL string, status int, methods []string, doc *document.Value) *Snapshot {
	if methods == nil {
		methods = []string{}
	}
	if doc != nil {
		doc.Set(SupportedMethodsKey, document.NewStringArray(methods))
	}
	return &Snapshot{
		Path:       path,
		URL:        absURL,
		StatusCode: status,
		Methods:    methods,
		Document:   doc,
		FetchedAt:  time.Now(),
	}
}

// NewErrorSnapshot builds the snapshot recorded for a path whose fetch or
// decode failed.
func NewErrorSnapshot(path, absURL string, status int, cause error) *Snapshot {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Snapshot{
		Path:       path,
		URL:        absURL,
		StatusCode: status,
		Methods:    []string{},
		Error:      msg,
		FetchedAt:  time.Now(),
	}
}

// Failed reports whether the snapshot records a failure.
func (s *Snapshot) Failed() bool {
	return s.Error != ""
}

// Body returns the JSON encoding of the document, or nil for failed snapshots.
func (s *Snapshot) Body() []byte {
	if s.Document == nil {
		return nil
	}
	b, err := json.Marshal(s.Document)
	if err != nil {
		return nil
	}
	return b
}

// Hash returns the hex SHA3-256 of Body. Used to detect changes between runs.
func (s *Snapshot) Hash() string {
	sum := sha3.Sum256(s.Body())
	return hex.EncodeToString(sum[:])
}

// ODataType returns the @odata.type of the document, or "".
func (s *Snapshot) ODataType() string {
	if s.Document == nil {
		return ""
	}
	return s.Document.GetString("@odata.type")
}

// Allows reports whether method is among the advertised methods.
func (s *Snapshot) Allows(method string) bool {
	for _, m := range s.Methods {
		if m == method {
			return true
		}
	}
	return false
}
