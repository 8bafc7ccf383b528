package model

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// FailureKind classifies a per-path failure.
type FailureKind string

const (
	// FailureFetch covers transport errors and non-2xx responses.
	FailureFetch FailureKind = "fetch-failed"

	// FailureDecode means the body was not valid JSON.
	FailureDecode FailureKind = "decode-failed"

	// FailureStore means the snapshot store rejected the snapshot.
	FailureStore FailureKind = "store-failed"
)

// Failure is one path that could not be fetched, decoded, or stored.
// Failures are values in CrawlResult, never errors returned by Crawl.
type Failure struct {
	// Path is the resource path relative to the base URI.
	Path string `json:"path"`

	// Kind classifies the failure.
	Kind FailureKind `json:"kind"`

	// StatusCode is the HTTP status when a response was received.
	StatusCode int `json:"status_code,omitempty"`

	// Message is the cause rendered as text.
	Message string `json:"message"`

	// Cause is the underlying error. Not serialized.
	Cause error `json:"-"`
}

// Error implements the error interface.
func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %s", f.Kind, f.Path, f.Message)
}

// Unwrap returns the underlying cause.
func (f Failure) Unwrap() error {
	return f.Cause
}

// Skipped counts links that were discovered but not fetched.
type Skipped struct {
	// Filtered counts links rejected by the path filter.
	Filtered int `json:"filtered"`

	// Duplicate counts links already in the visited set.
	Duplicate int `json:"duplicate"`

	// Limit counts links dropped because the resource cap was reached.
	Limit int `json:"limit"`
}

// CrawlResult is everything one crawl produced.
type CrawlResult struct {
	// BaseURI is the scheme and authority the crawl ran against.
	BaseURI string `json:"base_uri"`

	// Root is the root path the crawl started from.
	Root string `json:"root"`

	// Pattern is the filter pattern in effect.
	Pattern string `json:"pattern"`

	// Visited lists relative paths in the order they were claimed.
	Visited []string `json:"visited"`

	// Snapshots holds successful snapshots keyed by relative path.
	Snapshots map[string]*Snapshot `json:"-"`

	// Failures lists per-path failures in the order they happened.
	Failures []Failure `json:"failures,omitempty"`

	// Skipped counts links that were seen but not fetched.
	Skipped Skipped `json:"skipped"`

	// StartedAt and FinishedAt bound the crawl.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewCrawlResult creates an empty result for one crawl.
func NewCrawlResult(baseURI, root, pattern string) *CrawlResult {
	return &CrawlResult{
		BaseURI:   baseURI,
		Root:      root,
		Pattern:   pattern,
		Visited:   make([]string, 0),
		Snapshots: make(map[string]*Snapshot),
		Failures:  make([]Failure, 0),
		StartedAt: time.Now(),
	}
}

// Duration returns how long the crawl ran.
func (r *CrawlResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Err aggregates the failures into one error, or returns nil when there are none.
func (r *CrawlResult) Err() error {
	var merr *multierror.Error
	for _, f := range r.Failures {
		merr = multierror.Append(merr, f)
	}
	return merr.ErrorOrNil()
}

// SortedSnapshots returns the successful snapshots in visit order.
func (r *CrawlResult) SortedSnapshots() []*Snapshot {
	out := make([]*Snapshot, 0, len(r.Snapshots))
	for _, p := range r.Visited {
		if s, ok := r.Snapshots[p]; ok {
			out = append(out, s)
		}
	}
	return out
}
