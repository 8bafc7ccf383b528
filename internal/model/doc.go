// Package model defines the core data structures used throughout redfishscan.
//
// This package contains the following main types:
//   - Snapshot: One fetched Redfish resource with its advertised HTTP methods
//   - Failure: A per-path fetch, decode, or store failure recorded during a crawl
//   - CrawlResult: Everything one crawl produced (visit order, snapshots, failures)
//   - LogEntry: A normalized Redfish LogEntry collected from a LogService
//   - ActionResult: The outcome of one write issued by the action runner
//   - TargetReport: The per-target result handed to report writers
//   - Summary: A condensed, human-readable view of a TargetReport
//
// Resource path helpers (NormalizeURL, RelativePath) also live here because the
// crawler, the database, and the diff package all need the same notion of
// "the same resource".
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
