// Package database provides SQLite-based run history for redfishscan.
//
// CrawlDB stores:
//   - Runs: one row per command executed against one target
//   - Snapshots: every resource a run visited, with its body and hash
//   - Reports: the final TargetReport of each run as JSON
//
// RunStore adapts a single run to the crawler.Store interface, so the crawl
// engine writes straight into the history while it walks the graph.
//
// The history is an output archive. The crawler never reads it back, so
// every crawl starts cold. The compare command and the history queries are
// its only readers.
//
// SQLite is provided by modernc.org/sqlite, which is CGO-free and keeps the
// binary easy to cross-compile for management hosts.
package database
