// Package report renders target reports and run comparisons.
//
// Writers for the human-facing formats implement the Writer interface:
//   - SimpleWriter: plain text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: GitHub-flavored Markdown for sharing
//
// ParquetExporter writes flat tables (resources, log entries, actions)
// for analysis in columnar tools. It is not a Writer because a Parquet
// file holds a single schema.
package report
