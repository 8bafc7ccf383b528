// Package crawler discovers Redfish resources by following hypermedia links.
//
// # Architecture
//
// The package is built around the Engine type. A crawl starts at a root
// path, fetches it, pulls every @odata.id and href out of the body, and
// visits each link that passes the path filter and has not been visited
// yet. Every visited resource is handed to a Store exactly once.
//
// # Components
//
//   - ExtractLinks: Pure walk of a decoded document returning link strings
//   - Filter: Glob-segment path filter with the root always in scope
//   - Engine: Visit bookkeeping, fetch, store handoff and expansion
//   - Store: Snapshot sink (MemoryStore, DirStore, MultiStore, or the database)
//
// # Guarantees
//
//   - Each resource is fetched at most once per crawl, even when links form
//     cycles or the crawl runs with concurrency above 1.
//   - A failure at one path is recorded and never stops its siblings.
//   - A malformed request (empty root, bad pattern, root on another host)
//     fails before any fetch.
//   - Cancellation is checked before each visit; Crawl then returns the
//     partial result with the context error.
//
// # Usage
//
//	engine := crawler.New(client, crawler.NewMemoryStore(),
//	    crawler.WithConcurrency(4))
//	result, err := engine.Crawl(ctx, crawler.Request{
//	    Root:    "/redfish/v1",
//	    Pattern: "/redfish/v1/Systems/*",
//	})
package crawler
