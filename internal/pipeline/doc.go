// Package pipeline runs the per-target steps of a redfishscan command.
//
// A command is a fixed sequence of steps over one model.TargetReport:
// open a session, begin a history run, crawl, then collect logs or run
// actions. Steps that hold something open (the session, the run) implement
// Finalizer and are closed when the pipeline ends, even on failure.
//
// BatchProcessor runs one pipeline per target with bounded parallelism
// using errgroup. Targets never share a client, visited set or store.
package pipeline
