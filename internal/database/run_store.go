package database

import (
	"context"
	"time"

	"github.com/nao1215/redfishscan/internal/model"
)

// RunStore writes the snapshots of one run into a CrawlDB. It implements
// crawler.Store and is safe for concurrent use.
type RunStore struct {
	db  *CrawlDB
	run Run
}

// ID returns the run ID.
func (s *RunStore) ID() string {
	return s.run.ID
}

// Run returns the run metadata as it was when the run began.
func (s *RunStore) Run() Run {
	return s.run
}

// Put stores snap under the run. The path argument is the crawler's
// relative key and takes precedence over snap.Path.
func (s *RunStore) Put(ctx context.Context, path string, snap *model.Snapshot) error {
	if snap.Path != path {
		cp := *snap
		cp.Path = path
		snap = &cp
	}
	return s.db.InsertSnapshot(ctx, s.run.ID, snap)
}

// Finish records the crawl counts and, when report is non-nil, stores it.
func (s *RunStore) Finish(ctx context.Context, result *model.CrawlResult, report *model.TargetReport) error {
	finished := time.Now()
	visited, failures := 0, 0
	if result != nil {
		visited = len(result.Visited)
		failures = len(result.Failures)
		if !result.FinishedAt.IsZero() {
			finished = result.FinishedAt
		}
	}
	if err := s.db.FinishRun(ctx, s.run.ID, finished, visited, failures); err != nil {
		return err
	}
	if report == nil {
		return nil
	}
	return s.db.SaveReport(ctx, s.run.ID, report)
}
