package main

import (
	"io"
	"log/slog"

	"github.com/nao1215/redfishscan/internal/config"
	"github.com/nao1215/redfishscan/internal/model"
	"github.com/schollz/progressbar/v3"
)

// progress shows a spinner with the number of fetched resources across
// every target of a batch:
//
//	inventory  |  (412 resources, 23 res/s) [18s]
//
// A nil *progress is valid and does nothing.
type progress struct {
	bar *progressbar.ProgressBar
}

// newProgress returns a spinner on w, or nil when --progress is off or
// verbose logging would interleave with it.
func newProgress(w io.Writer, cfg *config.Config, description string) *progress {
	if !cfg.ShowProgress || cfg.Verbose {
		return nil
	}
	return &progress{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("res"),
			progressbar.OptionSetElapsedTime(true),
		),
	}
}

// Visit is the crawl engine's visit hook. It may be called concurrently.
func (p *progress) Visit(_ *model.Snapshot) {
	if err := p.bar.Add(1); err != nil {
		slog.Debug("failed to advance progress", "error", err)
	}
}

// Pause clears the spinner line so that a report can be printed.
func (p *progress) Pause() {
	if p == nil {
		return
	}
	if err := p.bar.Clear(); err != nil {
		slog.Debug("failed to clear progress", "error", err)
	}
}

// Finish stops the spinner.
func (p *progress) Finish() {
	if p == nil {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Debug("failed to finish progress", "error", err)
	}
}
