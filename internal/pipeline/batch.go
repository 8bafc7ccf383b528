package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/redfishscan/internal/model"
)

// Target identifies one Redfish service in a batch.
type Target struct {
	// Name is the display name, usually from the targets file.
	Name string

	// BaseURI is the scheme and authority of the service.
	BaseURI string
}

// Factory builds the pipeline for one target. Each target gets its own
// pipeline, and with it its own client, visited set and store.
type Factory func(target Target) (*Pipeline, error)

// BatchProcessor runs one pipeline per target with bounded parallelism.
// It uses errgroup to manage goroutines and respect concurrency limits.
type BatchProcessor struct {
	// command is recorded in every report.
	command string

	// factory creates the pipeline for each target.
	factory Factory

	// concurrency is the maximum number of targets processed at once.
	concurrency int

	// targetTimeout bounds each target's pipeline. 0 means no limit.
	targetTimeout time.Duration

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed reports in target order.
	results []*model.TargetReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of targets processed at once.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithTargetTimeout bounds the time spent on each target. A target that
// runs out of time is reported with TimedOut set.
func WithTargetTimeout(d time.Duration) BatchOption {
	return func(b *BatchProcessor) {
		if d > 0 {
			b.targetTimeout = d
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor for command.
func NewBatchProcessor(command string, factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		command:     command,
		factory:     factory,
		concurrency: 4,
		results:     make([]*model.TargetReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs every target and returns one report per target in input
// order, including reports of targets that failed.
//
// A failing target never stops the others; its error is recorded in its
// report. The returned error is non-nil only when ctx was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []Target) ([]*model.TargetReport, error) {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()
	bp.results = make([]*model.TargetReport, len(targets))

	err := bp.run(ctx, targets, func(report *model.TargetReport, index int) {
		bp.mu.Lock()
		bp.results[index] = report
		bp.mu.Unlock()
	})

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}

// ProcessBatchWithCallback runs every target and calls callback as each one
// completes. The callback is called from the goroutine that processed the
// target, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []Target,
	callback func(report *model.TargetReport, index int),
) error {
	bp.logger.Info("starting batch processing with callback",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	return bp.run(ctx, targets, callback)
}

func (bp *BatchProcessor) run(ctx context.Context, targets []Target, done func(*model.TargetReport, int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("processing target",
				"target", target.Name,
				"index", i+1,
				"total", len(targets),
			)

			report := bp.processTarget(ctx, target)
			done(report, i)

			if report.Error != nil {
				bp.logger.Warn("target failed",
					"target", target.Name,
					"error", report.Error,
				)
			} else {
				bp.logger.Info("target completed",
					"target", target.Name,
				)
			}
			// The error is in the report; the other targets keep going.
			return nil
		})
	}

	return g.Wait()
}

// processTarget builds and runs the pipeline of one target.
func (bp *BatchProcessor) processTarget(ctx context.Context, target Target) *model.TargetReport {
	report := model.NewTargetReport(target.Name, target.BaseURI, bp.command)

	if bp.targetTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bp.targetTimeout)
		defer cancel()
	}

	p, err := bp.factory(target)
	if err != nil {
		err = fmt.Errorf("failed to set up %s: %w", target.Name, err)
		report.Error = err
		report.ErrorMessage = err.Error()
		return report
	}

	if err := p.Execute(ctx, report); err != nil && errors.Is(err, context.DeadlineExceeded) {
		report.TimedOut = true
	}
	return report
}
