package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/redfishscan/internal/model"
)

// finalizeTimeout bounds each Finalize call. Finalizers run on a context
// detached from the pipeline's so that a cancelled run still logs out and
// records its history.
const finalizeTimeout = 30 * time.Second

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the accumulated
// report from previous steps.
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, and the report to modify.
	// Returns an error if the step fails critically; per-resource failures
	// are recorded in the report and Do returns nil.
	Do(ctx context.Context, report *model.TargetReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Finalizer is implemented by steps that hold something open after Do
// returns, such as a Redfish session or a history run. Finalize is called
// once the pipeline ends, in reverse step order, for every step whose Do
// succeeded, even when a later step failed or the context was cancelled.
type Finalizer interface {
	Finalize(ctx context.Context, report *model.TargetReport) error
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failed steps are logged and their errors
// are recorded in the report, but subsequent steps still execute.
//
// The default is to stop, because a failed login or crawl leaves nothing
// for the collectors to work on.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// Cancellation is checked before each step; steps handle their own
// cancellation while running. When the context ends, report.TimedOut is set
// and the context error is returned.
//
// Returns the first error encountered if continueOnError is false,
// or nil if all steps complete (errors are recorded in report).
func (p *Pipeline) Execute(ctx context.Context, report *model.TargetReport) error {
	var finalizers []Finalizer
	defer func() {
		p.finalize(ctx, report, finalizers)
	}()

	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"target", report.Target,
				"reason", ctx.Err(),
			)
			report.TimedOut = true
			p.recordError(report, ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"target", report.Target,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"target", report.Target,
				"error", err,
			)

			if ctx.Err() != nil {
				report.TimedOut = true
			}
			p.recordError(report, err)

			if !p.continueOnError {
				return err
			}
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"target", report.Target,
		)
		if f, ok := step.(Finalizer); ok {
			finalizers = append(finalizers, f)
		}
		report.AddPerformedScan(step.Name())
	}

	return nil
}

// finalize runs finalizers in reverse order. A finalizer error is recorded
// in the report only when nothing failed before it.
func (p *Pipeline) finalize(ctx context.Context, report *model.TargetReport, finalizers []Finalizer) {
	for i := len(finalizers) - 1; i >= 0; i-- {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		err := finalizers[i].Finalize(fctx, report)
		cancel()
		if err == nil {
			continue
		}
		p.logger.Warn("finalize failed",
			"target", report.Target,
			"error", err,
		)
		if report.Error == nil {
			p.recordError(report, err)
		}
	}
}

func (p *Pipeline) recordError(report *model.TargetReport, err error) {
	report.Error = err
	report.ErrorMessage = err.Error()
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
