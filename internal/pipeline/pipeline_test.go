package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nao1215/redfishscan/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, report *model.TargetReport) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, report *model.TargetReport) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, report)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

// finalizingStep records when Finalize runs.
type finalizingStep struct {
	mockStep
	finalized *[]string
	err       error
	ctxErr    error
}

// Finalize implements Finalizer.
func (f *finalizingStep) Finalize(ctx context.Context, _ *model.TargetReport) error {
	*f.finalized = append(*f.finalized, f.name)
	f.ctxErr = ctx.Err()
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestReport() *model.TargetReport {
	return model.NewTargetReport("bmc1", "https://bmc", model.ScanInventory)
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p == nil {
			t.Fatal("expected non-nil pipeline")
		}
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()

		p := New(WithLogger(nil))
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})
}

// TestPipelineAddStep tests adding steps to the pipeline.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	if p.StepCount() != 3 {
		t.Fatalf("expected 3 steps, got %d", p.StepCount())
	}
	expected := []string{"first", "second", "third"}
	for i, name := range p.StepNames() {
		if name != expected[i] {
			t.Errorf("step %d: got %q, expected %q", i, name, expected[i])
		}
	}
}

// TestPipelineExecute tests pipeline execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		executionOrder := make([]string, 0)
		record := func(name string) func(context.Context, *model.TargetReport) error {
			return func(_ context.Context, _ *model.TargetReport) error {
				executionOrder = append(executionOrder, name)
				return nil
			}
		}

		p := New(WithLogger(discardLogger()))
		p.AddStep(&mockStep{name: "step-1", doFunc: record("step-1")})
		p.AddStep(&mockStep{name: "step-2", doFunc: record("step-2")})

		report := newTestReport()
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(executionOrder) != 2 || executionOrder[0] != "step-1" || executionOrder[1] != "step-2" {
			t.Errorf("wrong execution order: %v", executionOrder)
		}
		if len(report.PerformedScans) != 2 {
			t.Errorf("expected 2 performed scans, got %v", report.PerformedScans)
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("step failed")
		second := &mockStep{name: "should-not-run"}

		p := New(WithLogger(discardLogger()))
		p.AddStep(&mockStep{
			name: "failing-step",
			doFunc: func(_ context.Context, _ *model.TargetReport) error {
				return expectedErr
			},
		})
		p.AddStep(second)

		report := newTestReport()
		err := p.Execute(context.Background(), report)

		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if second.callCount != 0 {
			t.Error("second step should not have been called")
		}
		if report.ErrorMessage != expectedErr.Error() {
			t.Errorf("expected error message %q, got %q", expectedErr.Error(), report.ErrorMessage)
		}
		if len(report.PerformedScans) != 0 {
			t.Errorf("failed step should not be recorded, got %v", report.PerformedScans)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		second := &mockStep{name: "should-run"}

		p := New(WithContinueOnError(true), WithLogger(discardLogger()))
		p.AddStep(&mockStep{
			name: "failing-step",
			doFunc: func(_ context.Context, _ *model.TargetReport) error {
				return errors.New("step failed")
			},
		})
		p.AddStep(second)

		report := newTestReport()
		if err := p.Execute(context.Background(), report); err != nil {
			t.Errorf("expected nil error with continueOnError, got %v", err)
		}
		if second.callCount != 1 {
			t.Error("second step should have been called")
		}
		if report.Error == nil {
			t.Error("expected error recorded in report")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "should-not-run"}
		p := New(WithLogger(discardLogger()))
		p.AddStep(step)

		report := newTestReport()
		err := p.Execute(ctx, report)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("step should not have been called")
		}
		if !report.TimedOut {
			t.Error("report.TimedOut should be true")
		}
	})
}

// TestPipelineFinalize tests finalizer ordering and error handling.
func TestPipelineFinalize(t *testing.T) {
	t.Parallel()

	t.Run("runs in reverse order after success", func(t *testing.T) {
		t.Parallel()

		var finalized []string
		p := New(WithLogger(discardLogger()))
		p.AddSteps(
			&finalizingStep{mockStep: mockStep{name: "session"}, finalized: &finalized},
			&mockStep{name: "plain"},
			&finalizingStep{mockStep: mockStep{name: "record"}, finalized: &finalized},
		)

		if err := p.Execute(context.Background(), newTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(finalized) != 2 || finalized[0] != "record" || finalized[1] != "session" {
			t.Errorf("unexpected finalize order: %v", finalized)
		}
	})

	t.Run("skips steps that failed or never ran", func(t *testing.T) {
		t.Parallel()

		var finalized []string
		p := New(WithLogger(discardLogger()))
		p.AddSteps(
			&finalizingStep{mockStep: mockStep{name: "session"}, finalized: &finalized},
			&finalizingStep{
				mockStep: mockStep{
					name: "failing",
					doFunc: func(_ context.Context, _ *model.TargetReport) error {
						return errors.New("boom")
					},
				},
				finalized: &finalized,
			},
			&finalizingStep{mockStep: mockStep{name: "never"}, finalized: &finalized},
		)

		_ = p.Execute(context.Background(), newTestReport())
		if len(finalized) != 1 || finalized[0] != "session" {
			t.Errorf("expected only session to finalize, got %v", finalized)
		}
	})

	t.Run("runs with live context after cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var finalized []string
		session := &finalizingStep{mockStep: mockStep{name: "session"}, finalized: &finalized}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(
			session,
			&mockStep{
				name: "cancels",
				doFunc: func(ctx context.Context, _ *model.TargetReport) error {
					cancel()
					return ctx.Err()
				},
			},
		)

		report := newTestReport()
		err := p.Execute(ctx, report)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(finalized) != 1 {
			t.Fatal("expected session to finalize")
		}
		if session.ctxErr != nil {
			t.Errorf("finalize context should be live, got %v", session.ctxErr)
		}
		if !report.TimedOut {
			t.Error("expected TimedOut")
		}
	})

	t.Run("finalize error recorded when nothing else failed", func(t *testing.T) {
		t.Parallel()

		var finalized []string
		finalizeErr := errors.New("logout failed")
		p := New(WithLogger(discardLogger()))
		p.AddStep(&finalizingStep{mockStep: mockStep{name: "session"}, finalized: &finalized, err: finalizeErr})

		report := newTestReport()
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !errors.Is(report.Error, finalizeErr) {
			t.Errorf("expected finalize error in report, got %v", report.Error)
		}
	})
}
