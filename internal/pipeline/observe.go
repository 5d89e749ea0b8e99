package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

type runIDKey struct{}

// WithRunID returns a context tagged with a fresh run id.
func WithRunID(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(ctx, runIDKey{}, id), id
}

// RunIDFrom returns the run id stored in ctx, or "".
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Run executes task as one pipeline invocation tagged with a run id.
func Run(ctx context.Context, task Task) error {
	ctx, id := WithRunID(ctx)
	start := time.Now()
	slog.Info("Pipeline started", logfields.Pipeline(task.Name()), logfields.RunID(id))
	err := task.Run(ctx)
	attrs := []any{logfields.Pipeline(task.Name()), logfields.RunID(id), logfields.Duration(time.Since(start))}
	if err != nil {
		slog.Debug("Pipeline failed", append(attrs, logfields.Error(err))...)
		return err
	}
	slog.Info("Pipeline finished", attrs...)
	return nil
}

type observed struct {
	Task
	recorder metrics.Recorder
}

// Observe logs start and completion of task and records its duration and result.
func Observe(task Task, recorder metrics.Recorder) Task {
	return &observed{Task: task, recorder: metrics.OrNoop(recorder)}
}

func (o *observed) Run(ctx context.Context) error {
	runID := RunIDFrom(ctx)
	slog.Debug("Task started", logfields.Task(o.Name()), logfields.RunID(runID))

	start := time.Now()
	err := o.Task.Run(ctx)
	dur := time.Since(start)
	o.recorder.ObserveTaskDuration(o.Name(), dur)

	switch {
	case err == nil:
		o.recorder.IncTaskResult(o.Name(), metrics.ResultSuccess)
		slog.Info("Task finished", logfields.Task(o.Name()), logfields.RunID(runID), logfields.Duration(dur))
	case errors.Is(err, context.Canceled):
		o.recorder.IncTaskResult(o.Name(), metrics.ResultCanceled)
		slog.Debug("Task canceled", logfields.Task(o.Name()), logfields.RunID(runID))
	default:
		o.recorder.IncTaskResult(o.Name(), metrics.ResultFailed)
		slog.Debug("Task failed", logfields.Task(o.Name()), logfields.RunID(runID),
			logfields.Duration(dur), logfields.Error(err))
	}
	return err
}

func (o *observed) describe() Node { return Describe(o.Task) }
