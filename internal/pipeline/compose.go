package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

type sequential struct {
	name  string
	tasks []Task
}

// Sequential runs tasks in order. Step N+1 starts only after step N returned nil;
// the first error is returned wrapped with the failing step's name. The context is
// checked before every step.
func Sequential(name string, tasks ...Task) Task {
	return &sequential{name: name, tasks: tasks}
}

func (s *sequential) Name() string { return s.name }

func (s *sequential) Run(ctx context.Context) error {
	for _, t := range s.tasks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: canceled before %s: %w", s.name, t.Name(), err)
		}
		if err := t.Run(ctx); err != nil {
			return fmt.Errorf("%s: %w", t.Name(), err)
		}
	}
	return nil
}

func (s *sequential) describe() Node { return group(s.name, KindSequential, s.tasks) }

type parallel struct {
	name  string
	tasks []Task
}

// Parallel starts every task concurrently and completes when all have completed.
// A failure does not cancel siblings; the first error is returned.
// Members must write disjoint outputs.
func Parallel(name string, tasks ...Task) Task {
	return &parallel{name: name, tasks: tasks}
}

func (p *parallel) Name() string { return p.name }

func (p *parallel) Run(ctx context.Context) error {
	var g errgroup.Group
	for _, t := range p.tasks {
		g.Go(func() error {
			if err := t.Run(ctx); err != nil {
				return fmt.Errorf("%s: %w", t.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *parallel) describe() Node { return group(p.name, KindParallel, p.tasks) }

type supervise struct {
	name  string
	tasks []Task
}

// Supervise runs long-lived tasks concurrently on a shared context that is canceled
// when any member fails or the parent context ends. It returns once every member has
// returned.
func Supervise(name string, tasks ...Task) Task {
	return &supervise{name: name, tasks: tasks}
}

func (s *supervise) Name() string { return s.name }

func (s *supervise) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range s.tasks {
		g.Go(func() error {
			if err := t.Run(gctx); err != nil {
				return fmt.Errorf("%s: %w", t.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *supervise) describe() Node { return group(s.name, KindSupervise, s.tasks) }

type recovered struct {
	Task
}

// Recover runs task and reports any error as a warning instead of returning it.
func Recover(task Task) Task {
	return &recovered{Task: task}
}

func (r *recovered) Run(ctx context.Context) error {
	if err := r.Task.Run(ctx); err != nil {
		slog.Warn("Task failed, continuing",
			logfields.Task(r.Name()),
			logfields.RunID(RunIDFrom(ctx)),
			logfields.Error(err))
	}
	return nil
}

func (r *recovered) describe() Node {
	n := Describe(r.Task)
	n.Recovers = true
	return n
}
