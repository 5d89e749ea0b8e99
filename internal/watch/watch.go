// Package watch reruns tasks when files below the source root change.
//
// A single Backend observes the tree. Every changed path is matched against
// each Binding; a binding owns one goroutine that debounces its triggers and
// runs its task serially, so runs of one binding never overlap and a burst of
// changes during a run produces exactly one follow-up run.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetpipe/internal/fileset"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// Binding ties a set of source-relative patterns to the task they trigger.
type Binding struct {
	Name  string
	Files *fileset.Set
	Task  pipeline.Task
}

// Watcher dispatches backend events to bindings.
type Watcher struct {
	root     string
	backend  Backend
	debounce time.Duration
	recorder metrics.Recorder
	bindings []Binding
}

// New creates a watcher for root. A nil recorder discards metrics.
func New(root string, backend Backend, debounce time.Duration, recorder metrics.Recorder, bindings ...Binding) *Watcher {
	return &Watcher{
		root:     root,
		backend:  backend,
		debounce: debounce,
		recorder: metrics.OrNoop(recorder),
		bindings: bindings,
	}
}

func (w *Watcher) Name() string { return "watch" }

// Bindings returns the configured bindings.
func (w *Watcher) Bindings() []Binding { return w.bindings }

// Run blocks until ctx is canceled or the backend fails. Task failures are
// logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	root, err := filepath.Abs(w.root)
	if err != nil {
		return ferrors.WatchError("failed to resolve watch root").WithCause(err).Build()
	}

	events := make(chan string, 256)
	triggers := make([]chan struct{}, len(w.bindings))
	for i := range triggers {
		triggers[i] = make(chan struct{}, 1)
	}

	names := make([]string, len(w.bindings))
	for i, b := range w.bindings {
		names[i] = b.Name
	}
	slog.Info("Watching for changes", logfields.Path(root), "backend", w.backend.Name(), "bindings", strings.Join(names, ","))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := w.backend.Run(gctx, root, events)
		if gctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("backend stopped")
		}
		return ferrors.WatchError("watcher stopped").WithCause(err).
			WithContext("backend", w.backend.Name()).Build()
	})
	for i, b := range w.bindings {
		g.Go(func() error {
			w.serve(gctx, b, triggers[i])
			return nil
		})
	}
	g.Go(func() error {
		w.dispatch(gctx, root, events, triggers)
		return nil
	})
	return g.Wait()
}

func (w *Watcher) dispatch(ctx context.Context, root string, events <-chan string, triggers []chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-events:
			rel, err := filepath.Rel(root, path)
			if err != nil || rel == "." || strings.HasPrefix(rel, "..") || ignored(rel) {
				continue
			}
			rel = fileset.Normalize(rel)
			for i, b := range w.bindings {
				if !b.Files.Match(rel) {
					continue
				}
				slog.Debug("Change matched", logfields.Binding(b.Name), logfields.File(rel))
				select {
				case triggers[i] <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (w *Watcher) serve(ctx context.Context, b Binding, trigger <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
		}
		if !w.settle(ctx, trigger) {
			return
		}

		w.recorder.IncWatchTrigger(b.Name)
		runCtx, runID := pipeline.WithRunID(ctx)
		if err := b.Task.Run(runCtx); err != nil && ctx.Err() == nil {
			slog.Warn("Watch task failed", logfields.Binding(b.Name), logfields.Task(b.Task.Name()),
				logfields.RunID(runID), logfields.Error(err))
		}
	}
}

// settle waits until no trigger arrived for the debounce period. It reports
// false when ctx ends first.
func (w *Watcher) settle(ctx context.Context, trigger <-chan struct{}) bool {
	if w.debounce <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(w.debounce)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-trigger:
			timer.Reset(w.debounce)
		case <-timer.C:
			return true
		}
	}
}

// ignored reports editor temp files and hidden files.
func ignored(rel string) bool {
	base := filepath.Base(rel)
	if isHidden(base) {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasSuffix(base, ".tmp") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db" || base == "4913"
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
