package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	rwatcher "github.com/radovskyb/watcher"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Backend reports changed paths below root until ctx is canceled.
// Paths sent on out are absolute.
type Backend interface {
	Name() string
	Run(ctx context.Context, root string, out chan<- string) error
}

// NewBackend returns the backend selected in cfg.
func NewBackend(cfg config.WatchConfig) (Backend, error) {
	switch cfg.Backend {
	case config.WatchBackendPolling:
		return &PollingBackend{Interval: cfg.Interval}, nil
	case config.WatchBackendNative:
		return &NativeBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown watch backend %q", cfg.Backend)
	}
}

func send(ctx context.Context, out chan<- string, path string) {
	select {
	case out <- path:
	case <-ctx.Done():
	}
}

// PollingBackend scans the tree on an interval. It works on network and
// container mounts where change notifications are not delivered.
type PollingBackend struct {
	Interval time.Duration
}

func (b *PollingBackend) Name() string { return string(config.WatchBackendPolling) }

func (b *PollingBackend) Run(ctx context.Context, root string, out chan<- string) error {
	interval := b.Interval
	if interval < time.Millisecond {
		interval = 100 * time.Millisecond
	}

	w := rwatcher.New()
	w.IgnoreHiddenFiles(true)
	w.FilterOps(rwatcher.Create, rwatcher.Write, rwatcher.Remove, rwatcher.Rename, rwatcher.Move)
	if err := w.AddRecursive(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	started := make(chan error, 1)
	go func() { started <- w.Start(interval) }()

	for {
		select {
		case <-ctx.Done():
			stopPolling(w, started)
			return nil
		case err := <-started:
			return err
		case ev := <-w.Event:
			if ev.IsDir() {
				continue
			}
			send(ctx, out, ev.Path)
			if ev.OldPath != "" && ev.OldPath != ev.Path {
				send(ctx, out, ev.OldPath)
			}
		case err := <-w.Error:
			if errors.Is(err, rwatcher.ErrWatchedFileDeleted) {
				slog.Debug("Watched file removed", logfields.Error(err))
				continue
			}
			slog.Warn("Polling watcher error", logfields.Error(err))
		case <-w.Closed:
			return nil
		}
	}
}

// stopPolling closes w while draining its channels, since the poll loop blocks
// on unread events.
func stopPolling(w *rwatcher.Watcher, started <-chan error) {
	go func() {
		w.Wait()
		w.Close()
	}()
	for {
		select {
		case <-w.Event:
		case <-w.Error:
		case <-w.Closed:
			return
		case <-started:
			return
		}
	}
}

// NativeBackend uses operating system change notifications.
type NativeBackend struct{}

func (b *NativeBackend) Name() string { return string(config.WatchBackendNative) }

func (b *NativeBackend) Run(ctx context.Context, root string, out chan<- string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = w.Close() }()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = addDirsRecursive(w, ev.Name)
					continue
				}
			}
			send(ctx, out, ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != root && (d.Name() == "node_modules" || isHidden(d.Name())) {
				return filepath.SkipDir
			}
			if err := w.Add(path); err != nil {
				slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}
