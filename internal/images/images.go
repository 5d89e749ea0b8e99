// Package images optimizes the source images of the site into a mirrored
// distribution directory, skipping files whose content has not changed since
// the last run.
package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/fileset"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/fsutil"
	"git.home.luguber.info/inful/assetpipe/internal/livereload"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

const workers = 4

// Task is the images leaf task.
type Task struct {
	sourceRoot string
	srcDir     string // slash-separated, relative to sourceRoot
	distDir    string
	set        *fileset.Set
	optimizer  *Optimizer
	cache      func() (Cache, error)
	notifier   livereload.Notifier
	recorder   metrics.Recorder
}

// Patterns returns the input patterns for srcDir.
func Patterns(srcDir string) []string {
	return []string{strings.TrimSuffix(srcDir, "/") + "/**/*"}
}

// NewTask builds the images task. cache is called on every run and may open the
// cache lazily.
func NewTask(cfg *config.Config, cache func() (Cache, error), notifier livereload.Notifier, recorder metrics.Recorder) *Task {
	return &Task{
		sourceRoot: cfg.Paths.Source,
		srcDir:     cfg.Images.Source,
		distDir:    cfg.Images.Output,
		set:        fileset.MustNew(Patterns(cfg.Images.Source)...),
		optimizer:  NewOptimizer(cfg.Images.JPEGQuality),
		cache:      cache,
		notifier:   livereload.OrDiscard(notifier),
		recorder:   metrics.OrNoop(recorder),
	}
}

func (t *Task) Name() string { return "images" }

func (t *Task) Run(ctx context.Context) error {
	files, err := t.set.Walk(t.sourceRoot)
	if err != nil {
		return ferrors.ImageError("failed to list images").WithCause(err).Build()
	}
	distRoot := filepath.Join(t.sourceRoot, filepath.FromSlash(t.distDir))
	if len(files) == 0 && !fsutil.Exists(distRoot) {
		slog.Debug("No images found", logfields.Task(t.Name()), logfields.Path(t.srcDir))
		return nil
	}
	cache, err := t.cache()
	if err != nil {
		return ferrors.ImageError("failed to open image cache").WithCause(err).Build()
	}

	var written, skipped atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			wrote, err := t.process(gctx, cache, rel)
			if err != nil {
				return err
			}
			if wrote {
				written.Add(1)
			} else {
				skipped.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	t.recorder.AddImagesProcessed(int(written.Load()), int(skipped.Load()))
	if err != nil {
		return err
	}

	removed, err := t.prune(ctx, cache, distRoot, files)
	if err != nil {
		return err
	}

	slog.Info("Images processed", logfields.Task(t.Name()),
		"written", written.Load(), "skipped", skipped.Load(), "removed", removed)
	if written.Load() > 0 || removed > 0 {
		t.notifier.Notify(livereload.KindImage)
	}
	return nil
}

// prune deletes distribution files whose source image no longer exists, along
// with their cache records and any directories left empty.
func (t *Task) prune(ctx context.Context, cache Cache, distRoot string, files []string) (int, error) {
	keep := make(map[string]struct{}, len(files))
	for _, rel := range files {
		keep[t.DistPath(rel)] = struct{}{}
	}

	var stale, dirs []string
	err := filepath.WalkDir(distRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if p != distRoot {
				dirs = append(dirs, p)
			}
			return nil
		}
		rel, err := filepath.Rel(t.sourceRoot, p)
		if err != nil {
			return err
		}
		if _, ok := keep[fileset.Normalize(rel)]; !ok {
			stale = append(stale, fileset.Normalize(rel))
		}
		return nil
	})
	if err != nil {
		return 0, ferrors.ImageError("failed to list optimized images").WithCause(err).Build()
	}

	for _, rel := range stale {
		if err := os.Remove(filepath.Join(t.sourceRoot, filepath.FromSlash(rel))); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, ferrors.ImageError("failed to remove stale image").WithCause(err).WithContext("file", rel).Build()
		}
		if err := cache.Delete(ctx, t.SourcePath(rel)); err != nil {
			return 0, ferrors.ImageError("image cache update failed").WithCause(err).WithContext("file", rel).Build()
		}
		slog.Debug("Stale image removed", logfields.Task(t.Name()), logfields.File(rel))
	}
	if len(stale) > 0 {
		// Deepest first; non-empty directories fail to remove and are kept.
		sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
		for _, dir := range dirs {
			_ = os.Remove(dir)
		}
	}
	return len(stale), nil
}

// DistPath maps a source image path to its distribution path (both relative to the source root).
func (t *Task) DistPath(rel string) string {
	inner := strings.TrimPrefix(rel, strings.TrimSuffix(t.srcDir, "/")+"/")
	return path.Join(t.distDir, inner)
}

// SourcePath is the inverse of DistPath.
func (t *Task) SourcePath(rel string) string {
	inner := strings.TrimPrefix(rel, strings.TrimSuffix(t.distDir, "/")+"/")
	return path.Join(t.srcDir, inner)
}

func (t *Task) process(ctx context.Context, cache Cache, rel string) (bool, error) {
	src := filepath.Join(t.sourceRoot, filepath.FromSlash(rel))
	dst := filepath.Join(t.sourceRoot, filepath.FromSlash(t.DistPath(rel)))

	data, err := os.ReadFile(src)
	if err != nil {
		return false, ferrors.ImageError("failed to read image").WithCause(err).WithContext("file", rel).Build()
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	rec, ok, err := cache.Get(ctx, rel)
	if err != nil {
		return false, ferrors.ImageError("image cache lookup failed").WithCause(err).WithContext("file", rel).Build()
	}
	if ok && rec.SourceHash == hash && fsutil.Exists(dst) {
		return false, nil
	}

	out, err := t.optimizer.Optimize(rel, data)
	if err != nil {
		return false, ferrors.ImageError("failed to optimize image").WithCause(err).WithContext("file", rel).Build()
	}
	info, err := os.Stat(src)
	if err != nil {
		return false, ferrors.ImageError("failed to stat image").WithCause(err).WithContext("file", rel).Build()
	}
	if err := fsutil.WriteFileAtomic(dst, out, info.Mode().Perm()); err != nil {
		return false, ferrors.ImageError("failed to write image").WithCause(err).WithContext("file", rel).Build()
	}
	if err := cache.Put(ctx, Record{
		Path:          rel,
		SourceHash:    hash,
		Size:          int64(len(data)),
		OptimizedSize: int64(len(out)),
		OptimizedAt:   time.Now(),
	}); err != nil {
		return false, ferrors.ImageError("image cache update failed").WithCause(err).WithContext("file", rel).Build()
	}
	slog.Debug("Image optimized", logfields.Task(t.Name()), logfields.File(rel),
		"size", len(data), "optimized_size", len(out))
	return true, nil
}
