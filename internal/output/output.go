// Package output manages the output tree: emptying it before a build and
// copying finished assets into it.
package output

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/fileset"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/fsutil"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Clean removes every entry inside root. The root itself is kept and a
// missing root is not an error.
func Clean(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, ferrors.FileSystemError("failed to read output directory").
			WithCause(err).WithContext("path", root).Build()
	}
	for _, e := range entries {
		p := filepath.Join(root, e.Name())
		if err := os.RemoveAll(p); err != nil {
			return 0, ferrors.FileSystemError("failed to remove output entry").
				WithCause(err).WithContext("path", p).Build()
		}
	}
	return len(entries), nil
}

// Collect copies the files of sourceRoot selected by set into outputRoot,
// preserving relative paths and modes. It returns the copied paths.
func Collect(ctx context.Context, set *fileset.Set, sourceRoot, outputRoot string) ([]string, error) {
	files, err := set.Walk(sourceRoot, "node_modules")
	if err != nil {
		return nil, ferrors.FileSystemError("failed to list files to collect").
			WithCause(err).WithContext("path", sourceRoot).Build()
	}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src := filepath.Join(sourceRoot, filepath.FromSlash(rel))
		dst := filepath.Join(outputRoot, filepath.FromSlash(rel))
		if err := fsutil.CopyFile(src, dst); err != nil {
			return nil, ferrors.FileSystemError("failed to copy file").
				WithCause(err).WithContext("file", rel).WithContext("path", dst).Build()
		}
	}
	return files, nil
}

// CleanTask empties the configured output root.
type CleanTask struct{ root string }

func NewCleanTask(cfg *config.Config) *CleanTask { return &CleanTask{root: cfg.Paths.Output} }

func (t *CleanTask) Name() string { return "clean" }

func (t *CleanTask) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := Clean(t.root)
	if err != nil {
		return err
	}
	slog.Info("Output cleaned", logfields.Task(t.Name()), logfields.Path(t.root), logfields.Count(n))
	return nil
}

// CollectTask copies built assets from the source root into the output root.
type CollectTask struct {
	sourceRoot string
	outputRoot string
	set        *fileset.Set
}

func NewCollectTask(cfg *config.Config) (*CollectTask, error) {
	set, err := fileset.New(cfg.Collect.Patterns...)
	if err != nil {
		return nil, ferrors.ConfigError("invalid collect.patterns").WithCause(err).Build()
	}
	return &CollectTask{sourceRoot: cfg.Paths.Source, outputRoot: cfg.Paths.Output, set: set}, nil
}

func (t *CollectTask) Name() string { return "collect" }

func (t *CollectTask) Run(ctx context.Context) error {
	files, err := Collect(ctx, t.set, t.sourceRoot, t.outputRoot)
	if err != nil {
		return err
	}
	slog.Info("Files collected", logfields.Task(t.Name()), logfields.Count(len(files)))
	return nil
}
