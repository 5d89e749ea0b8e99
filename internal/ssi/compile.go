package ssi

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/fileset"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/fsutil"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Task compiles every markup file of the source tree into the output tree and
// then removes the output partials directory.
type Task struct {
	sourceRoot string
	outputRoot string
	partials   string
	set        *fileset.Set
	expander   *Expander
}

// NewTask builds the includes task for cfg.
func NewTask(cfg *config.Config) (*Task, error) {
	set, err := fileset.New(cfg.Includes.Pattern)
	if err != nil {
		return nil, ferrors.ConfigError("invalid includes.pattern").WithCause(err).Build()
	}
	return &Task{
		sourceRoot: cfg.Paths.Source,
		outputRoot: cfg.Paths.Output,
		partials:   cfg.Includes.Partials,
		set:        set,
		expander:   NewExpander(cfg.Paths.Source),
	}, nil
}

func (t *Task) Name() string { return "includes" }

func (t *Task) Run(ctx context.Context) error {
	files, err := t.set.Walk(t.sourceRoot, "node_modules")
	if err != nil {
		return ferrors.IncludeError("failed to list markup files").WithCause(err).Build()
	}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := t.expander.ExpandFile(rel)
		if err != nil {
			return err
		}
		dst := filepath.Join(t.outputRoot, filepath.FromSlash(rel))
		if _, err := fsutil.WriteIfChanged(dst, out, 0o644); err != nil {
			return ferrors.FileSystemError("failed to write markup").
				WithCause(err).WithContext("path", dst).Build()
		}
	}
	slog.Info("Includes compiled", logfields.Task(t.Name()), logfields.Count(len(files)))

	if t.partials != "" {
		dir := filepath.Join(t.outputRoot, filepath.FromSlash(t.partials))
		if err := os.RemoveAll(dir); err != nil {
			slog.Debug("Partials cleanup skipped", logfields.Path(dir), logfields.Error(err))
		}
	}
	return nil
}
