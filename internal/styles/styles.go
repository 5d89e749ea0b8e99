// Package styles compiles the stylesheet entry points of one preprocessor
// directory into a single prefixed, minified stylesheet.
package styles

import (
	"context"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/fileset"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/fsutil"
	"git.home.luguber.info/inful/assetpipe/internal/livereload"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Task is the styles leaf task.
type Task struct {
	sourceRoot string
	output     string
	set        *fileset.Set
	compiler   Compiler
	minifier   *minifier
	notifier   livereload.Notifier
}

// Patterns returns the entry point patterns for stylesDir: every file directly in
// it except underscore-prefixed partials.
func Patterns(stylesDir string) []string {
	return []string{stylesDir + "/*.*", "!" + stylesDir + "/_*.*"}
}

// NewTask builds the styles task for cfg, compiling with compiler.
func NewTask(cfg *config.Config, compiler Compiler, notifier livereload.Notifier) (*Task, error) {
	set, err := fileset.New(Patterns(cfg.StylesDir())...)
	if err != nil {
		return nil, ferrors.ConfigError("invalid styles directory").WithCause(err).Build()
	}
	m, err := newMinifier(cfg.Styles.Targets)
	if err != nil {
		return nil, ferrors.ConfigError("invalid styles.targets").WithCause(err).Build()
	}
	return &Task{
		sourceRoot: cfg.Paths.Source,
		output:     filepath.Join(cfg.Paths.Source, filepath.FromSlash(cfg.Styles.Output)),
		set:        set,
		compiler:   compiler,
		minifier:   m,
		notifier:   livereload.OrDiscard(notifier),
	}, nil
}

func (t *Task) Name() string { return "styles" }

// Run compiles every entry point. On any failure the previous output file is left as it was.
func (t *Task) Run(ctx context.Context) error {
	files, err := t.set.Walk(t.sourceRoot)
	if err != nil {
		return ferrors.StyleError("failed to list stylesheets").WithCause(err).Build()
	}
	if len(files) == 0 {
		slog.Info("No stylesheet sources found", logfields.Task(t.Name()), logfields.Path(t.sourceRoot))
		return nil
	}

	sources := make([]Source, 0, len(files))
	for _, rel := range files {
		sources = append(sources, Source{Path: filepath.Join(t.sourceRoot, filepath.FromSlash(rel)), Rel: rel})
	}

	art, err := t.compiler.Compile(ctx, sources)
	if err != nil {
		if ferrors.IsClassified(err) {
			return err
		}
		return ferrors.StyleError("style compilation failed").WithCause(err).Build()
	}
	css, err := t.minifier.Minify(art.CSS)
	if err != nil {
		return ferrors.StyleError("css post-processing failed").WithCause(err).Build()
	}

	written, err := fsutil.WriteIfChanged(t.output, css, 0o644)
	if err != nil {
		return ferrors.StyleError("failed to write stylesheet").
			WithCause(err).WithContext("path", t.output).Build()
	}
	slog.Debug("Stylesheet compiled", logfields.Task(t.Name()), logfields.Count(len(sources)), logfields.Path(t.output), "written", written)
	if written {
		t.notifier.Notify(livereload.KindCSS)
	}
	return nil
}
