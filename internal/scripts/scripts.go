// Package scripts bundles the top-level script files of the source tree into one
// minified IIFE with esbuild.
package scripts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/esbuildopts"
	"git.home.luguber.info/inful/assetpipe/internal/fileset"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/fsutil"
	"git.home.luguber.info/inful/assetpipe/internal/livereload"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Patterns selects top-level scripts that are not already minified.
var Patterns = []string{"js/*.js", "!js/*.min.js"}

// Task is the scripts leaf task. Its errors are ScriptError warnings; callers
// decide whether to swallow them.
type Task struct {
	sourceRoot string
	output     string
	set        *fileset.Set
	target     api.Target
	engines    []api.Engine
	provide    providePlan
	notifier   livereload.Notifier
}

// NewTask builds the scripts task for cfg.
func NewTask(cfg *config.Config, notifier livereload.Notifier) (*Task, error) {
	target, engines, err := esbuildopts.Targets(cfg.Scripts.Targets)
	if err != nil {
		return nil, ferrors.ConfigError("invalid scripts.targets").WithCause(err).Build()
	}
	root, err := filepath.Abs(cfg.Paths.Source)
	if err != nil {
		return nil, ferrors.ConfigError("invalid source path").WithCause(err).Build()
	}
	return &Task{
		sourceRoot: root,
		output:     filepath.Join(root, filepath.FromSlash(cfg.Scripts.Output)),
		set:        fileset.MustNew(Patterns...),
		target:     target,
		engines:    engines,
		provide:    planProvide(cfg.Scripts.Provide, root),
		notifier:   livereload.OrDiscard(notifier),
	}, nil
}

func (t *Task) Name() string { return "scripts" }

func (t *Task) Run(ctx context.Context) error {
	files, err := t.set.Walk(t.sourceRoot)
	if err != nil {
		return ferrors.ScriptError("failed to list scripts").WithCause(err).Build()
	}
	if len(files) == 0 {
		slog.Info("No script sources found", logfields.Task(t.Name()), logfields.Path(t.sourceRoot))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	code, err := t.bundle(files)
	if err != nil {
		return err
	}
	written, err := fsutil.WriteIfChanged(t.output, code, 0o644)
	if err != nil {
		return ferrors.ScriptError("failed to write bundle").
			WithCause(err).WithContext("path", t.output).Build()
	}
	slog.Debug("Scripts bundled", logfields.Task(t.Name()), logfields.Count(len(files)), logfields.Path(t.output), "written", written)
	if written {
		t.notifier.Notify(livereload.KindReload)
	}
	return nil
}

func (t *Task) bundle(files []string) ([]byte, error) {
	var entry strings.Builder
	for _, rel := range files {
		fmt.Fprintf(&entry, "import %q;\n", "./"+rel)
	}

	opts := api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   entry.String(),
			ResolveDir: t.sourceRoot,
			Sourcefile: "assetpipe-entry.js",
			Loader:     api.LoaderJS,
		},
		Bundle:            true,
		Write:             false,
		Outfile:           t.output,
		Format:            api.FormatIIFE,
		Platform:          api.PlatformBrowser,
		Target:            t.target,
		Engines:           t.engines,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LegalComments:     api.LegalCommentsNone,
		NodePaths:         nodePaths(t.sourceRoot),
		LogLevel:          api.LogLevelSilent,
	}

	if t.provide.shim != "" {
		dir, err := os.MkdirTemp("", "assetpipe-provide-")
		if err != nil {
			return nil, ferrors.ScriptError("failed to prepare provide shim").WithCause(err).Build()
		}
		defer func() { _ = os.RemoveAll(dir) }()
		shim := filepath.Join(dir, "provide.js")
		if err := os.WriteFile(shim, []byte(t.provide.shim), 0o600); err != nil {
			return nil, ferrors.ScriptError("failed to prepare provide shim").WithCause(err).Build()
		}
		t.provide.apply(&opts, shim)
	}

	res := api.Build(opts)
	if len(res.Errors) > 0 {
		return nil, ferrors.ScriptError("script bundling failed").
			WithContext("diagnostics", esbuildopts.Messages(res.Errors)).
			WithCause(errors.New(esbuildopts.Messages(res.Errors))).Build()
	}
	for _, f := range res.OutputFiles {
		if strings.HasSuffix(f.Path, ".js") {
			return f.Contents, nil
		}
	}
	return nil, ferrors.ScriptError("bundler produced no javascript output").Build()
}

// nodePaths lets modules resolve from the source root's node_modules and the
// working directory's, including imports made by the provide shim.
func nodePaths(sourceRoot string) []string {
	paths := []string{filepath.Join(sourceRoot, "node_modules")}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "node_modules"))
	}
	return paths
}
