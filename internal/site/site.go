// Package site assembles the tasks of one project into its named pipelines.
package site

import (
	"context"
	"errors"
	"slices"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/deploy"
	"git.home.luguber.info/inful/assetpipe/internal/devserver"
	"git.home.luguber.info/inful/assetpipe/internal/fileset"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/images"
	"git.home.luguber.info/inful/assetpipe/internal/livereload"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/output"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/scripts"
	"git.home.luguber.info/inful/assetpipe/internal/ssi"
	"git.home.luguber.info/inful/assetpipe/internal/styles"
	"git.home.luguber.info/inful/assetpipe/internal/watch"
)

// Site owns every task of a project and the pipelines composed from them.
type Site struct {
	cfg *config.Config

	recorder metrics.Recorder
	registry *prom.Registry
	hub      *livereload.Hub
	compiler styles.Compiler
	backend  watch.Backend
	runner   deploy.Runner

	cacheOnce sync.Once
	cache     images.Cache
	cacheErr  error

	server *devserver.Server

	scripts  pipeline.Task
	styles   pipeline.Task
	images   pipeline.Task
	clean    pipeline.Task
	collect  pipeline.Task
	includes pipeline.Task
	deploy   pipeline.Task
	watcher  *watch.Watcher

	build  pipeline.Task
	dev    pipeline.Task
	assets pipeline.Task
}

// New resolves every collaborator for cfg and composes the pipelines.
func New(cfg *config.Config, opts ...Option) (*Site, error) {
	s := &Site{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.recorder == nil {
		if s.registry == nil && cfg.Server.MetricsEnabled() {
			s.registry = metrics.NewRegistry()
		}
		if s.registry != nil {
			s.recorder = metrics.NewPrometheusRecorder(s.registry)
		}
	}
	s.recorder = metrics.OrNoop(s.recorder)

	if s.hub == nil && cfg.Server.LiveReloadEnabled() {
		s.hub = livereload.NewHub(s.recorder)
	}
	var notifier livereload.Notifier = livereload.Discard
	if s.hub != nil {
		notifier = s.hub
	}

	if s.compiler == nil {
		c, err := styles.NewCompiler(cfg.Preprocessor, cfg.Styles, cfg.Paths.Source)
		if err != nil {
			return nil, err
		}
		s.compiler = c
	}
	if s.backend == nil {
		b, err := watch.NewBackend(cfg.Watch)
		if err != nil {
			return nil, ferrors.ConfigError("invalid watch.backend").WithCause(err).Build()
		}
		s.backend = b
	}

	scriptsTask, err := scripts.NewTask(cfg, notifier)
	if err != nil {
		return nil, err
	}
	stylesTask, err := styles.NewTask(cfg, s.compiler, notifier)
	if err != nil {
		return nil, err
	}
	collectTask, err := output.NewCollectTask(cfg)
	if err != nil {
		return nil, err
	}
	includesTask, err := ssi.NewTask(cfg)
	if err != nil {
		return nil, err
	}

	s.scripts = pipeline.Recover(s.observe(scriptsTask))
	s.styles = s.observe(stylesTask)
	s.images = s.observe(images.NewTask(cfg, s.imageCache, notifier, s.recorder))
	s.clean = s.observe(output.NewCleanTask(cfg))
	s.collect = s.observe(collectTask)
	s.includes = s.observe(includesTask)
	s.deploy = s.observe(deploy.NewTask(cfg, s.runner))

	s.watcher, err = s.newWatcher(notifier)
	if err != nil {
		return nil, err
	}
	s.server = devserver.New(cfg, devserver.Options{Hub: s.hub, Registry: s.registry})

	s.assets = pipeline.Parallel("assets", s.scripts, s.styles, s.images)
	s.build = pipeline.Sequential("build",
		s.clean, s.images, s.scripts, s.styles, s.collect, s.includes)
	s.dev = pipeline.Sequential("dev",
		s.scripts, s.styles, s.images,
		pipeline.Supervise("session", s.server, s.watcher))
	return s, nil
}

func (s *Site) observe(t pipeline.Task) pipeline.Task {
	return pipeline.Observe(t, s.recorder)
}

func (s *Site) newWatcher(notifier livereload.Notifier) (*watch.Watcher, error) {
	reloadPatterns := make([]string, 0, len(s.cfg.WatchExtensions))
	for _, ext := range s.cfg.WatchExtensions {
		reloadPatterns = append(reloadPatterns, "**/*."+ext)
	}
	specs := []struct {
		name     string
		patterns []string
		task     pipeline.Task
	}{
		{"styles", []string{s.cfg.StylesDir() + "/**/*"}, s.styles},
		{"scripts", []string{"js/**/*.js", "!js/**/*.min.js"}, s.scripts},
		{"images", images.Patterns(s.cfg.Images.Source), s.images},
		{"reload", reloadPatterns, pipeline.NewTask("reload", func(context.Context) error {
			notifier.Notify(livereload.KindReload)
			return nil
		})},
	}

	bindings := make([]watch.Binding, 0, len(specs))
	for _, sp := range specs {
		if len(sp.patterns) == 0 {
			continue
		}
		set, err := fileset.New(sp.patterns...)
		if err != nil {
			return nil, ferrors.ConfigError("invalid watch patterns").
				WithCause(err).WithContext("binding", sp.name).Build()
		}
		bindings = append(bindings, watch.Binding{Name: sp.name, Files: set, Task: sp.task})
	}
	return watch.New(s.cfg.Paths.Source, s.backend, s.cfg.Watch.Debounce, s.recorder, bindings...), nil
}

// imageCache opens the configured cache on first use.
func (s *Site) imageCache() (images.Cache, error) {
	s.cacheOnce.Do(func() {
		if s.cache != nil {
			return
		}
		c, err := images.OpenSQLiteCache(s.cfg.Images.Cache)
		if err != nil {
			s.cacheErr = ferrors.ImageError("failed to open image cache").
				WithCause(err).WithContext("path", s.cfg.Images.Cache).Build()
			return
		}
		s.cache = c
	})
	return s.cache, s.cacheErr
}

// Build cleans the output tree and produces a deployable copy of the site.
func (s *Site) Build() pipeline.Task { return s.build }

// Dev compiles assets once, then serves and watches until canceled.
func (s *Site) Dev() pipeline.Task { return s.dev }

// Assets runs scripts, styles and images concurrently.
func (s *Site) Assets() pipeline.Task { return s.assets }

func (s *Site) Deploy() pipeline.Task   { return s.deploy }
func (s *Site) Scripts() pipeline.Task  { return s.scripts }
func (s *Site) Styles() pipeline.Task   { return s.styles }
func (s *Site) Images() pipeline.Task   { return s.images }
func (s *Site) Clean() pipeline.Task    { return s.clean }
func (s *Site) Collect() pipeline.Task  { return s.collect }
func (s *Site) Includes() pipeline.Task { return s.includes }

// Server returns the dev server used by Dev.
func (s *Site) Server() *devserver.Server { return s.server }

// Watcher returns the watcher used by Dev.
func (s *Site) Watcher() *watch.Watcher { return s.watcher }

// Hub returns the live-reload hub, or nil when live reload is disabled.
func (s *Site) Hub() *livereload.Hub { return s.hub }

func (s *Site) named() map[string]pipeline.Task {
	return map[string]pipeline.Task{
		"build":    s.build,
		"dev":      s.dev,
		"assets":   s.assets,
		"deploy":   s.deploy,
		"scripts":  s.scripts,
		"styles":   s.styles,
		"images":   s.images,
		"clean":    s.clean,
		"collect":  s.collect,
		"includes": s.includes,
	}
}

// TaskNames lists the names Task accepts, sorted.
func (s *Site) TaskNames() []string {
	names := make([]string, 0, 10)
	for name := range s.named() {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Task looks up a pipeline or leaf task by name.
func (s *Site) Task(name string) (pipeline.Task, error) {
	if t, ok := s.named()[name]; ok {
		return t, nil
	}
	return nil, ferrors.NewError(ferrors.CategoryNotFound, "unknown task").
		WithContext("task", name).
		WithContext("available", s.TaskNames()).
		Build()
}

// Close releases the style compiler, the image cache and live-reload clients.
func (s *Site) Close() error {
	var errs []error
	if s.hub != nil {
		s.hub.Shutdown()
	}
	if s.compiler != nil {
		errs = append(errs, s.compiler.Close())
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	return errors.Join(errs...)
}
