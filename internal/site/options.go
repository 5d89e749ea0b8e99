package site

import (
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetpipe/internal/deploy"
	"git.home.luguber.info/inful/assetpipe/internal/images"
	"git.home.luguber.info/inful/assetpipe/internal/livereload"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/styles"
	"git.home.luguber.info/inful/assetpipe/internal/watch"
)

// Option overrides a collaborator New would otherwise build from the config.
type Option func(*Site)

// WithRecorder records task metrics with r instead of a Prometheus registry.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Site) { s.recorder = r }
}

// WithRegistry records metrics in reg and serves it on the dev server.
func WithRegistry(reg *prom.Registry) Option {
	return func(s *Site) { s.registry = reg }
}

// WithLiveReload broadcasts changes through hub.
func WithLiveReload(hub *livereload.Hub) Option {
	return func(s *Site) { s.hub = hub }
}

// WithStyleCompiler replaces the compiler selected by the preprocessor.
func WithStyleCompiler(c styles.Compiler) Option {
	return func(s *Site) { s.compiler = c }
}

// WithWatchBackend replaces the configured watch backend.
func WithWatchBackend(b watch.Backend) Option {
	return func(s *Site) { s.backend = b }
}

// WithDeployRunner replaces the rsync process runner.
func WithDeployRunner(r deploy.Runner) Option {
	return func(s *Site) { s.runner = r }
}

// WithImageCache uses c instead of opening the configured SQLite file.
func WithImageCache(c images.Cache) Option {
	return func(s *Site) { s.cache = c }
}
