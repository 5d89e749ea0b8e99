// Package devserver serves the source tree during development with server-side
// includes expanded and the live-reload client injected into every page.
package devserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/livereload"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/ssi"
)

const (
	EventsPath  = "/__livereload"
	ScriptPath  = "/__livereload.js"
	HealthPath  = "/healthz"
	MetricsPath = "/metrics"

	shutdownTimeout = 5 * time.Second
)

// Options carries optional collaborators. A nil Hub disables live reload and
// a nil Registry disables /metrics.
type Options struct {
	Hub      *livereload.Hub
	Registry *prom.Registry
}

// Server is the development HTTP server.
type Server struct {
	addr    string
	hub     *livereload.Hub
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
}

// New builds the server for cfg.
func New(cfg *config.Config, opts Options) *Server {
	s := &Server{addr: cfg.Server.Addr(), hub: opts.Hub}

	files := http.FileServer(http.Dir(cfg.Paths.Source))
	var site http.Handler = ssi.Handler(ssi.NewExpander(cfg.Paths.Source, ssi.Lenient()), noCache(files))
	if s.hub != nil {
		site = livereload.Inject(site, ScriptPath)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.hub != nil {
		mux.Handle(EventsPath, s.hub)
		mux.Handle(ScriptPath, livereload.ScriptHandler(EventsPath))
	}
	if opts.Registry != nil {
		mux.Handle(MetricsPath, metrics.HTTPHandler(opts.Registry))
	}
	mux.Handle("/", site)

	s.handler = chain(slog.Default(), ferrors.NewHTTPErrorAdapter(slog.Default()))(mux)
	return s
}

func (s *Server) Name() string { return "serve" }

// Handler returns the complete middleware chain.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr returns the bound address once the server is listening, otherwise "".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return ferrors.ServerError("failed to listen").WithCause(err).WithContext("addr", s.addr).Build()
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	slog.Info("Dev server listening", logfields.Addr("http://"+ln.Addr().String()), "live_reload", s.hub != nil)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return ferrors.ServerError("dev server failed").WithCause(err).Build()
	case <-ctx.Done():
	}

	// Event streams never finish on their own; end them before draining.
	if s.hub != nil {
		s.hub.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Dev server shutdown incomplete", logfields.Error(err))
		_ = srv.Close()
	}
	slog.Info("Dev server stopped")
	return nil
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}
