package devserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/livereload"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/testutil"
)

func siteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.Source = filepath.Join(t.TempDir(), "src")
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	testutil.WriteTree(t, cfg.Paths.Source, map[string]string{
		"index.html":           `<html><body><!--#include file="partials/nav.html" --></body></html>`,
		"partials/nav.html":    `<nav>menu</nav>`,
		"about/index.html":     `<html><body><!--#include virtual="/partials/missing.html" --></body></html>`,
		"css/app.min.css":      `body{color:red}`,
		"images/dist/logo.svg": `<svg xmlns="http://www.w3.org/2000/svg"/>`,
	})
	return cfg
}

func get(t *testing.T, h http.Handler, path string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	res := rec.Result()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(body)
}

func TestServesExpandedPagesWithReloadScript(t *testing.T) {
	s := New(siteConfig(t), Options{Hub: livereload.NewHub(nil)})

	res, body := get(t, s.Handler(), "/")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "<nav>menu</nav>")
	assert.Contains(t, body, `<script async src="/__livereload.js"></script></body>`)

	_, body = get(t, s.Handler(), "/about/")
	assert.Contains(t, body, "<!-- include error:")
	assert.Contains(t, body, ScriptPath)
}

func TestServesStaticFiles(t *testing.T) {
	s := New(siteConfig(t), Options{Hub: livereload.NewHub(nil)})

	res, body := get(t, s.Handler(), "/css/app.min.css")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "body{color:red}", body)
	assert.Equal(t, "no-cache", res.Header.Get("Cache-Control"))

	res, _ = get(t, s.Handler(), "/missing.js")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestLiveReloadDisabled(t *testing.T) {
	s := New(siteConfig(t), Options{})

	_, body := get(t, s.Handler(), "/")
	assert.NotContains(t, body, ScriptPath)

	res, _ := get(t, s.Handler(), ScriptPath)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	hub := livereload.NewHub(rec)
	hub.Notify(livereload.KindCSS)
	s := New(siteConfig(t), Options{Hub: hub, Registry: reg})

	res, body := get(t, s.Handler(), HealthPath)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok\n", body)

	res, body = get(t, s.Handler(), MetricsPath)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `assetpipe_livereload_broadcasts_total{kind="css"} 1`)

	res, _ = get(t, New(siteConfig(t), Options{}).Handler(), MetricsPath)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestPanicRecovery(t *testing.T) {
	h := chain(testLogger(), ferrors.NewHTTPErrorAdapter(testLogger()))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	res, body := get(t, h, "/x")
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Contains(t, body, "internal server error")
}

func TestRunStreamsReloadEventsAndShutsDown(t *testing.T) {
	hub := livereload.NewHub(nil)
	s := New(siteConfig(t), Options{Hub: hub})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 5*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + EventsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
	hub.Notify(livereload.KindReload)

	sc := bufio.NewScanner(resp.Body)
	var ev livereload.Event
	for sc.Scan() {
		line := sc.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			require.NoError(t, json.Unmarshal([]byte(data), &ev))
			break
		}
	}
	assert.Equal(t, livereload.KindReload, ev.Kind)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunListenFailure(t *testing.T) {
	cfg := siteConfig(t)
	cfg.Server.Host = "256.0.0.1"
	err := New(cfg, Options{}).Run(context.Background())
	require.Error(t, err)
}
