package ssi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/testutil"
)

func TestExpandDirectives(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"index.html":         `<!--#set var="title" value="Home & Away" --><html><!--#include virtual="/partials/head.html" --><body><!--#include file="partials/nav.html" --></body></html>`,
		"partials/head.html": `<title><!--#echo var="title" --></title>`,
		"partials/nav.html":  `<nav><!--#include file="item.html" --></nav>`,
		"partials/item.html": `<a href="<!--#echo var="DOCUMENT_URI" -->"><!--#echo var="DOCUMENT_NAME" --></a>`,
		"docs/page.html":     `<!--#include virtual="../partials/item.html" --><!--#echo var="missing" --><!--#config timefmt="%Y" -->`,
	})
	e := NewExpander(root)

	out, err := e.ExpandFile("index.html")
	require.NoError(t, err)
	assert.Equal(t,
		`<html><title>Home &amp; Away</title><body><nav><a href="/index.html">index.html</a></nav></body></html>`,
		string(out))

	out, err = e.ExpandFile("docs/page.html")
	require.NoError(t, err)
	assert.Equal(t, `<a href="/docs/page.html">page.html</a>(none)<!--#config timefmt="%Y" -->`, string(out))
}

func TestExpandFailures(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"missing.html": `<!--#include file="nope.html" -->`,
		"cycle.html":   `<!--#include file="a.html" -->`,
		"a.html":       `<!--#include file="b.html" -->`,
		"b.html":       `<!--#include file="a.html" -->`,
		"escape.html":  `<!--#include virtual="../../etc/passwd" -->`,
		"self.html":    `<!--#include file="self.html" -->`,
	})
	e := NewExpander(root)

	for _, name := range []string{"missing.html", "cycle.html", "escape.html", "self.html"} {
		t.Run(name, func(t *testing.T) {
			_, err := e.ExpandFile(name)
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryInclude), "got %v", err)
		})
	}

	_, err := e.ExpandFile("cycle.html")
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, "include cycle", ce.Message())
}

func TestExpandDepthLimit(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for i := 0; i < MaxDepth+2; i++ {
		files[filepath.ToSlash(filepath.Join("chain", strings.Repeat("x", i+1)+".html"))] =
			`<!--#include file="` + strings.Repeat("x", i+2) + `.html" -->`
	}
	testutil.WriteTree(t, root, files)

	_, err := NewExpander(root).ExpandFile("chain/x.html")
	require.Error(t, err)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Contains(t, ce.Message(), "depth")
}

func TestLenientRendersErrorsInline(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"index.html": `<p>before</p><!--#include file="gone.html" --><p>after</p>`,
	})
	out, err := NewExpander(root, Lenient()).ExpandFile("index.html")
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "<p>before</p><!-- include error:")
	assert.Contains(t, s, "include not found")
	assert.True(t, strings.HasSuffix(s, "<p>after</p>"))
}

func TestTaskCompilesAndRemovesPartials(t *testing.T) {
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.Source = filepath.Join(dir, "src")
	cfg.Paths.Output = filepath.Join(dir, "dist")
	testutil.WriteTree(t, cfg.Paths.Source, map[string]string{
		"index.html":                   `<body><!--#include file="partials/header.html" --></body>`,
		"about/index.html":             `<!--#include virtual="/partials/header.html" -->`,
		"partials/header.html":         `<h1>X</h1>`,
		"node_modules/pkg/readme.html": `<!--#include file="nope.html" -->`,
		"css/app.min.css":              `a{}`,
	})

	task, err := NewTask(cfg)
	require.NoError(t, err)
	assert.Equal(t, "includes", task.Name())
	require.NoError(t, task.Run(context.Background()))

	fa := testutil.NewFileAssertions(t, cfg.Paths.Output)
	fa.AssertFileContains("index.html", "<body><h1>X</h1></body>").
		AssertFileContains("about/index.html", "<h1>X</h1>").
		AssertFileNotExists("partials/header.html").
		AssertFileNotExists("node_modules/pkg/readme.html").
		AssertFileNotExists("css/app.min.css")
	_, err = os.Stat(filepath.Join(cfg.Paths.Output, "partials"))
	assert.True(t, os.IsNotExist(err))
}

func TestTaskMissingIncludeAborts(t *testing.T) {
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.Source = filepath.Join(dir, "src")
	cfg.Paths.Output = filepath.Join(dir, "dist")
	testutil.WriteTree(t, cfg.Paths.Source, map[string]string{
		"index.html": `<!--#include file="partials/missing.html" -->`,
	})

	task, err := NewTask(cfg)
	require.NoError(t, err)
	err = task.Run(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryInclude))
	assert.True(t, ferrors.HasSeverity(err, ferrors.SeverityFatal))
}

func TestHandler(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"index.html":      `<main><!--#include file="partials/x.html" --></main>`,
		"broken.html":     `<main><!--#include file="partials/nope.html" --></main>`,
		"partials/x.html": `included`,
		"style.css":       `body{}`,
	})
	var fallthroughs []string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallthroughs = append(fallthroughs, r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
	})
	h := Handler(NewExpander(root, Lenient()), next)

	get := func(p string) *http.Response {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		return rec.Result()
	}

	res := get("/")
	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", res.Header.Get("Content-Type"))
	assert.Equal(t, "<main>included</main>", string(body))

	res = get("/broken.html")
	body, _ = io.ReadAll(res.Body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "<!-- include error:")

	assert.Equal(t, http.StatusTeapot, get("/style.css").StatusCode)
	assert.Equal(t, http.StatusTeapot, get("/absent.html").StatusCode)
	assert.Equal(t, []string{"/style.css", "/absent.html"}, fallthroughs)
}
