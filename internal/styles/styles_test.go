package styles

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/livereload"
	"git.home.luguber.info/inful/assetpipe/internal/testutil"
)

func newTestTask(t *testing.T, pre config.Preprocessor, files map[string]string) (*Task, *config.Config, *atomic.Int32) {
	t.Helper()
	cfg := config.Default()
	cfg.Preprocessor = pre
	cfg.Paths.Source = filepath.Join(t.TempDir(), "src")
	testutil.WriteTree(t, cfg.Paths.Source, files)

	compiler, err := NewCompiler(pre, cfg.Styles, cfg.Paths.Source)
	require.NoError(t, err)
	t.Cleanup(func() { _ = compiler.Close() })

	var notified atomic.Int32
	task, err := NewTask(cfg, compiler, livereload.NotifierFunc(func(k livereload.Kind) {
		assert.Equal(t, livereload.KindCSS, k)
		notified.Add(1)
	}))
	require.NoError(t, err)
	return task, cfg, &notified
}

func TestCSSTaskBundlesAndMinifies(t *testing.T) {
	task, cfg, notified := newTestTask(t, config.PreprocessorCSS, map[string]string{
		"styles/css/app.css":   "@import \"./_base.css\";\n/* section */\n.app {\n  color: red;\n}\n",
		"styles/css/_base.css": "/*! legal */\nbody {\n  margin: 0;\n}\n",
		"styles/css/b.css":     ".b { display: flex; }\n",
	})

	require.NoError(t, task.Run(context.Background()))

	fa := testutil.NewFileAssertions(t, cfg.Paths.Source)
	fa.AssertFileContains("css/app.min.css", "body{margin:0}").
		AssertFileContains("css/app.min.css", ".app{color:red}").
		AssertFileContains("css/app.min.css", ".b{display:flex}").
		AssertFileNotContains("css/app.min.css", "section").
		AssertFileNotContains("css/app.min.css", "legal")
	assert.Equal(t, int32(1), notified.Load())

	data, err := os.ReadFile(filepath.Join(cfg.Paths.Source, "css", "app.min.css"))
	require.NoError(t, err)
	assert.Less(t, bytes.Index(data, []byte(".app{")), bytes.Index(data, []byte(".b{")), "sources concatenate in sorted order")
}

func TestStylesVendorPrefixesFollowTargets(t *testing.T) {
	const source = ".a { user-select: none; backdrop-filter: blur(2px); }\n"

	task, cfg, _ := newTestTask(t, config.PreprocessorCSS, map[string]string{"styles/css/app.css": source})
	require.NoError(t, task.Run(context.Background()))
	testutil.NewFileAssertions(t, cfg.Paths.Source).
		AssertFileContains("css/app.min.css", "-webkit-user-select:none").
		AssertFileContains("css/app.min.css", "-webkit-backdrop-filter:blur(2px)").
		AssertFileContains("css/app.min.css", "backdrop-filter:blur(2px)")

	modern, err := newMinifier([]string{"chrome120"})
	require.NoError(t, err)
	out, err := modern.Minify([]byte(source))
	require.NoError(t, err)
	assert.NotContains(t, string(out), "-webkit-", "engines without prefix needs get none")
	assert.Contains(t, string(out), "user-select:none")
}

func TestStylesRunIsIdempotent(t *testing.T) {
	task, cfg, notified := newTestTask(t, config.PreprocessorCSS, map[string]string{
		"styles/css/app.css": ".a { color: blue }\n",
	})

	require.NoError(t, task.Run(context.Background()))
	first, err := os.ReadFile(filepath.Join(cfg.Paths.Source, "css", "app.min.css"))
	require.NoError(t, err)
	mtime := testutil.Backdate(t, cfg.Paths.Source, "css/app.min.css")

	require.NoError(t, task.Run(context.Background()))
	second, err := os.ReadFile(filepath.Join(cfg.Paths.Source, "css", "app.min.css"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	testutil.NewFileAssertions(t, cfg.Paths.Source).AssertModTime("css/app.min.css", mtime)
	assert.Equal(t, int32(1), notified.Load(), "unchanged output must not trigger a reload")
}

func TestStylesFailureKeepsPreviousOutput(t *testing.T) {
	task, cfg, _ := newTestTask(t, config.PreprocessorCSS, map[string]string{
		"styles/css/app.css": ".a { color: blue }\n",
	})
	require.NoError(t, task.Run(context.Background()))
	before, err := os.ReadFile(filepath.Join(cfg.Paths.Source, "css", "app.min.css"))
	require.NoError(t, err)

	testutil.WriteTree(t, cfg.Paths.Source, map[string]string{
		"styles/css/app.css": "@import \"./does-not-exist.css\";\n.a { color: green }\n",
	})
	err = task.Run(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryStyle))

	after, err := os.ReadFile(filepath.Join(cfg.Paths.Source, "css", "app.min.css"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStylesWithoutSourcesIsNoop(t *testing.T) {
	task, cfg, notified := newTestTask(t, config.PreprocessorCSS, map[string]string{
		"styles/css/_only-partial.css": ".p{}",
	})
	require.NoError(t, task.Run(context.Background()))
	testutil.NewFileAssertions(t, cfg.Paths.Source).AssertFileNotExists("css/app.min.css")
	assert.Zero(t, notified.Load())
}

func TestNewCompilerRejectsUnknownPreprocessor(t *testing.T) {
	_, err := NewCompiler("stylus", config.StylesConfig{}, "src")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestSassTaskMergesPartials(t *testing.T) {
	if _, err := exec.LookPath("sass"); err != nil {
		t.Skip("Dart Sass binary not available")
	}
	task, cfg, _ := newTestTask(t, config.PreprocessorSass, map[string]string{
		"styles/sass/app.scss":            "@import \"vars\";\n@import \"components/**/*.scss\";\n.app { color: $brand; }\n",
		"styles/sass/_vars.scss":          "$brand: #ff0000;\nhtml { font-size: 16px; }\n",
		"styles/sass/components/btn.scss": ".btn { padding: 1px; }\n",
	})

	require.NoError(t, task.Run(context.Background()))
	testutil.NewFileAssertions(t, cfg.Paths.Source).
		AssertFileContains("css/app.min.css", "html{font-size:16px}").
		AssertFileContains("css/app.min.css", ".btn{padding:1px}").
		AssertFileContains("css/app.min.css", ".app{color:")
}
