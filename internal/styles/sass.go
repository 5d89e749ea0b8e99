package styles

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bep/godartsass/v2"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// SassCompiler compiles .scss and .sass sources through a Dart Sass process
// speaking the embedded protocol. The process starts on first use and is reused
// until Close.
type SassCompiler struct {
	cfg          config.StylesConfig
	sourceRoot   string
	includePaths []string

	mu         sync.Mutex
	transpiler *godartsass.Transpiler
}

func NewSassCompiler(cfg config.StylesConfig, sourceRoot string) *SassCompiler {
	paths := make([]string, 0, len(cfg.IncludePaths))
	for _, p := range cfg.IncludePaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(sourceRoot, p)
		}
		paths = append(paths, p)
	}
	return &SassCompiler{cfg: cfg, sourceRoot: sourceRoot, includePaths: paths}
}

func (c *SassCompiler) start() (*godartsass.Transpiler, error) {
	if c.transpiler != nil {
		return c.transpiler, nil
	}
	t, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: c.cfg.SassBinary,
		Timeout:                  c.cfg.Timeout,
		LogEventHandler: func(e godartsass.LogEvent) {
			slog.Warn("Sass: "+e.Message, logfields.Task("styles"))
		},
	})
	if err != nil {
		return nil, ferrors.StyleError("failed to start Dart Sass").
			WithCause(err).WithContext("binary", c.cfg.SassBinary).Build()
	}
	c.transpiler = t
	return t, nil
}

func (c *SassCompiler) Compile(ctx context.Context, sources []Source) (Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.start()
	if err != nil {
		return Artifact{}, err
	}

	var out bytes.Buffer
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return Artifact{}, err
		}
		css, err := c.compileOne(t, src)
		if err != nil {
			return Artifact{}, err
		}
		out.WriteString(css)
		out.WriteByte('\n')
	}
	return Artifact{CSS: out.Bytes()}, nil
}

func (c *SassCompiler) compileOne(t *godartsass.Transpiler, src Source) (string, error) {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return "", ferrors.StyleError("failed to read stylesheet").
			WithCause(err).WithContext("file", src.Rel).Build()
	}
	dir := filepath.Dir(src.Path)
	syntax := syntaxFor(src.Path)
	source := string(data)
	if syntax != godartsass.SourceSyntaxCSS {
		expanded, err := ExpandGlobImports(source, dir)
		if err != nil {
			return "", ferrors.StyleError("failed to expand glob import").
				WithCause(err).WithContext("file", src.Rel).Build()
		}
		source = expanded
	}

	abs, err := filepath.Abs(src.Path)
	if err != nil {
		abs = src.Path
	}
	res, err := t.Execute(godartsass.Args{
		Source:       source,
		URL:          "file://" + filepath.ToSlash(abs),
		OutputStyle:  godartsass.OutputStyleExpanded,
		SourceSyntax: syntax,
		IncludePaths: append([]string{dir}, c.includePaths...),
	})
	if err != nil {
		return "", ferrors.StyleError("sass compilation failed").
			WithCause(err).WithContext("file", src.Rel).Build()
	}
	return res.CSS, nil
}

func syntaxFor(path string) godartsass.SourceSyntax {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sass":
		return godartsass.SourceSyntaxSASS
	case ".css":
		return godartsass.SourceSyntaxCSS
	default:
		return godartsass.SourceSyntaxSCSS
	}
}

// Close stops the Dart Sass process, if one was started.
func (c *SassCompiler) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transpiler == nil {
		return nil
	}
	err := c.transpiler.Close()
	c.transpiler = nil
	return err
}
