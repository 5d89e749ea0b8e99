package styles

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetpipe/internal/esbuildopts"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// assetExternals keeps url() references to binary assets untouched.
var assetExternals = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg", "*.webp", "*.avif",
	"*.woff", "*.woff2", "*.ttf", "*.eot", "*.otf",
}

// CSSCompiler bundles plain CSS, inlining local @import rules with esbuild.
type CSSCompiler struct {
	sourceRoot string
}

func NewCSSCompiler(sourceRoot string) *CSSCompiler {
	return &CSSCompiler{sourceRoot: sourceRoot}
}

func (c *CSSCompiler) Compile(ctx context.Context, sources []Source) (Artifact, error) {
	var out bytes.Buffer
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return Artifact{}, err
		}
		abs, err := filepath.Abs(src.Path)
		if err != nil {
			return Artifact{}, ferrors.StyleError("failed to resolve stylesheet").
				WithCause(err).WithContext("file", src.Rel).Build()
		}
		res := api.Build(api.BuildOptions{
			EntryPoints: []string{abs},
			Bundle:      true,
			Write:       false,
			Outfile:     filepath.Join(filepath.Dir(abs), "__bundle__.css"),
			External:    assetExternals,
			Loader:      map[string]api.Loader{".css": api.LoaderCSS},
			LogLevel:    api.LogLevelSilent,
		})
		if len(res.Errors) > 0 {
			return Artifact{}, ferrors.StyleError("css bundling failed").
				WithContext("file", src.Rel).
				WithContext("diagnostics", esbuildopts.Messages(res.Errors)).
				WithCause(errorsFromMessages(res.Errors)).Build()
		}
		for _, f := range res.OutputFiles {
			if filepath.Ext(f.Path) == ".css" {
				out.Write(f.Contents)
				out.WriteByte('\n')
			}
		}
	}
	return Artifact{CSS: out.Bytes()}, nil
}

func (c *CSSCompiler) Close() error { return nil }
