package styles

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Source is one stylesheet entry point.
type Source struct {
	Path string // absolute or root-joined filesystem path
	Rel  string // slash-separated, relative to the source root
}

// Artifact is the unminified result of compiling every source.
type Artifact struct {
	CSS []byte
}

// Compiler turns stylesheet sources into one CSS artifact. Sources arrive sorted
// and the artifact concatenates their output in that order.
type Compiler interface {
	Compile(ctx context.Context, sources []Source) (Artifact, error)
	Close() error
}

// Factory builds the compiler for one preprocessor.
type Factory func(cfg config.StylesConfig, sourceRoot string) Compiler

var factories = map[config.Preprocessor]Factory{
	config.PreprocessorSass: func(cfg config.StylesConfig, sourceRoot string) Compiler {
		return NewSassCompiler(cfg, sourceRoot)
	},
	config.PreprocessorCSS: func(_ config.StylesConfig, sourceRoot string) Compiler {
		return NewCSSCompiler(sourceRoot)
	},
}

// NewCompiler resolves the compiler registered for p.
func NewCompiler(p config.Preprocessor, cfg config.StylesConfig, sourceRoot string) (Compiler, error) {
	f, ok := factories[p]
	if !ok {
		return nil, ferrors.ConfigError(fmt.Sprintf("no style compiler for preprocessor %q", p)).Build()
	}
	return f(cfg, sourceRoot), nil
}
