package styles

import (
	"errors"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetpipe/internal/esbuildopts"
)

// minifier prefixes and minifies compiled CSS for the configured engines.
type minifier struct {
	engines []api.Engine
}

func newMinifier(targets []string) (*minifier, error) {
	_, engines, err := esbuildopts.Targets(targets)
	if err != nil {
		return nil, err
	}
	return &minifier{engines: engines}, nil
}

func (m *minifier) Minify(css []byte) ([]byte, error) {
	res := api.Transform(string(css), api.TransformOptions{
		Loader:           api.LoaderCSS,
		Engines:          m.engines,
		MinifyWhitespace: true,
		MinifySyntax:     true,
		LegalComments:    api.LegalCommentsNone,
		Sourcefile:       "app.css",
		LogLevel:         api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return nil, errorsFromMessages(res.Errors)
	}
	return res.Code, nil
}

func errorsFromMessages(msgs []api.Message) error {
	return errors.New(esbuildopts.Messages(msgs))
}
