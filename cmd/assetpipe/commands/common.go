package commands

import (
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/site"
)

// CLI is the root command model.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (optional)" default:"assetpipe.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Dev     DevCmd     `cmd:"" default:"1" help:"Compile assets, then serve the source tree with live reload and watch for changes"`
	Build   BuildCmd   `cmd:"" help:"Clean the output directory and build a deployable site"`
	Scripts ScriptsCmd `cmd:"" help:"Bundle and minify scripts"`
	Styles  StylesCmd  `cmd:"" help:"Compile and minify stylesheets"`
	Images  ImagesCmd  `cmd:"" help:"Optimize changed images"`
	Assets  AssetsCmd  `cmd:"" help:"Run scripts, styles and images concurrently"`
	Deploy  DeployCmd  `cmd:"" help:"Mirror the output directory to the remote host with rsync"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
	Tasks   TasksCmd   `cmd:"" help:"Print the task tree"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(c.Verbose, os.Getenv("ASSETPIPE_LOG_LEVEL")),
	}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel prefers -v, then ASSETPIPE_LOG_LEVEL, then info.
func parseLogLevel(verbose bool, env string) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	var level slog.Level
	if env != "" && level.UnmarshalText([]byte(strings.TrimSpace(env))) == nil {
		return level
	}
	return slog.LevelInfo
}

func (c *CLI) loadConfig() (*config.Config, error) {
	return config.Load(c.Config)
}

func (c *CLI) openSite(cfg *config.Config, opts ...site.Option) (*site.Site, error) {
	if cfg == nil {
		var err error
		if cfg, err = c.loadConfig(); err != nil {
			return nil, err
		}
	}
	return site.New(cfg, opts...)
}
