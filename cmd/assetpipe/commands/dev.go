package commands

import (
	"context"
	"errors"
	"log/slog"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// DevCmd implements the default 'dev' command.
type DevCmd struct {
	Port         int    `help:"Override server.port"`
	Host         string `help:"Override server.host"`
	NoLiveReload bool   `name:"no-live-reload" help:"Do not inject the live reload client"`
}

func (d *DevCmd) Run(ctx context.Context, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if err := d.apply(cfg); err != nil {
		return err
	}

	s, err := root.openSite(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	slog.Info("Starting dev session", "addr", cfg.Server.Addr(), "source", cfg.Paths.Source)
	err = pipeline.Run(ctx, s.Dev())
	if stoppedByUser(ctx, err) {
		slog.Info("Dev session stopped")
		return nil
	}
	return err
}

// stoppedByUser reports whether err only reflects the cancellation of ctx,
// e.g. an interrupt that arrived during the initial compile.
func stoppedByUser(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled)
}

func (d *DevCmd) apply(cfg *config.Config) error {
	if d.Port != 0 {
		cfg.Server.Port = d.Port
	}
	if d.Host != "" {
		cfg.Server.Host = d.Host
	}
	if d.NoLiveReload {
		off := false
		cfg.Server.LiveReload = &off
	}
	return config.ValidateConfig(cfg)
}
