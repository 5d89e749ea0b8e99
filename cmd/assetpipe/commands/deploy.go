package commands

import (
	"context"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// DeployCmd implements the 'deploy' command.
type DeployCmd struct {
	DryRun bool `name:"dry-run" help:"Show what rsync would transfer without changing the remote"`
}

func (d *DeployCmd) Run(ctx context.Context, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	cfg.Deploy.DryRun = d.DryRun

	s, err := root.openSite(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return pipeline.Run(ctx, s.Deploy())
}
