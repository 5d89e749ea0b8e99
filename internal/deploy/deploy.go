// Package deploy mirrors the output tree to a remote host with rsync.
package deploy

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Task runs the deployer against the configured output root.
type Task struct {
	cfg    config.DeployConfig
	root   string
	runner Runner
}

// NewTask creates the deploy task. A nil runner selects ExecRunner.
func NewTask(cfg *config.Config, runner Runner) *Task {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Task{cfg: cfg.Deploy, root: cfg.Paths.Output, runner: runner}
}

func (t *Task) Name() string { return "deploy" }

func (t *Task) Run(ctx context.Context) error {
	if err := config.ValidateDeploy(t.cfg); err != nil {
		return err
	}
	args, err := Args(t.cfg, t.root)
	if err != nil {
		return err
	}
	target := t.cfg.Hostname + ":" + t.cfg.Destination
	slog.Info("Deploying", logfields.Task(t.Name()), logfields.Path(t.root), "target", target, "dry_run", t.cfg.DryRun)

	if err := t.runner.Run(ctx, t.cfg.Binary, args); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := ferrors.DeployError("deploy command failed").WithCause(err).
			WithContext("binary", t.cfg.Binary).WithContext("target", target)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			b = b.WithContext("exit_code", exitErr.ExitCode())
		}
		return b.Build()
	}
	slog.Info("Deploy finished", logfields.Task(t.Name()), "target", target)
	return nil
}

// Args builds the rsync argument list for mirroring root to the configured target.
func Args(cfg config.DeployConfig, root string) ([]string, error) {
	args := []string{"-a", "-r", "-z", "--delete"}
	if !cfg.Silent {
		args = append(args, "-v")
	}
	if cfg.DryRun {
		args = append(args, "--dry-run")
	}
	if cfg.Shell != "" {
		args = append(args, "-e", cfg.Shell)
	}
	// rsync applies the first matching rule, so includes go before excludes.
	for _, p := range cfg.Include {
		args = append(args, "--include="+p)
	}
	for _, p := range cfg.Exclude {
		args = append(args, "--exclude="+p)
	}
	if strings.TrimSpace(cfg.ExtraArgs) != "" {
		extra, err := shellwords.Parse(cfg.ExtraArgs)
		if err != nil {
			return nil, ferrors.ConfigError("invalid deploy.extra_args").WithCause(err).Build()
		}
		args = append(args, extra...)
	}

	src := filepath.ToSlash(filepath.Clean(root))
	if !strings.HasSuffix(src, "/") {
		src += "/"
	}
	return append(args, src, cfg.Hostname+":"+cfg.Destination), nil
}
