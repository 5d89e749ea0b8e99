package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// ValidateConfig checks a defaulted configuration. Deploy settings are checked
// separately by ValidateDeploy because only the deploy command needs them.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateCore(); err != nil {
		return err
	}
	if err := cv.validatePaths(); err != nil {
		return err
	}
	if err := cv.validateServer(); err != nil {
		return err
	}
	return cv.validateImages()
}

func (cv *configurationValidator) validateCore() error {
	if !slices.Contains(Preprocessors(), cv.config.Preprocessor) {
		return ferrors.ConfigError(fmt.Sprintf("unknown preprocessor %q", cv.config.Preprocessor)).Build()
	}
	for _, ext := range cv.config.WatchExtensions {
		if strings.ContainsAny(ext, "/*{},") {
			return ferrors.ValidationError(fmt.Sprintf("invalid watch extension %q", ext)).Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validatePaths() error {
	src := filepath.Clean(cv.config.Paths.Source)
	out := filepath.Clean(cv.config.Paths.Output)
	if src == out {
		return ferrors.ValidationError("paths.source and paths.output must differ").
			WithContext("path", src).Build()
	}
	for _, rel := range []string{cv.config.Styles.Output, cv.config.Scripts.Output, cv.config.Images.Output, cv.config.Images.Source} {
		if filepath.IsAbs(rel) || strings.HasPrefix(filepath.Clean(rel), "..") {
			return ferrors.ValidationError("asset paths must be relative to the source root").
				WithContext("path", rel).Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateServer() error {
	if p := cv.config.Server.Port; p < 0 || p > 65535 {
		return ferrors.ValidationError(fmt.Sprintf("invalid server port %d", p)).Build()
	}
	return nil
}

func (cv *configurationValidator) validateImages() error {
	q := cv.config.Images.JPEGQuality
	if q < 1 || q > 100 {
		return ferrors.ValidationError(fmt.Sprintf("images.jpeg_quality must be within 1..100, got %d", q)).Build()
	}
	return nil
}

// ValidateDeploy reports a configuration error when the remote target is incomplete.
func ValidateDeploy(d DeployConfig) error {
	if strings.TrimSpace(d.Hostname) == "" {
		return ferrors.ConfigError("deploy.hostname is required").Build()
	}
	if strings.TrimSpace(d.Destination) == "" {
		return ferrors.ConfigError("deploy.destination is required").Build()
	}
	return nil
}
