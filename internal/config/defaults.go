package config

import (
	"fmt"
	"time"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// CompositeDefaultApplier applies defaults across all configuration domains.
type CompositeDefaultApplier struct {
	appliers []DefaultApplier
}

// NewDefaultApplier creates a composite default applier with all domain appliers.
func NewDefaultApplier() *CompositeDefaultApplier {
	return &CompositeDefaultApplier{
		appliers: []DefaultApplier{
			&CoreDefaultApplier{},
			&StylesDefaultApplier{},
			&ScriptsDefaultApplier{},
			&ImagesDefaultApplier{},
			&OutputDefaultApplier{},
			&ServerDefaultApplier{},
			&WatchDefaultApplier{},
			&DeployDefaultApplier{},
		},
	}
}

// ApplyDefaults applies defaults for all configuration domains.
func (c *CompositeDefaultApplier) ApplyDefaults(cfg *Config) error {
	for _, applier := range c.appliers {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("applying defaults for %s: %w", applier.Domain(), err)
		}
	}
	return nil
}

// GetApplierByDomain returns a specific domain applier (useful for testing).
func (c *CompositeDefaultApplier) GetApplierByDomain(domain string) DefaultApplier {
	for _, applier := range c.appliers {
		if applier.Domain() == domain {
			return applier
		}
	}
	return nil
}

// CoreDefaultApplier handles the top-level knobs and tree roots.
type CoreDefaultApplier struct{}

func (CoreDefaultApplier) Domain() string { return "core" }

func (CoreDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Preprocessor == "" {
		cfg.Preprocessor = PreprocessorSass
	}
	if len(cfg.WatchExtensions) == 0 {
		cfg.WatchExtensions = []string{"html", "htm", "txt", "json", "md", "woff", "woff2"}
	}
	if cfg.Paths.Source == "" {
		cfg.Paths.Source = "src"
	}
	if cfg.Paths.Output == "" {
		cfg.Paths.Output = "dist"
	}
	return nil
}

// StylesDefaultApplier handles styles defaults.
type StylesDefaultApplier struct{}

func (StylesDefaultApplier) Domain() string { return "styles" }

func (StylesDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Styles.Output == "" {
		cfg.Styles.Output = "css/app.min.css"
	}
	if cfg.Styles.SassBinary == "" {
		cfg.Styles.SassBinary = "sass"
	}
	if len(cfg.Styles.Targets) == 0 {
		cfg.Styles.Targets = []string{"chrome80", "firefox78", "safari13", "edge88"}
	}
	if cfg.Styles.Timeout <= 0 {
		cfg.Styles.Timeout = 30 * time.Second
	}
	return nil
}

// ScriptsDefaultApplier handles scripts defaults.
type ScriptsDefaultApplier struct{}

func (ScriptsDefaultApplier) Domain() string { return "scripts" }

func (ScriptsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Scripts.Output == "" {
		cfg.Scripts.Output = "js/app.min.js"
	}
	if len(cfg.Scripts.Targets) == 0 {
		cfg.Scripts.Targets = []string{"es2017"}
	}
	return nil
}

// ImagesDefaultApplier handles images defaults.
type ImagesDefaultApplier struct{}

func (ImagesDefaultApplier) Domain() string { return "images" }

func (ImagesDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Images.Source == "" {
		cfg.Images.Source = "images/src"
	}
	if cfg.Images.Output == "" {
		cfg.Images.Output = "images/dist"
	}
	if cfg.Images.Cache == "" {
		cfg.Images.Cache = ".assetpipe/images.db"
	}
	if cfg.Images.JPEGQuality <= 0 || cfg.Images.JPEGQuality > 100 {
		cfg.Images.JPEGQuality = 82
	}
	return nil
}

// OutputDefaultApplier handles collect and includes defaults.
type OutputDefaultApplier struct{}

func (OutputDefaultApplier) Domain() string { return "output" }

func (OutputDefaultApplier) ApplyDefaults(cfg *Config) error {
	if len(cfg.Collect.Patterns) == 0 {
		cfg.Collect.Patterns = []string{
			"js/*.min.*",
			"css/*.min.*",
			"images/**/*",
			"!images/src/**",
			"fonts/**/*",
		}
	}
	if cfg.Includes.Pattern == "" {
		cfg.Includes.Pattern = "**/*.html"
	}
	if cfg.Includes.Partials == "" {
		cfg.Includes.Partials = "partials"
	}
	return nil
}

// ServerDefaultApplier handles dev server defaults.
type ServerDefaultApplier struct{}

func (ServerDefaultApplier) Domain() string { return "server" }

func (ServerDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	return nil
}

// WatchDefaultApplier handles watcher defaults.
type WatchDefaultApplier struct{}

func (WatchDefaultApplier) Domain() string { return "watch" }

func (WatchDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Watch.Backend == "" {
		cfg.Watch.Backend = WatchBackendPolling
	}
	if cfg.Watch.Interval <= 0 {
		cfg.Watch.Interval = 100 * time.Millisecond
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 100 * time.Millisecond
	}
	return nil
}

// DeployDefaultApplier handles deploy defaults. Hostname and destination have no default.
type DeployDefaultApplier struct{}

func (DeployDefaultApplier) Domain() string { return "deploy" }

func (DeployDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Deploy.Binary == "" {
		cfg.Deploy.Binary = "rsync"
	}
	if cfg.Deploy.Exclude == nil {
		cfg.Deploy.Exclude = []string{"**/Thumbs.db", "**/*.DS_Store"}
	}
	return nil
}
