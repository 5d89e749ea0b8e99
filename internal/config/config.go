package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// DefaultFilename is the configuration file looked up when none is given.
const DefaultFilename = "assetpipe.yaml"

// Config is the complete pipeline configuration. The zero value is not usable;
// obtain one from Load or Default.
type Config struct {
	Preprocessor    Preprocessor   `yaml:"preprocessor"`
	WatchExtensions []string       `yaml:"watch_extensions"` // extensions that trigger a full page reload
	Paths           PathsConfig    `yaml:"paths"`
	Styles          StylesConfig   `yaml:"styles"`
	Scripts         ScriptsConfig  `yaml:"scripts"`
	Images          ImagesConfig   `yaml:"images"`
	Includes        IncludesConfig `yaml:"includes"`
	Collect         CollectConfig  `yaml:"collect"`
	Server          ServerConfig   `yaml:"server"`
	Watch           WatchConfig    `yaml:"watch"`
	Deploy          DeployConfig   `yaml:"deploy"`
}

// PathsConfig holds the two tree roots.
type PathsConfig struct {
	Source string `yaml:"source"`
	Output string `yaml:"output"`
}

// StylesConfig configures the styles task.
type StylesConfig struct {
	Output       string        `yaml:"output"`      // relative to the source root
	SassBinary   string        `yaml:"sass_binary"` // Dart Sass executable speaking the embedded protocol
	IncludePaths []string      `yaml:"include_paths,omitempty"`
	Targets      []string      `yaml:"targets"` // esbuild engines, e.g. chrome80, safari13
	Timeout      time.Duration `yaml:"timeout"`
}

// ScriptsConfig configures the scripts task.
type ScriptsConfig struct {
	Output  string            `yaml:"output"`
	Provide map[string]string `yaml:"provide,omitempty"` // global identifier -> module
	Targets []string          `yaml:"targets"`
}

// ImagesConfig configures the images task.
type ImagesConfig struct {
	Source      string `yaml:"source"` // relative to the source root
	Output      string `yaml:"output"`
	Cache       string `yaml:"cache"` // SQLite file; ":memory:" keeps the cache in-process
	JPEGQuality int    `yaml:"jpeg_quality"`
}

// IncludesConfig configures the includes task.
type IncludesConfig struct {
	Pattern  string `yaml:"pattern"`
	Partials string `yaml:"partials"` // removed from the output root after compilation
}

// CollectConfig lists the patterns copied from the source root into the output root.
type CollectConfig struct {
	Patterns []string `yaml:"patterns"`
}

// ServerConfig configures the dev server.
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	LiveReload *bool  `yaml:"live_reload,omitempty"`
	Metrics    *bool  `yaml:"metrics,omitempty"`
}

// LiveReloadEnabled reports whether live reload is on (default true).
func (s ServerConfig) LiveReloadEnabled() bool { return s.LiveReload == nil || *s.LiveReload }

// MetricsEnabled reports whether /metrics is served (default true).
func (s ServerConfig) MetricsEnabled() bool { return s.Metrics == nil || *s.Metrics }

// Addr returns host:port.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// WatchConfig configures the dev watcher.
type WatchConfig struct {
	Backend  WatchBackend  `yaml:"backend"`
	Interval time.Duration `yaml:"interval"` // polling interval
	Debounce time.Duration `yaml:"debounce"`
}

// DeployConfig configures the rsync deployer.
type DeployConfig struct {
	Binary      string   `yaml:"binary"`
	Hostname    string   `yaml:"hostname"`
	Destination string   `yaml:"destination"`
	Shell       string   `yaml:"shell,omitempty"`
	Include     []string `yaml:"include,omitempty"`
	Exclude     []string `yaml:"exclude"`
	ExtraArgs   string   `yaml:"extra_args,omitempty"`
	Silent      bool     `yaml:"silent"`
	DryRun      bool     `yaml:"-"`
}

// StylesDir returns the preprocessor directory relative to the source root.
func (c *Config) StylesDir() string {
	return filepath.ToSlash(filepath.Join("styles", string(c.Preprocessor)))
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	if err := NewDefaultApplier().ApplyDefaults(cfg); err != nil {
		// Defaults never fail on an empty config.
		panic(err)
	}
	return cfg
}

// Load reads configPath, expands ${VAR} references, applies defaults and validates.
// A missing file is not an error: the defaults describe the conventional layout.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	var cfg Config
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("Configuration file not found, using defaults", "path", configPath)
	case err != nil:
		return nil, ferrors.ConfigError("failed to read config file").
			WithCause(err).WithContext("path", configPath).Build()
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, ferrors.ConfigError("failed to parse config file").
				WithCause(err).WithContext("path", configPath).Build()
		}
	}

	if cfg.Preprocessor != "" {
		p := NormalizePreprocessor(string(cfg.Preprocessor))
		if p == "" {
			return nil, ferrors.ConfigError(fmt.Sprintf("unknown preprocessor %q", cfg.Preprocessor)).
				WithContext("supported", Preprocessors()).Build()
		}
		cfg.Preprocessor = p
	}
	if cfg.Watch.Backend != "" {
		b := NormalizeWatchBackend(string(cfg.Watch.Backend))
		if b == "" {
			return nil, ferrors.ConfigError(fmt.Sprintf("unknown watch backend %q", cfg.Watch.Backend)).
				WithContext("supported", watchBackendNormalizer.ValidKeys()).Build()
		}
		cfg.Watch.Backend = b
	}

	if err := NewDefaultApplier().ApplyDefaults(&cfg); err != nil {
		return nil, ferrors.ConfigError("failed to apply defaults").WithCause(err).Build()
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}

	example := Default()
	example.Scripts.Provide = map[string]string{
		"$":             "jquery",
		"jQuery":        "jquery",
		"window.jQuery": "jquery",
	}
	example.Deploy.Hostname = "username@yoursite.com"
	example.Deploy.Destination = "yoursite/public_html/"

	data, err := yaml.Marshal(example)
	if err != nil {
		return ferrors.InternalError("failed to marshal config").WithCause(err).Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return ferrors.FileSystemError("failed to write config file").
			WithCause(err).WithContext("path", configPath).Build()
	}
	return nil
}
