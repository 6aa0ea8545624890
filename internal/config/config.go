// Package config loads the optional ipfreq YAML configuration file.
// Command-line flags override the values loaded here.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lc/ipfreq/internal/dnsresolver"
	"github.com/lc/ipfreq/internal/engine"
	"github.com/lc/ipfreq/internal/filesys"
	"github.com/lc/ipfreq/internal/report"
)

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNoConfig is returned when the configuration file is not found.
	ErrNoConfig = errors.New("configuration file not found")
)

// DefaultConfigPath is the default config location, relative to the home directory.
const DefaultConfigPath = ".ipfreq/config.yaml"

// Config holds the application configuration.
type Config struct {
	Resolver ResolverConfig `yaml:"resolver"`
	Pool     PoolConfig     `yaml:"pool"`
	Report   ReportConfig   `yaml:"report"`
	Verbose  bool           `yaml:"verbose"`
}

// ResolverConfig holds DNS lookup settings.
type ResolverConfig struct {
	Servers    []string      `yaml:"servers"`
	Timeout    time.Duration `yaml:"timeout"`
	Attempts   uint          `yaml:"attempts"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// PoolConfig holds worker pool settings.
type PoolConfig struct {
	Threads int `yaml:"threads"`
}

// ReportConfig holds report settings.
type ReportConfig struct {
	MinCount int `yaml:"min_count"`
}

// Provider defines the interface for loading configuration.
type Provider interface {
	Load() (*Config, error)
}

// FSProvider implements Provider using the local filesystem.
type FSProvider struct {
	fs   filesys.ReadFS
	path string
}

var _ Provider = (*FSProvider)(nil)

// New returns a provider for path, or for ~/.ipfreq/config.yaml when path
// is empty. If the home directory cannot be determined the default path
// is resolved against the current directory.
func New(path string) Provider {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = ""
		}
		path = filepath.Join(home, DefaultConfigPath)
	}
	return NewWithPath(filesys.OS(), path)
}

// NewWithPath creates a new provider with a specific filesystem and path.
func NewWithPath(fs filesys.ReadFS, path string) Provider {
	return &FSProvider{
		fs:   fs,
		path: path,
	}
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Resolver: ResolverConfig{
			Timeout:    dnsresolver.DefaultTimeout,
			Attempts:   dnsresolver.DefaultAttempts,
			RetryDelay: dnsresolver.DefaultRetryDelay,
		},
		Pool: PoolConfig{
			Threads: engine.DefaultWorkers,
		},
		Report: ReportConfig{
			MinCount: report.DefaultMinCount,
		},
	}
}

// Load reads the configuration file. A missing or empty file yields
// Default(). Keys absent from the file keep their default values.
func (p *FSProvider) Load() (*Config, error) {
	cfg, err := p.loadAndParse()
	if err != nil {
		if errors.Is(err, ErrNoConfig) {
			return Default(), nil
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	for _, s := range c.Resolver.Servers {
		if strings.TrimSpace(s) == "" {
			return errors.New("resolver servers cannot be blank")
		}
	}
	if c.Resolver.Timeout < time.Second {
		return errors.New("resolver timeout must be at least 1 second")
	}
	if c.Resolver.Attempts < 1 {
		return errors.New("resolver attempts must be at least 1")
	}
	if c.Resolver.RetryDelay < 0 {
		return errors.New("resolver retry delay cannot be negative")
	}
	if c.Report.MinCount < 0 {
		return errors.New("report min count cannot be negative")
	}
	return nil
}

func (p *FSProvider) loadAndParse() (*Config, error) {
	f, err := p.fs.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	cfg := Default()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config file: %w", err)
	}

	return cfg, nil
}
