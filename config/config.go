// Package config provides configuration loading and management for evorao.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/evorao/authority"
	"github.com/c360studio/evorao/cache"
	"github.com/c360studio/evorao/resolver"
	"github.com/c360studio/evorao/retry"
	"github.com/c360studio/evorao/taxonomy"
)

// Config represents the complete evorao configuration
type Config struct {
	Authority AuthorityConfig `yaml:"authority"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Retry     retry.Config    `yaml:"retry"`
	Cache     cache.Config    `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AuthorityConfig configures the taxonomy authority
type AuthorityConfig struct {
	// Name titles taxonomy version nodes (default: ICTV)
	Name string `yaml:"name"`
	// Provenance is recorded on every taxonomy version node
	Provenance string `yaml:"provenance"`
	// Endpoint is the resolve-to-latest URL; the label is sent as a query parameter
	Endpoint string `yaml:"endpoint"`
	// Timeout bounds a single authority call
	Timeout time.Duration `yaml:"timeout"`
	// UserAgent is sent with every request
	UserAgent string `yaml:"user_agent"`
}

// ResolverConfig configures the resolution worker pool
type ResolverConfig struct {
	// Workers is the number of concurrent resolutions (default: 8)
	Workers int `yaml:"workers"`
	// ProgressEvery logs progress after this many completions (default: 20)
	ProgressEvery int `yaml:"progress_every"`
}

// MetricsConfig configures metrics export
type MetricsConfig struct {
	// Textfile is a Prometheus textfile-collector path written after each run (empty = disabled)
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	auth := taxonomy.DefaultAuthority()
	return &Config{
		Authority: AuthorityConfig{
			Name:       auth.Name,
			Provenance: auth.Provenance,
			Endpoint:   "http://localhost:8085/api/resolve/latest",
			Timeout:    30 * time.Second,
			UserAgent:  "evorao-enrich",
		},
		Resolver: ResolverConfig{
			Workers:       resolver.DefaultWorkers,
			ProgressEvery: resolver.DefaultProgressEvery,
		},
		Retry: retry.DefaultConfig(),
		Cache: cache.Config{
			Driver: cache.DriverFile,
			Path:   "", // Beside the input graph
			NATS: cache.NATSConfig{
				Bucket: cache.DefaultBucket,
			},
			S3: cache.S3Config{
				Key: cache.DefaultObjectKey,
			},
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Authority.Name == "" {
		return fmt.Errorf("authority.name is required")
	}
	if c.Authority.Endpoint == "" {
		return fmt.Errorf("authority.endpoint is required")
	}
	if u, err := url.Parse(c.Authority.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("authority.endpoint must be an http(s) URL")
	}
	if c.Authority.Timeout < 0 {
		return fmt.Errorf("authority.timeout must not be negative")
	}
	if c.Resolver.Workers < 1 {
		return fmt.Errorf("resolver.workers must be at least 1")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("retry.backoff_multiplier must be at least 1")
	}
	return c.Cache.Validate()
}

// AuthorityClient returns the HTTP client settings
func (c *Config) AuthorityClient() authority.Config {
	return authority.Config{
		Endpoint:  c.Authority.Endpoint,
		Timeout:   c.Authority.Timeout,
		UserAgent: c.Authority.UserAgent,
	}
}

// TaxonomyAuthority returns the authority description used on taxon nodes
func (c *Config) TaxonomyAuthority() taxonomy.Authority {
	return taxonomy.Authority{Name: c.Authority.Name, Provenance: c.Authority.Provenance}
}

// ResolverOptions returns the resolver settings
func (c *Config) ResolverOptions() resolver.Options {
	return resolver.Options{
		Workers:       c.Resolver.Workers,
		ProgressEvery: c.Resolver.ProgressEvery,
		Retry:         c.Retry,
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := LoadFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return config, nil
}

// LoadFromBytes parses YAML over the defaults after expanding ${VAR:-default}
// references
func LoadFromBytes(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(ExpandEnvWithDefaults(string(data))), config); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Authority
	if other.Authority.Name != "" {
		c.Authority.Name = other.Authority.Name
	}
	if other.Authority.Provenance != "" {
		c.Authority.Provenance = other.Authority.Provenance
	}
	if other.Authority.Endpoint != "" {
		c.Authority.Endpoint = other.Authority.Endpoint
	}
	if other.Authority.Timeout != 0 {
		c.Authority.Timeout = other.Authority.Timeout
	}
	if other.Authority.UserAgent != "" {
		c.Authority.UserAgent = other.Authority.UserAgent
	}

	// Resolver
	if other.Resolver.Workers != 0 {
		c.Resolver.Workers = other.Resolver.Workers
	}
	if other.Resolver.ProgressEvery != 0 {
		c.Resolver.ProgressEvery = other.Resolver.ProgressEvery
	}

	// Retry
	if other.Retry.MaxAttempts != 0 {
		c.Retry.MaxAttempts = other.Retry.MaxAttempts
	}
	if other.Retry.BackoffBase != 0 {
		c.Retry.BackoffBase = other.Retry.BackoffBase
	}
	if other.Retry.BackoffMultiplier != 0 {
		c.Retry.BackoffMultiplier = other.Retry.BackoffMultiplier
	}
	if other.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = other.Retry.MaxBackoff
	}

	// Cache
	if other.Cache.Driver != "" {
		c.Cache.Driver = other.Cache.Driver
	}
	if other.Cache.Path != "" {
		c.Cache.Path = other.Cache.Path
	}
	if other.Cache.NATS.URL != "" {
		c.Cache.NATS.URL = other.Cache.NATS.URL
	}
	if other.Cache.NATS.Bucket != "" {
		c.Cache.NATS.Bucket = other.Cache.NATS.Bucket
	}
	if other.Cache.S3.Bucket != "" {
		c.Cache.S3.Bucket = other.Cache.S3.Bucket
	}
	if other.Cache.S3.Key != "" {
		c.Cache.S3.Key = other.Cache.S3.Key
	}
	if other.Cache.S3.Region != "" {
		c.Cache.S3.Region = other.Cache.S3.Region
	}
	if other.Cache.S3.Endpoint != "" {
		c.Cache.S3.Endpoint = other.Cache.S3.Endpoint
	}
	if other.Cache.S3.PathStyle {
		c.Cache.S3.PathStyle = true
	}

	// Metrics
	if other.Metrics.Textfile != "" {
		c.Metrics.Textfile = other.Metrics.Textfile
	}
}
