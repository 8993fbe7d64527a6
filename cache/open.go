package cache

import (
	"context"
	"fmt"
	"path/filepath"
)

// Config selects and addresses a cache backend.
type Config struct {
	// Driver defaults to file.
	Driver Driver `yaml:"driver"`

	// Path is the JSON document for the file driver and the database for
	// the sqlite driver. Empty means a default beside the input graph.
	Path string `yaml:"path"`

	NATS NATSConfig `yaml:"nats"`
	S3   S3Config   `yaml:"s3"`
}

// NATSConfig addresses a JetStream KV bucket.
type NATSConfig struct {
	URL    string `yaml:"url"`
	Bucket string `yaml:"bucket"`
}

// Default cache locations, created beside the input graph.
const (
	DefaultFileName   = "ictv_cache.json"
	DefaultSQLiteName = "ictv_cache.db"
)

// DefaultPath returns the default cache location for driver given an input
// graph path.
func DefaultPath(driver Driver, inputPath string) string {
	name := DefaultFileName
	if driver == DriverSQLite {
		name = DefaultSQLiteName
	}
	return filepath.Join(filepath.Dir(inputPath), name)
}

// Validate checks the driver and its required settings.
func (c Config) Validate() error {
	switch c.Driver {
	case "", DriverFile, DriverSQLite, DriverNATS:
		return nil
	case DriverS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("cache.s3.bucket is required for the s3 driver")
		}
		return nil
	default:
		return fmt.Errorf("unknown cache driver %q", c.Driver)
	}
}

// Open builds the Store cfg names. The caller closes it.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case "", DriverFile:
		return NewFileStore(cfg.Path)
	case DriverSQLite:
		return NewSQLiteStore(cfg.Path)
	case DriverNATS:
		return DialKVStore(ctx, cfg.NATS.URL, cfg.NATS.Bucket)
	default:
		return NewS3Store(ctx, cfg.S3)
	}
}
