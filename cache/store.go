package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Driver names a cache backend.
type Driver string

const (
	DriverFile   Driver = "file"
	DriverSQLite Driver = "sqlite"
	DriverNATS   Driver = "nats"
	DriverS3     Driver = "s3"
)

// Store loads and saves a whole cache.
type Store interface {
	// Load returns the stored cache, or ErrNotFound when there is none.
	Load(ctx context.Context) (*Cache, error)

	// Save replaces the stored cache with c. An interrupted save must leave
	// the previous copy readable.
	Save(ctx context.Context, c *Cache) error

	Driver() Driver
	Close() error
}

// Load reads the cache from s. A missing or unreadable cache yields an empty
// one; the problem is logged and never returned.
func Load(ctx context.Context, s Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	c, err := s.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		logger.Info("No cache found, starting empty", slog.String("driver", string(s.Driver())))
		return New()
	case err != nil:
		logger.Warn("Cache unreadable, starting empty",
			slog.String("driver", string(s.Driver())),
			slog.String("error", err.Error()))
		return New()
	}

	logger.Info("Loaded cache",
		slog.String("driver", string(s.Driver())),
		slog.Int("entries", c.Len()))
	return c
}

// Save stamps c with the current time and writes it to s.
func Save(ctx context.Context, s Store, c *Cache) error {
	c.Stamp(time.Now())
	if err := s.Save(ctx, c); err != nil {
		return fmt.Errorf("save %s cache: %w", s.Driver(), err)
	}
	return nil
}
