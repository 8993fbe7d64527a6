// Package retry runs fallible operations with bounded exponential backoff.
//
// Failures never escape Do: once the attempts are used up the caller gets a
// Failed result carrying the last error, and decides what absence means.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	slogcontext "github.com/veqryn/slog-context"
)

// Config holds retry configuration.
type Config struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int `yaml:"max_attempts"`

	// BackoffBase is the wait after the first failure.
	BackoffBase time.Duration `yaml:"backoff_base"`

	// BackoffMultiplier is applied to the wait after each further failure.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// MaxBackoff caps a single wait.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// DefaultConfig returns the retry defaults for authority calls: four
// attempts, waiting 0.5s, 1s and 2s in between.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       4,
		BackoffBase:       500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// WorstCaseWait returns the total time spent sleeping when every attempt fails.
func (c Config) WorstCaseWait() time.Duration {
	var total time.Duration
	wait := c.BackoffBase
	for i := 1; i < c.MaxAttempts; i++ {
		if c.MaxBackoff > 0 && wait > c.MaxBackoff {
			wait = c.MaxBackoff
		}
		total += wait
		wait = time.Duration(float64(wait) * c.BackoffMultiplier)
	}
	return total
}

// Result is the outcome of Do: either Ok with a value, or Failed.
type Result[T any] struct {
	Value    T
	OK       bool
	Attempts int
	Err      error
}

// Ok returns a successful Result.
func Ok[T any](v T, attempts int) Result[T] {
	return Result[T]{Value: v, OK: true, Attempts: attempts}
}

// Failed returns an unsuccessful Result holding the last error.
func Failed[T any](err error, attempts int) Result[T] {
	return Result[T]{Err: err, Attempts: attempts}
}

// Get returns the value and whether the operation succeeded.
func (r Result[T]) Get() (T, bool) {
	return r.Value, r.OK
}

// Do calls op until it succeeds or cfg.MaxAttempts calls have failed,
// sleeping between attempts. Each failed attempt is logged at warn level
// through the logger carried by ctx. Cancelling ctx stops further attempts.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) Result[T] {
	logger := slogcontext.FromCtx(ctx)

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempts := 0
	operation := func() (T, error) {
		attempts++
		v, err := op(ctx)
		if err != nil && attempts >= maxAttempts {
			// Logged here because notify only runs before a retry.
			logger.Warn("Attempt failed",
				slog.Int("attempt", attempts),
				slog.Int("max_attempts", maxAttempts),
				slog.String("error", err.Error()))
		}
		return v, err
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("Attempt failed",
			slog.Int("attempt", attempts),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("retry_in", wait),
			slog.String("error", err.Error()))
	}

	v, err := backoff.RetryNotifyWithData(operation, newBackOff(ctx, cfg, maxAttempts), notify)
	if err != nil {
		logger.Warn("Giving up", slog.Int("attempts", attempts), slog.String("error", err.Error()))
		return Failed[T](err, attempts)
	}
	return Ok(v, attempts)
}

func newBackOff(ctx context.Context, cfg Config, maxAttempts int) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.BackoffBase
	exp.RandomizationFactor = 0
	exp.Multiplier = cfg.BackoffMultiplier
	if exp.Multiplier < 1 {
		exp.Multiplier = 1
	}
	exp.MaxInterval = cfg.MaxBackoff
	if exp.MaxInterval <= 0 {
		exp.MaxInterval = time.Hour
	}
	// Attempts are bounded by count, not by elapsed time.
	exp.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxAttempts-1)), ctx)
}
