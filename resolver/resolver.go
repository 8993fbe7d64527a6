// Package resolver resolves labels against the taxonomy authority with a
// fixed pool of workers and records every answer in the cache.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	slogcontext "github.com/veqryn/slog-context"

	"github.com/c360studio/evorao/authority"
	"github.com/c360studio/evorao/cache"
	"github.com/c360studio/evorao/retry"
	"github.com/c360studio/evorao/taxonomy"
)

// Defaults for Options.
const (
	DefaultWorkers       = 8
	DefaultProgressEvery = 20
)

// Options configures a Resolver.
type Options struct {
	// Workers is the pool size.
	Workers int

	// ProgressEvery logs progress after this many completions. The final
	// completion is always logged.
	ProgressEvery int

	Retry retry.Config

	// Logger defaults to the logger carried by the context.
	Logger  *slog.Logger
	Metrics *Metrics
}

// Stats summarizes one Resolve call.
type Stats struct {
	// Requested is the number of distinct labels asked for.
	Requested int
	// Cached labels already had an entry and were not queried.
	Cached int
	// Queried labels were sent to the authority.
	Queried int
	// Matched queries yielded a usable entity.
	Matched int
	// Unmatched queries completed with no usable entity.
	Unmatched int
	// Failed queries exhausted their retries, panicked or had no client.
	Failed int
	// Cancelled queries were interrupted by the context and left uncached.
	Cancelled int
	Duration  time.Duration
}

// Completed returns the number of queries whose answer was stored.
func (s Stats) Completed() int {
	return s.Matched + s.Unmatched + s.Failed
}

// Resolver fills a cache from the taxonomy authority.
type Resolver struct {
	factory authority.Factory
	opts    Options
}

// New returns a Resolver building one authority client per task.
func New(factory authority.Factory, opts Options) *Resolver {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.DefaultConfig()
	}
	return &Resolver{factory: factory, opts: opts}
}

type outcome struct {
	label     string
	result    *taxonomy.Result
	failed    bool
	cancelled bool
	attempts  int
	duration  time.Duration
}

func (o outcome) kind() string {
	switch {
	case o.failed:
		return OutcomeFailed
	case o.result.Entity() != nil:
		return OutcomeMatched
	default:
		return OutcomeUnmatched
	}
}

// Resolve queries the authority for every label without a cache entry and
// stores each answer in c, a failure being stored as no match. It returns
// once every query has completed. The calling goroutine is the only writer
// of c.
//
// Once ctx is done, queued labels are not queried and a query cut short by
// the cancellation is not recorded, so those labels stay missing from c.
func (r *Resolver) Resolve(ctx context.Context, labels []string, c *cache.Cache) Stats {
	start := time.Now()
	logger := r.opts.Logger
	if logger == nil {
		logger = slogcontext.FromCtx(ctx)
	}
	missing := c.Missing(labels)

	stats := Stats{Requested: len(cache.New().Missing(labels)), Queried: len(missing)}
	stats.Cached = stats.Requested - stats.Queried
	r.opts.Metrics.cacheHits(stats.Cached)
	r.opts.Metrics.cacheMisses(stats.Queried)

	if len(missing) == 0 {
		logger.Info("All labels cached, nothing to resolve", slog.Int("labels", stats.Requested))
		return stats
	}

	workers := min(r.opts.Workers, len(missing))
	logger.Info("Resolving labels",
		slog.Int("missing", len(missing)),
		slog.Int("cached", stats.Cached),
		slog.Int("workers", workers),
		slog.Duration("max_retry_wait", r.opts.Retry.WorstCaseWait()))

	tasks := make(chan string, len(missing))
	for _, label := range missing {
		tasks <- label
	}
	close(tasks)

	// Fan out to workers, each with its own result channel.
	workerChannels := make([]chan outcome, 0, workers)
	for range workers {
		workerChannels = append(workerChannels, r.startWorker(ctx, logger, tasks))
	}

	done := 0
	for o := range merge(workerChannels) {
		done++
		if o.cancelled {
			stats.Cancelled++
			continue
		}
		c.Set(o.label, o.result)
		r.opts.Metrics.observe(o)

		switch o.kind() {
		case OutcomeMatched:
			stats.Matched++
		case OutcomeUnmatched:
			stats.Unmatched++
		default:
			stats.Failed++
		}

		if done%r.opts.ProgressEvery == 0 || done == len(missing) {
			logger.Info("Resolution progress",
				slog.String("done", fmt.Sprintf("%d/%d", done, len(missing))),
				slog.Int("matched", stats.Matched))
		}
	}

	if stats.Cancelled > 0 {
		logger.Warn("Resolution interrupted, unfinished labels left uncached",
			slog.Int("cancelled", stats.Cancelled),
			slog.String("error", context.Cause(ctx).Error()))
	}

	stats.Duration = time.Since(start)
	return stats
}

// startWorker drains tasks and returns the channel it reports on. The
// channel is closed once tasks is exhausted.
func (r *Resolver) startWorker(ctx context.Context, logger *slog.Logger, tasks <-chan string) chan outcome {
	results := make(chan outcome)
	go func() {
		defer close(results)
		for label := range tasks {
			if ctx.Err() != nil {
				results <- outcome{label: label, cancelled: true}
				continue
			}
			results <- r.resolveOne(ctx, logger, label)
		}
	}()
	return results
}

// merge fans worker channels into one, closed when all of them are.
func merge(channels []chan outcome) <-chan outcome {
	merged := make(chan outcome)
	var wg sync.WaitGroup
	wg.Add(len(channels))
	for _, ch := range channels {
		go func() {
			defer wg.Done()
			for o := range ch {
				merged <- o
			}
		}()
	}
	go func() {
		wg.Wait()
		close(merged)
	}()
	return merged
}

// resolveOne never panics; any failure is reported as a failed outcome,
// except one caused by ctx ending, which is reported as cancelled.
func (r *Resolver) resolveOne(ctx context.Context, logger *slog.Logger, label string) (out outcome) {
	start := time.Now()
	out.label = label
	logger = logger.With(slog.String("label", label))

	defer func() {
		if p := recover(); p != nil {
			logger.Error("Resolution panicked", slog.Any("panic", p))
			out.result = nil
			out.failed = true
		}
		out.duration = time.Since(start)
	}()

	client, err := r.factory()
	if err != nil {
		logger.Warn("Authority client unavailable", slog.String("error", err.Error()))
		out.failed = true
		return out
	}

	ctx = slogcontext.NewCtx(ctx, logger)
	res := retry.Do(ctx, r.opts.Retry, func(ctx context.Context) (*taxonomy.Result, error) {
		return client.ResolveToLatest(ctx, label)
	})
	out.attempts = res.Attempts
	if !res.OK && ctx.Err() != nil {
		out.cancelled = true
		return out
	}
	if !res.OK {
		logger.Debug("Recording label as unresolved",
			slog.Int("attempts", res.Attempts),
			slog.Bool("transient", authority.IsTransient(res.Err)))
		out.failed = true
		return out
	}
	out.result = res.Value
	return out
}
