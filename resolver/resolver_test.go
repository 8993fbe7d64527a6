package resolver_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/evorao/authority"
	stub "github.com/c360studio/evorao/authority/testutil"
	"github.com/c360studio/evorao/cache"
	"github.com/c360studio/evorao/resolver"
	"github.com/c360studio/evorao/retry"
	"github.com/c360studio/evorao/taxonomy"
)

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffMultiplier: 1}
}

func current(label string) *taxonomy.Result {
	return &taxonomy.Result{Status: taxonomy.StatusCurrent, Current: &taxonomy.Entity{Label: label}}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestResolve_FillsCache(t *testing.T) {
	auth := &stub.StubAuthority{
		Results: map[string]*taxonomy.Result{
			"Rabies virus": current("Rabies lyssavirus"),
			"Zika virus":   current("Orthoflavivirus zikaense"),
		},
	}
	r := resolver.New(auth.Factory(), resolver.Options{Retry: fastRetry(), Logger: quietLogger()})

	c := cache.New()
	stats := r.Resolve(context.Background(), []string{"Rabies virus", "Zika virus", "Unknown virus", "Rabies virus"}, c)

	assert.Equal(t, 3, stats.Requested)
	assert.Equal(t, 3, stats.Queried)
	assert.Equal(t, 0, stats.Cached)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 1, stats.Unmatched)
	assert.Equal(t, 0, stats.Failed)

	assert.Equal(t, 3, c.Len())
	res, ok := c.Lookup("Unknown virus")
	assert.True(t, ok)
	assert.Nil(t, res)

	assert.Equal(t, 1, auth.Calls("Rabies virus"), "duplicates are resolved once")
	assert.Equal(t, 3, auth.Clients(), "each task builds its own client")
}

func TestResolve_SkipsCachedLabels(t *testing.T) {
	auth := &stub.StubAuthority{}
	r := resolver.New(auth.Factory(), resolver.Options{Retry: fastRetry(), Logger: quietLogger()})

	c := cache.New()
	c.Set("Rabies virus", current("Rabies lyssavirus"))
	c.Set("Unknown virus", nil)

	stats := r.Resolve(context.Background(), []string{"Rabies virus", "Unknown virus"}, c)

	assert.Equal(t, 0, auth.TotalCalls(), "cached labels, misses included, are never re-queried")
	assert.Equal(t, 0, auth.Clients())
	assert.Equal(t, 2, stats.Cached)
	assert.Equal(t, 0, stats.Queried)
	assert.Equal(t, "Rabies lyssavirus", mustEntity(t, c, "Rabies virus").Label)
}

func TestResolve_RetriesThenStoresFailureAsMiss(t *testing.T) {
	auth := &stub.StubAuthority{
		Results: map[string]*taxonomy.Result{
			"Flaky":  current("Flaky virus"),
			"Broken": current("never returned"),
		},
		Failing: map[string]int{"Flaky": 2, "Broken": -1},
	}
	r := resolver.New(auth.Factory(), resolver.Options{Retry: fastRetry(), Logger: quietLogger()})

	c := cache.New()
	stats := r.Resolve(context.Background(), []string{"Flaky", "Broken"}, c)

	assert.Equal(t, 3, auth.Calls("Flaky"))
	assert.Equal(t, 3, auth.Calls("Broken"))
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 1, stats.Failed)

	assert.Equal(t, "Flaky virus", mustEntity(t, c, "Flaky").Label)
	res, ok := c.Lookup("Broken")
	assert.True(t, ok, "exhausted retries are cached as no match")
	assert.Nil(t, res)
}

func TestResolve_RecoversFromPanicsAndFactoryErrors(t *testing.T) {
	auth := &stub.StubAuthority{
		Results:   map[string]*taxonomy.Result{"Fine": current("Fine virus")},
		Panicking: map[string]bool{"Boom": true},
	}
	var buf bytes.Buffer
	r := resolver.New(auth.Factory(), resolver.Options{
		Retry:  fastRetry(),
		Logger: slog.New(slog.NewTextHandler(&buf, nil)),
	})

	c := cache.New()
	stats := r.Resolve(context.Background(), []string{"Fine", "Boom"}, c)
	assert.Equal(t, 1, stats.Failed)
	assert.True(t, c.Has("Boom"))
	assert.Equal(t, "Fine virus", mustEntity(t, c, "Fine").Label)
	assert.Contains(t, buf.String(), "Resolution panicked")

	failing := resolver.New(func() (authority.Client, error) {
		return nil, errors.New("no network")
	}, resolver.Options{Retry: fastRetry(), Logger: quietLogger()})

	c = cache.New()
	stats = failing.Resolve(context.Background(), []string{"A", "B"}, c)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 2, c.Len())
}

// slowClient counts concurrent calls.
type slowClient struct {
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (s slowClient) ResolveToLatest(_ context.Context, label string) (*taxonomy.Result, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return current(label), nil
}

func TestResolve_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	factory := func() (authority.Client, error) {
		return slowClient{inFlight: &inFlight, peak: &peak}, nil
	}
	r := resolver.New(factory, resolver.Options{Workers: 3, Retry: fastRetry(), Logger: quietLogger()})

	labels := make([]string, 30)
	for i := range labels {
		labels[i] = fmt.Sprintf("label-%02d", i)
	}

	c := cache.New()
	stats := r.Resolve(context.Background(), labels, c)

	assert.Equal(t, 30, stats.Matched)
	assert.Equal(t, 30, c.Len())
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(1), "work runs in parallel")
}

func TestResolve_ProgressLogging(t *testing.T) {
	auth := &stub.StubAuthority{}
	var buf bytes.Buffer
	r := resolver.New(auth.Factory(), resolver.Options{
		ProgressEvery: 2,
		Retry:         fastRetry(),
		Logger:        slog.New(slog.NewTextHandler(&buf, nil)),
	})

	r.Resolve(context.Background(), []string{"a", "b", "c", "d", "e"}, cache.New())

	out := buf.String()
	assert.Contains(t, out, "done=2/5")
	assert.Contains(t, out, "done=4/5")
	assert.Contains(t, out, "done=5/5")
	assert.NotContains(t, out, "done=3/5")
}

func TestResolve_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := resolver.NewMetrics(reg)

	auth := &stub.StubAuthority{
		Results: map[string]*taxonomy.Result{"Rabies virus": current("Rabies lyssavirus")},
		Failing: map[string]int{"Down": -1},
	}
	r := resolver.New(auth.Factory(), resolver.Options{Retry: fastRetry(), Logger: quietLogger(), Metrics: metrics})

	c := cache.New()
	c.Set("Cached", nil)
	r.Resolve(context.Background(), []string{"Cached", "Rabies virus", "Unknown", "Down"}, c)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheHits))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.CacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Outcomes.WithLabelValues(resolver.OutcomeMatched)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Outcomes.WithLabelValues(resolver.OutcomeUnmatched)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Outcomes.WithLabelValues(resolver.OutcomeFailed)))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.Attempts))

	count, err := testutil.GatherAndCount(reg, "evorao_resolver_resolution_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func mustEntity(t *testing.T, c *cache.Cache, label string) *taxonomy.Entity {
	t.Helper()
	res, ok := c.Lookup(label)
	require.True(t, ok)
	ent := res.Entity()
	require.NotNil(t, ent)
	return ent
}

func TestResolve_CancellationLeavesLabelsUncached(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auth := &stub.StubAuthority{
		Results: map[string]*taxonomy.Result{
			"Rabies virus": current("Rabies lyssavirus"),
			"Zika virus":   current("Orthoflavivirus zikaense"),
		},
		OnResolve: func(label string) {
			if label == "Zika virus" {
				cancel()
			}
		},
	}
	r := resolver.New(auth.Factory(), resolver.Options{Workers: 1, Retry: fastRetry(), Logger: quietLogger()})

	c := cache.New()
	stats := r.Resolve(ctx, []string{"Rabies virus", "Zika virus", "Dengue virus"}, c)

	assert.Equal(t, 3, stats.Queried)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 2, stats.Cancelled)
	assert.Equal(t, 1, stats.Completed())

	assert.Equal(t, "Rabies lyssavirus", mustEntity(t, c, "Rabies virus").Label)
	assert.False(t, c.Has("Zika virus"), "an interrupted query is not a miss")
	assert.False(t, c.Has("Dengue virus"), "queued labels are not recorded")
	assert.Equal(t, 1, auth.Calls("Zika virus"), "no retries after cancellation")
	assert.Equal(t, 0, auth.Calls("Dengue virus"), "queued labels are not queried")
}

func TestResolve_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	auth := &stub.StubAuthority{}
	r := resolver.New(auth.Factory(), resolver.Options{Retry: fastRetry(), Logger: quietLogger()})

	c := cache.New()
	stats := r.Resolve(ctx, []string{"Rabies virus", "Zika virus"}, c)

	assert.Equal(t, 2, stats.Cancelled)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, auth.TotalCalls())
}
