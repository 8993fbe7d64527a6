// Package pipeline runs one enrichment pass over a graph document: collect
// labels, resolve the uncached ones, persist the cache and rewrite records.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	slogcontext "github.com/veqryn/slog-context"

	"github.com/c360studio/evorao/authority"
	"github.com/c360studio/evorao/cache"
	"github.com/c360studio/evorao/enrich"
	"github.com/c360studio/evorao/graph"
	"github.com/c360studio/evorao/resolver"
	"github.com/c360studio/evorao/taxonomy"
)

// Options configures Run.
type Options struct {
	InputPath  string
	OutputPath string

	// Store holds the resolution cache. Run does not close it.
	Store cache.Store

	// Authority builds one client per resolution task.
	Authority authority.Factory

	// TaxonomyAuthority titles taxonomy version nodes. Zero means ICTV.
	TaxonomyAuthority taxonomy.Authority

	Resolver resolver.Options
	Enrich   enrich.Options
}

// Report summarizes a run.
type Report struct {
	Records int
	Labels  int

	Resolve resolver.Stats
	Enrich  enrich.Stats

	// CacheSaved is false when nothing new was resolved or the save failed.
	CacheSaved bool
	Duration   time.Duration
}

// Run enriches the graph at opts.InputPath and writes it to opts.OutputPath.
// An unreadable input is fatal and nothing is written. Cache problems are
// logged and never fatal. When ctx ends during resolution, the answers
// gathered so far are saved and Run fails without writing the output.
func Run(ctx context.Context, opts Options) (Report, error) {
	start := time.Now()
	logger := slogcontext.FromCtx(ctx)

	if opts.Store == nil {
		return Report{}, fmt.Errorf("cache store required")
	}
	if opts.Authority == nil {
		return Report{}, fmt.Errorf("authority factory required")
	}

	doc, err := graph.ReadFile(opts.InputPath)
	if err != nil {
		return Report{}, err
	}
	records := doc.Records()
	logger.Info("Loaded graph",
		slog.String("path", opts.InputPath),
		slog.Int("records", len(records)))

	labels := enrich.CollectLabels(records)
	logger.Info("Collected candidate labels", slog.Int("labels", len(labels)))

	report := Report{Records: len(records), Labels: len(labels)}

	c := cache.Load(ctx, opts.Store, logger)

	res := resolver.New(opts.Authority, opts.Resolver)
	report.Resolve = res.Resolve(ctx, labels, c)

	// Entries completed before an interruption are kept; unfinished labels
	// were never added and are queried on the next run. The save itself is
	// not cancelled with ctx.
	if report.Resolve.Completed() > 0 {
		if err := cache.Save(context.WithoutCancel(ctx), opts.Store, c); err != nil {
			logger.Warn("Failed to save cache", slog.String("error", err.Error()))
		} else {
			report.CacheSaved = true
			logger.Info("Saved cache",
				slog.String("driver", string(opts.Store.Driver())),
				slog.Int("entries", c.Len()))
		}
	}

	if err := ctx.Err(); err != nil {
		report.Duration = time.Since(start)
		return report, fmt.Errorf("resolution interrupted, %d labels left unresolved: %w",
			report.Resolve.Cancelled, context.Cause(ctx))
	}

	authorityDesc := opts.TaxonomyAuthority
	if authorityDesc == (taxonomy.Authority{}) {
		authorityDesc = taxonomy.DefaultAuthority()
	}
	enricher := enrich.NewEnricher(taxonomy.NewCanonicalizer(authorityDesc), opts.Enrich)
	report.Enrich = enricher.Enrich(ctx, records, c)

	if err := graph.WriteFile(opts.OutputPath, doc); err != nil {
		return report, err
	}
	report.Duration = time.Since(start)

	logger.Info("Enriched graph written",
		slog.String("path", opts.OutputPath),
		slog.Int("enriched", report.Enrich.Enriched),
		slog.Int("untouched", report.Enrich.Untouched),
		slog.Duration("duration", report.Duration))
	return report, nil
}
