package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/c360studio/evorao/authority"
	"github.com/c360studio/evorao/cache"
	"github.com/c360studio/evorao/config"
	"github.com/c360studio/evorao/pipeline"
	"github.com/c360studio/evorao/resolver"
)

type enrichFlags struct {
	input       string
	output      string
	cachePath   string
	cacheDriver string
	workers     int
	metricsFile string
}

func enrichCmd(global *globalFlags) *cobra.Command {
	flags := &enrichFlags{}

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Enrich a graph document with ICTV taxonomy",
		Long: `Resolve every pathogen name and taxon title in the input graph against the
taxonomy authority, cache the answers, and write the graph with canonical
taxon nodes and expanded search fields.

Labels already in the cache, including recorded misses, are never queried
again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnrich(cmd, global, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "Input JSON-LD file")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output JSON-LD file")
	cmd.Flags().StringVarP(&flags.cachePath, "cache", "c", "", "Cache path (default: ictv_cache.json next to input)")
	cmd.Flags().StringVar(&flags.cacheDriver, "cache-driver", "", "Cache driver (file, sqlite, nats, s3)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Concurrent resolutions (default from config)")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runEnrich(cmd *cobra.Command, global *globalFlags, flags *enrichFlags) error {
	ctx, logger, cfg, err := setup(cmd, global)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	applyEnrichFlags(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	resolverOpts := cfg.ResolverOptions()
	resolverOpts.Metrics = resolver.NewMetrics(reg)

	logger.Info("Starting enrichment",
		slog.String("input", flags.input),
		slog.String("output", flags.output),
		slog.String("cache_driver", string(store.Driver())),
		slog.String("authority", cfg.Authority.Endpoint))

	report, err := pipeline.Run(ctx, pipeline.Options{
		InputPath:         flags.input,
		OutputPath:        flags.output,
		Store:             store,
		Authority:         authority.NewHTTPFactory(cfg.AuthorityClient()),
		TaxonomyAuthority: cfg.TaxonomyAuthority(),
		Resolver:          resolverOpts,
	})
	if err != nil {
		return err
	}

	if cfg.Metrics.Textfile != "" {
		recordReport(reg, report)
		if err := prometheus.WriteToTextfile(cfg.Metrics.Textfile, reg); err != nil {
			logger.Warn("Failed to write metrics", slog.String("path", cfg.Metrics.Textfile), slog.String("error", err.Error()))
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Enriched %d of %d records (%d labels, %d newly resolved) -> %s\n",
		report.Enrich.Enriched, report.Records, report.Labels, report.Resolve.Queried, flags.output)
	return nil
}

// applyEnrichFlags overlays command-line settings on cfg.
func applyEnrichFlags(cfg *config.Config, flags *enrichFlags) {
	if flags.cacheDriver != "" {
		cfg.Cache.Driver = cache.Driver(flags.cacheDriver)
	}
	if flags.cachePath != "" {
		cfg.Cache.Path = flags.cachePath
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = cache.DefaultPath(cfg.Cache.Driver, flags.input)
	}
	if flags.workers > 0 {
		cfg.Resolver.Workers = flags.workers
	}
	if flags.metricsFile != "" {
		cfg.Metrics.Textfile = flags.metricsFile
	}
}

// recordReport exposes run totals next to the resolver metrics.
func recordReport(reg prometheus.Registerer, report pipeline.Report) {
	records := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "evorao",
		Subsystem: "enrich",
		Name:      "records",
		Help:      "Records in the last enriched graph by state.",
	}, []string{"state"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "evorao",
		Subsystem: "enrich",
		Name:      "last_run_duration_seconds",
		Help:      "Duration of the last enrichment run.",
	})
	reg.MustRegister(records, duration)

	records.WithLabelValues("enriched").Set(float64(report.Enrich.Enriched))
	records.WithLabelValues("untouched").Set(float64(report.Enrich.Untouched))
	duration.Set(report.Duration.Seconds())
}
