// Package enrich attaches canonical taxon nodes and search labels to graph
// records using answers already in the resolution cache.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	slogcontext "github.com/veqryn/slog-context"

	"github.com/c360studio/evorao/cache"
	"github.com/c360studio/evorao/graph"
	"github.com/c360studio/evorao/taxonomy"
	"github.com/c360studio/evorao/vocabulary/evorao"
)

// DefaultProgressEvery is the record interval between progress logs.
const DefaultProgressEvery = 50

// Options configures an Enricher.
type Options struct {
	ProgressEvery int

	// Logger defaults to the logger carried by the context.
	Logger *slog.Logger
}

// Stats summarizes one Enrich call.
type Stats struct {
	Records int
	// Enriched records had their taxon node replaced.
	Enriched int
	// Untouched records had no label resolving to a usable entity.
	Untouched int
	// ByPathogenName and ByTaxonTitle count which candidate won.
	ByPathogenName int
	ByTaxonTitle   int
}

// Enricher rewrites records from cached resolutions. It never calls the
// authority.
type Enricher struct {
	canon *taxonomy.Canonicalizer
	opts  Options
}

// NewEnricher returns an Enricher building taxon nodes with canon.
func NewEnricher(canon *taxonomy.Canonicalizer, opts Options) *Enricher {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	return &Enricher{canon: canon, opts: opts}
}

// CollectLabels returns the distinct trimmed pathogen-name and taxon titles
// of records, sorted.
func CollectLabels(records []graph.Record) []string {
	set := make(map[string]struct{})
	for _, rec := range records {
		if rec.PathogenIdentification() == nil {
			continue
		}
		for _, label := range []string{rec.PathogenNameTitle(), rec.TaxonTitle()} {
			if label != "" {
				set[label] = struct{}{}
			}
		}
	}

	labels := make([]string, 0, len(set))
	for label := range set {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Enrich processes records in order. A record whose pathogen-name title, or
// failing that its taxon title, resolves to a usable entity gets a new taxon
// node and expanded search fields. Other records are left as they are.
func (e *Enricher) Enrich(ctx context.Context, records []graph.Record, c *cache.Cache) Stats {
	logger := e.opts.Logger
	if logger == nil {
		logger = slogcontext.FromCtx(ctx)
	}

	stats := Stats{Records: len(records)}
	logger.Info("Enriching records", slog.Int("records", len(records)))

	for i, rec := range records {
		switch e.enrichRecord(rec, c) {
		case fromPathogenName:
			stats.Enriched++
			stats.ByPathogenName++
		case fromTaxonTitle:
			stats.Enriched++
			stats.ByTaxonTitle++
		default:
			stats.Untouched++
		}

		if n := i + 1; n%e.opts.ProgressEvery == 0 || n == len(records) {
			logger.Info("Enrichment progress",
				slog.String("done", fmt.Sprintf("%d/%d", n, len(records))),
				slog.Int("enriched", stats.Enriched))
		}
	}
	return stats
}

type source int

const (
	notEnriched source = iota
	fromPathogenName
	fromTaxonTitle
)

func (e *Enricher) enrichRecord(rec graph.Record, c *cache.Cache) source {
	if rec.PathogenIdentification() == nil {
		return notEnriched
	}

	candidates := []struct {
		label string
		src   source
	}{
		{rec.PathogenNameTitle(), fromPathogenName},
		{rec.TaxonTitle(), fromTaxonTitle},
	}

	for _, cand := range candidates {
		if cand.label == "" {
			continue
		}
		res, ok := c.Lookup(cand.label)
		if !ok {
			continue
		}
		ent := res.Entity()
		if ent == nil {
			continue
		}

		var existing *taxonomy.TaxonNode
		if t := rec.Taxon(); t != nil {
			existing = taxonomy.ParseTaxonNode(t)
		}
		node := e.canon.Canonicalize(ent, cand.label, existing)
		rec.SetTaxon(node.Document())
		ExpandSearchFields(rec, node, cand.label, ent)
		return cand.src
	}
	return notEnriched
}

// ExpandSearchFields writes the taxon title to search:taxonLabel and appends
// every display label of the taxon to dcat:keyword and search:taxon. Labels
// are the title, the resolved label when distinct, the alternate names, the
// direct parent and the lineage, in that order.
func ExpandSearchFields(rec graph.Record, node *taxonomy.TaxonNode, resolvedLabel string, ent *taxonomy.Entity) {
	labels := []string{node.Title}
	if resolvedLabel != node.Title {
		labels = append(labels, resolvedLabel)
	}
	labels = append(labels, node.AlternateTitles()...)
	if ent != nil {
		labels = append(labels, ent.DirectParentLabel)
		labels = append(labels, ent.LineageLabels()...)
	}
	labels = uniqueNonEmpty(labels)

	rec.SetString(evorao.SearchTaxonLabel, node.Title)
	rec.AppendUnique(evorao.Keyword, labels...)
	rec.AppendUnique(evorao.SearchTaxon, labels...)
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
